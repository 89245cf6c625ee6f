package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BackfillStatus describes what backfill did with one product
type BackfillStatus string

const (
	BackfillCreated     BackfillStatus = "created"
	BackfillWouldCreate BackfillStatus = "would_create"
	BackfillSkippedCost BackfillStatus = "skipped_no_cost"
	BackfillCovered     BackfillStatus = "already_covered"
)

// BackfillOptions controls a backfill run
type BackfillOptions struct {
	DryRun  bool
	OwnerID *uuid.UUID // nil means every owner
}

// BackfillItem reports the outcome for one candidate product
type BackfillItem struct {
	OwnerID   uuid.UUID      `json:"owner_id"`
	ProductID uuid.UUID      `json:"product_id"`
	Name      string         `json:"name,omitempty"`
	Quantity  int64          `json:"quantity"`
	UnitCost  int64          `json:"unit_cost"`
	LayerID   *uuid.UUID     `json:"layer_id,omitempty"`
	Status    BackfillStatus `json:"status"`
}

// BackfillResult summarizes a backfill run
type BackfillResult struct {
	DryRun     bool           `json:"dry_run"`
	Policy     string         `json:"policy"`
	Candidates int            `json:"candidates"`
	Fixed      int            `json:"fixed"`
	Skipped    int            `json:"skipped"`
	Items      []BackfillItem `json:"items"`
}

// BackfillConfig holds backfill settings
type BackfillConfig struct {
	Policy    valuation.CostPolicy
	Reference string
}

// BackfillService gives every stocked product without active layers a single
// opening layer so that later consumptions can be valued.
type BackfillService struct {
	products       valuation.ProductStockReader
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	cfg            BackfillConfig
	now            func() time.Time
}

// NewBackfillService creates a new BackfillService
func NewBackfillService(
	products valuation.ProductStockReader,
	txScope TransactionScope,
	logger *zap.Logger,
	cfg BackfillConfig,
) (*BackfillService, error) {
	if cfg.Policy == "" {
		cfg.Policy = valuation.CostPolicyCostOrPrice
	}
	if !cfg.Policy.IsValid() {
		return nil, valuation.ErrInvalidCostPolicy
	}
	if cfg.Reference == "" {
		cfg.Reference = valuation.MigrationReference
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillService{
		products: products,
		txScope:  txScope,
		metrics:  NoopMetrics{},
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// SetEventPublisher sets the publisher for CostLayerBackfilled events
func (s *BackfillService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics sink
func (s *BackfillService) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics{}
	}
	s.metrics = m
}

// Backfill creates the missing opening layers. Each product is handled in its
// own transaction under the product lock and the "no active layer" condition
// is checked again inside it, so repeated or concurrent runs never create a
// second layer. In dry-run mode nothing is written.
func (s *BackfillService) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillResult, error) {
	candidates, err := s.products.FindMissingCostLayers(ctx, opts.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("find products missing cost layers: %w", err)
	}

	result := &BackfillResult{
		DryRun:     opts.DryRun,
		Policy:     string(s.cfg.Policy),
		Candidates: len(candidates),
		Items:      make([]BackfillItem, 0, len(candidates)),
	}

	for _, p := range candidates {
		item, err := s.backfillProduct(ctx, p, opts.DryRun)
		if err != nil {
			return result, fmt.Errorf("backfill product %s: %w", p.ID, err)
		}
		switch item.Status {
		case BackfillCreated, BackfillWouldCreate:
			result.Fixed++
		default:
			result.Skipped++
		}
		result.Items = append(result.Items, item)
	}

	if !opts.DryRun && result.Fixed > 0 {
		s.metrics.LayersBackfilled(ctx, int64(result.Fixed))
	}
	s.logger.Info("backfill finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.String("policy", string(s.cfg.Policy)),
		zap.Int("candidates", result.Candidates),
		zap.Int("fixed", result.Fixed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *BackfillService) backfillProduct(ctx context.Context, p valuation.ProductStock, dryRun bool) (BackfillItem, error) {
	item := BackfillItem{
		OwnerID:   p.OwnerID,
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  p.Stock,
	}

	layer, ok, err := valuation.OpeningLayer(p, s.cfg.Policy, s.cfg.Reference, s.now())
	if err != nil {
		return item, err
	}
	if !ok {
		item.Status = BackfillSkippedCost
		s.logger.Warn("skipping product without recorded cost",
			zap.String("owner_id", p.OwnerID.String()),
			zap.String("product_id", p.ID.String()),
		)
		return item, nil
	}
	item.UnitCost = layer.UnitCost

	if dryRun {
		item.Status = BackfillWouldCreate
		return item, nil
	}

	created := false
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.ProductLocker().LockProduct(ctx, p.OwnerID, p.ID); err != nil {
			return err
		}
		active, err := repos.LayerRepo().HasActive(ctx, p.OwnerID, p.ID)
		if err != nil {
			return err
		}
		if active {
			return nil
		}
		if err := repos.LayerRepo().Create(ctx, layer); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return item, err
	}

	if !created {
		item.Status = BackfillCovered
		return item, nil
	}

	item.Status = BackfillCreated
	item.LayerID = &layer.ID
	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, valuation.NewCostLayerBackfilledEvent(layer)); err != nil {
			s.logger.Warn("failed to publish backfill event", zap.Error(err))
		}
	}
	return item, nil
}
