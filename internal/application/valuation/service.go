package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Default unit-of-work settings
const (
	DefaultOperationTimeout = 5 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 50 * time.Millisecond
)

// ServiceConfig tunes how units of work are bounded and retried
type ServiceConfig struct {
	OperationTimeout time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
}

// DefaultServiceConfig returns the default service configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		OperationTimeout: DefaultOperationTimeout,
		MaxRetries:       DefaultMaxRetries,
		RetryBackoff:     DefaultRetryBackoff,
	}
}

// DistributedLocker serializes work on a product across processes. The
// returned release func must be called once the unit of work has finished.
type DistributedLocker interface {
	Acquire(ctx context.Context, ownerID, productID uuid.UUID) (release func(context.Context) error, err error)
}

// ValuationService is the entry point for stock movements that must keep
// cost layers and the ledger consistent.
type ValuationService struct {
	txScope        TransactionScope
	layerRepo      valuation.CostLayerRepository
	ledgerRepo     valuation.LedgerRepository
	allocator      *Allocator
	poster         *LedgerPoster
	eventPublisher shared.EventPublisher
	distLock       DistributedLocker
	metrics        Metrics
	logger         *zap.Logger
	cfg            ServiceConfig
}

// NewValuationService creates a new ValuationService
func NewValuationService(
	txScope TransactionScope,
	layerRepo valuation.CostLayerRepository,
	ledgerRepo valuation.LedgerRepository,
	logger *zap.Logger,
	cfg ServiceConfig,
) *ValuationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &ValuationService{
		txScope:    txScope,
		layerRepo:  layerRepo,
		ledgerRepo: ledgerRepo,
		allocator:  NewAllocator(),
		poster:     NewLedgerPoster(),
		metrics:    NoopMetrics{},
		logger:     logger,
		cfg:        cfg,
	}
}

// SetEventPublisher sets the publisher used for post-commit domain events
func (s *ValuationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDistributedLocker enables cross-process product serialization
func (s *ValuationService) SetDistributedLocker(locker DistributedLocker) {
	s.distLock = locker
}

// SetMetrics sets the metrics sink
func (s *ValuationService) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics{}
	}
	s.metrics = m
}

// RemoveStock consumes cost layers FIFO for an order line or adjustment and
// posts the matching negative inventory entry in the same transaction.
func (s *ValuationService) RemoveStock(ctx context.Context, req RemoveStockRequest) (*RemoveStockResponse, error) {
	if err := req.Event.Validate(); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, valuation.ErrInvalidQuantity
	}

	entryType := valuation.EntryTypeStockOut
	if req.Event.Kind() == valuation.ConsumingEventAdjustment {
		entryType = valuation.EntryTypeAdjustment
	}
	posting := valuation.LedgerPosting{
		OwnerID:     req.OwnerID,
		StoreID:     req.StoreID,
		ProductID:   req.ProductID,
		OrderID:     req.OrderID,
		Type:        entryType,
		Quantity:    -req.Quantity,
		Reference:   req.Reference,
		Description: req.Description,
	}
	if err := posting.Validate(); err != nil {
		return nil, err
	}

	var (
		alloc *valuation.Allocation
		entry *valuation.LedgerEntry
	)
	start := time.Now()
	events, err := s.run(ctx, req.OwnerID, req.ProductID, "remove_stock", func(ctx context.Context, repos TransactionalRepositories) ([]shared.DomainEvent, error) {
		var err error
		alloc, err = s.allocator.Allocate(ctx, repos, AllocateRequest{
			OwnerID:   req.OwnerID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Event:     req.Event,
		})
		if err != nil {
			return nil, err
		}
		entry, err = s.poster.Post(ctx, repos, posting)
		if err != nil {
			return nil, err
		}
		return []shared.DomainEvent{
			valuation.NewCostLayersConsumedEvent(req.OwnerID, alloc),
			valuation.NewLedgerEntryPostedEvent(entry),
		}, nil
	})
	if err != nil {
		if valuation.IsInsufficientCostLayers(err) {
			s.metrics.AllocationShortfall(ctx)
			s.logger.Info("allocation rejected",
				zap.String("owner_id", req.OwnerID.String()),
				zap.String("product_id", req.ProductID.String()),
				zap.Int64("quantity", req.Quantity),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.metrics.AllocationCompleted(ctx, alloc.Quantity, alloc.TotalCost, time.Since(start))
	s.metrics.LedgerEntryPosted(ctx, string(entry.Type))
	s.publish(ctx, events)

	return &RemoveStockResponse{
		ProductID:       alloc.ProductID,
		Quantity:        alloc.Quantity,
		TotalCost:       alloc.TotalCost,
		AverageUnitCost: alloc.AverageUnitCost(),
		Consumptions:    ToConsumptionResponses(alloc.Consumptions),
		LedgerEntry:     ToLedgerEntryResponse(entry),
	}, nil
}

// ReceiveStock inserts a new cost layer and posts the matching positive
// inventory entry in the same transaction. The allocator is not involved.
func (s *ValuationService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*ReceiveStockResponse, error) {
	entryType := req.EntryType
	if entryType == "" {
		entryType = valuation.EntryTypeStockIn
	}
	switch entryType {
	case valuation.EntryTypeStockIn, valuation.EntryTypeAdjustment, valuation.EntryTypeReturn:
	default:
		return nil, valuation.ErrInvalidLedgerEntry.Newf("Entry type %s cannot receive stock", entryType)
	}

	posting := valuation.LedgerPosting{
		OwnerID:     req.OwnerID,
		StoreID:     req.StoreID,
		ProductID:   req.ProductID,
		OrderID:     req.OrderID,
		Type:        entryType,
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		Description: req.Description,
	}
	// Validates the layer fields up front; the layer itself is rebuilt per attempt
	if _, err := valuation.NewCostLayer(req.OwnerID, req.ProductID, req.Quantity, req.UnitCost, req.AcquiredAt, req.Reference); err != nil {
		return nil, err
	}
	if err := posting.Validate(); err != nil {
		return nil, err
	}

	var (
		layer *valuation.CostLayer
		entry *valuation.LedgerEntry
	)
	events, err := s.run(ctx, req.OwnerID, req.ProductID, "receive_stock", func(ctx context.Context, repos TransactionalRepositories) ([]shared.DomainEvent, error) {
		var err error
		layer, err = valuation.NewCostLayer(req.OwnerID, req.ProductID, req.Quantity, req.UnitCost, req.AcquiredAt, req.Reference)
		if err != nil {
			return nil, err
		}
		if err := repos.ProductLocker().LockProduct(ctx, req.OwnerID, req.ProductID); err != nil {
			return nil, err
		}
		if err := repos.LayerRepo().Create(ctx, layer); err != nil {
			return nil, fmt.Errorf("create cost layer: %w", err)
		}
		entry, err = s.poster.Post(ctx, repos, posting)
		if err != nil {
			return nil, err
		}
		return []shared.DomainEvent{
			valuation.NewCostLayerCreatedEvent(layer),
			valuation.NewLedgerEntryPostedEvent(entry),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntryPosted(ctx, string(entry.Type))
	s.publish(ctx, events)

	return &ReceiveStockResponse{
		Layer:       ToCostLayerResponse(layer),
		LedgerEntry: ToLedgerEntryResponse(entry),
	}, nil
}

// PostFinancial appends a sale or expense entry. ProductID may be uuid.Nil
// for owner-level amounts.
func (s *ValuationService) PostFinancial(ctx context.Context, req PostFinancialRequest) (*LedgerEntryResponse, error) {
	if req.Type.Category() != valuation.CategoryFinancial || !req.Type.IsValid() {
		return nil, valuation.ErrInvalidLedgerEntry.Newf("Entry type %s is not a financial entry", req.Type)
	}
	posting := valuation.LedgerPosting{
		OwnerID:     req.OwnerID,
		StoreID:     req.StoreID,
		ProductID:   req.ProductID,
		OrderID:     req.OrderID,
		Type:        req.Type,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
	}
	if err := posting.Validate(); err != nil {
		return nil, err
	}

	var entry *valuation.LedgerEntry
	events, err := s.run(ctx, req.OwnerID, req.ProductID, "post_financial", func(ctx context.Context, repos TransactionalRepositories) ([]shared.DomainEvent, error) {
		var err error
		entry, err = s.poster.Post(ctx, repos, posting)
		if err != nil {
			return nil, err
		}
		return []shared.DomainEvent{valuation.NewLedgerEntryPostedEvent(entry)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntryPosted(ctx, string(entry.Type))
	s.publish(ctx, events)

	resp := ToLedgerEntryResponse(entry)
	return &resp, nil
}

// CurrentBalance returns the balances carried by the newest entry of the
// chain. An empty chain has zero balances.
func (s *ValuationService) CurrentBalance(ctx context.Context, ownerID, productID uuid.UUID) (*BalanceResponse, error) {
	latest, err := s.ledgerRepo.Latest(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	resp := &BalanceResponse{OwnerID: ownerID}
	if productID != uuid.Nil {
		resp.ProductID = &productID
	}
	if latest != nil {
		resp.BalanceQty = latest.BalanceQty
		resp.BalanceAmount = latest.BalanceAmount
		resp.Sequence = latest.Sequence
		asOf := latest.CreatedAt
		resp.AsOf = &asOf
	}
	return resp, nil
}

// ListLayers returns the product's layers in FIFO order
func (s *ValuationService) ListLayers(ctx context.Context, ownerID, productID uuid.UUID, activeOnly bool) ([]CostLayerResponse, error) {
	layers, err := s.layerRepo.FindByProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		active := layers[:0]
		for _, l := range layers {
			if l.IsActive() {
				active = append(active, l)
			}
		}
		layers = active
	}
	return ToCostLayerResponses(layers), nil
}

// ListLedger returns one page of a ledger chain ordered by sequence
func (s *ValuationService) ListLedger(ctx context.Context, ownerID, productID uuid.UUID, filter shared.Filter) (*shared.Paginated[LedgerEntryResponse], error) {
	entries, total, err := s.ledgerRepo.FindByScope(ctx, ownerID, productID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		items[i] = ToLedgerEntryResponse(&entries[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ValuationReport values the product's remaining stock at layer cost
func (s *ValuationService) ValuationReport(ctx context.Context, ownerID, productID uuid.UUID) (*ValuationReportResponse, error) {
	layers, err := s.layerRepo.FindByProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	report := &ValuationReportResponse{
		OwnerID:         ownerID,
		ProductID:       productID,
		AverageUnitCost: decimal.Zero,
	}
	total := decimal.Zero
	for _, l := range layers {
		if !l.IsActive() {
			continue
		}
		report.OnHand += l.RemainingQuantity
		report.ActiveLayers++
		total = total.Add(l.RemainingValue())
	}
	report.TotalValue = total.IntPart()
	if report.OnHand > 0 {
		report.AverageUnitCost = total.DivRound(decimal.NewFromInt(report.OnHand), 4)
	}
	return report, nil
}

type unitOfWork func(ctx context.Context, repos TransactionalRepositories) ([]shared.DomainEvent, error)

// run executes fn in a transaction bounded by the operation timeout and
// retries contention with exponential backoff. It returns the events fn
// produced on the attempt that committed.
func (s *ValuationService) run(ctx context.Context, ownerID, productID uuid.UUID, op string, fn unitOfWork) ([]shared.DomainEvent, error) {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		events, err := s.attempt(ctx, ownerID, productID, op, fn)
		if err == nil {
			return events, nil
		}
		if !valuation.IsRetryable(err) {
			return nil, err
		}

		retry := attempt < s.cfg.MaxRetries && ctx.Err() == nil
		s.metrics.ContentionObserved(ctx, op, retry)
		if !retry {
			s.logger.Warn("giving up after contention",
				zap.String("op", op),
				zap.String("product_id", productID.String()),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return nil, asContention(productID, op, err)
		}

		s.logger.Debug("retrying after contention",
			zap.String("op", op),
			zap.String("product_id", productID.String()),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, valuation.NewContentionError(productID, op, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (s *ValuationService) attempt(ctx context.Context, ownerID, productID uuid.UUID, op string, fn unitOfWork) ([]shared.DomainEvent, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if s.distLock != nil {
		release, err := s.distLock.Acquire(opCtx, ownerID, productID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.logger.Warn("failed to release product lock",
					zap.String("product_id", productID.String()),
					zap.Error(err),
				)
			}
		}()
	}

	var events []shared.DomainEvent
	err := s.txScope.Execute(opCtx, func(repos TransactionalRepositories) error {
		var err error
		events, err = fn(opCtx, repos)
		return err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !valuation.IsInvariantViolation(err) && !valuation.IsInsufficientCostLayers(err) {
			return nil, asContention(productID, op, err)
		}
		return nil, err
	}
	return events, nil
}

// asContention wraps err as a *ContentionError unless it already is one
func asContention(productID uuid.UUID, op string, err error) error {
	var ce *valuation.ContentionError
	if errors.As(err, &ce) {
		return err
	}
	return valuation.NewContentionError(productID, op, err)
}

// publish sends events after commit. Failures never fail the operation.
func (s *ValuationService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish valuation events", zap.Error(err))
	}
}
