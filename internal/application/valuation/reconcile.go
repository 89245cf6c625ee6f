package valuation

import (
	"context"
	"fmt"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reconcilePageSize = 500

// ReconciliationReport is the audit of one (owner, product) pair.
// Drift is Σ remaining layer quantity minus the latest ledger balance_qty.
type ReconciliationReport struct {
	OwnerID        uuid.UUID `json:"owner_id"`
	ProductID      uuid.UUID `json:"product_id"`
	EntryCount     int       `json:"entry_count"`
	LedgerQty      int64     `json:"ledger_qty"`
	LedgerAmount   int64     `json:"ledger_amount"`
	BalanceQty     int64     `json:"balance_qty"`
	BalanceAmount  int64     `json:"balance_amount"`
	LayerCount     int       `json:"layer_count"`
	LayerRemaining int64     `json:"layer_remaining"`
	Drift          int64     `json:"drift"`
	Issues         []string  `json:"issues,omitempty"`
}

// Consistent reports whether no issue was found. Drift alone is not an issue:
// products stocked before the ledger existed legitimately drift.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Issues) == 0
}

// ReconciliationService verifies that ledger and layers agree. It reports
// discrepancies and never corrects them.
type ReconciliationService struct {
	layerRepo       valuation.CostLayerRepository
	consumptionRepo valuation.ConsumptionRepository
	ledgerRepo      valuation.LedgerRepository
	logger          *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	layerRepo valuation.CostLayerRepository,
	consumptionRepo valuation.ConsumptionRepository,
	ledgerRepo valuation.LedgerRepository,
	logger *zap.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		layerRepo:       layerRepo,
		consumptionRepo: consumptionRepo,
		ledgerRepo:      ledgerRepo,
		logger:          logger,
	}
}

// Reconcile audits the ledger chain and the cost layers of one product
func (s *ReconciliationService) Reconcile(ctx context.Context, ownerID, productID uuid.UUID) (*ReconciliationReport, error) {
	report := &ReconciliationReport{OwnerID: ownerID, ProductID: productID}

	entries, err := s.loadChain(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	report.EntryCount = len(entries)
	for i := range entries {
		dq, da := entries[i].Delta()
		report.LedgerQty += dq
		report.LedgerAmount += da
	}
	if n := len(entries); n > 0 {
		report.BalanceQty = entries[n-1].BalanceQty
		report.BalanceAmount = entries[n-1].BalanceAmount
	}
	if err := valuation.VerifyChain(entries); err != nil {
		report.Issues = append(report.Issues, err.Error())
	}
	if report.LedgerQty != report.BalanceQty || report.LedgerAmount != report.BalanceAmount {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"ledger sums (%d, %d) differ from latest balances (%d, %d)",
			report.LedgerQty, report.LedgerAmount, report.BalanceQty, report.BalanceAmount))
	}

	layers, err := s.layerRepo.FindByProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	report.LayerCount = len(layers)

	ids := make([]uuid.UUID, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	consumed := map[uuid.UUID]int64{}
	if len(ids) > 0 {
		consumed, err = s.consumptionRepo.SumByLayer(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	for _, l := range layers {
		report.LayerRemaining += l.RemainingQuantity
		if err := l.CheckBounds(); err != nil {
			report.Issues = append(report.Issues, err.Error())
		}
		if got := consumed[l.ID]; got != l.ConsumedQuantity() {
			report.Issues = append(report.Issues, fmt.Sprintf(
				"layer %s: consumed %d but consumptions sum to %d", l.ID, l.ConsumedQuantity(), got))
		}
	}
	report.Drift = report.LayerRemaining - report.BalanceQty

	fields := []zap.Field{
		zap.String("owner_id", ownerID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("entries", report.EntryCount),
		zap.Int("layers", report.LayerCount),
		zap.Int64("drift", report.Drift),
	}
	if report.Consistent() {
		s.logger.Info("reconciliation passed", fields...)
	} else {
		s.logger.Warn("reconciliation found issues", append(fields, zap.Strings("issues", report.Issues))...)
	}
	return report, nil
}

func (s *ReconciliationService) loadChain(ctx context.Context, ownerID, productID uuid.UUID) ([]valuation.LedgerEntry, error) {
	filter := shared.Filter{Page: 1, PageSize: reconcilePageSize, OrderDir: "asc"}
	var all []valuation.LedgerEntry
	for {
		page, total, err := s.ledgerRepo.FindByScope(ctx, ownerID, productID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < filter.PageSize || int64(len(all)) >= total {
			return all, nil
		}
		filter.Page++
	}
}
