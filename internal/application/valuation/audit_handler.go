package valuation

import (
	"context"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"go.uber.org/zap"
)

// AuditLogHandler writes an audit record for every valuation event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("valuation.audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		valuation.EventTypeCostLayerCreated,
		valuation.EventTypeCostLayersConsumed,
		valuation.EventTypeLedgerEntryPosted,
		valuation.EventTypeCostLayerBackfilled,
	}
}

// Handle logs the event
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("owner_id", event.OwnerID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *valuation.CostLayerCreatedEvent:
		fields = append(fields,
			zap.String("product_id", e.ProductID.String()),
			zap.Int64("quantity", e.Quantity),
			zap.Int64("unit_cost", e.UnitCost),
			zap.String("reference", e.Reference),
		)
	case *valuation.CostLayerBackfilledEvent:
		fields = append(fields,
			zap.String("product_id", e.ProductID.String()),
			zap.Int64("quantity", e.Quantity),
			zap.Int64("unit_cost", e.UnitCost),
		)
	case *valuation.CostLayersConsumedEvent:
		fields = append(fields,
			zap.String("consumed_by", string(e.EventKind)),
			zap.String("consumed_by_id", e.EventRef.String()),
			zap.Int64("quantity", e.Quantity),
			zap.Int64("total_cost", e.TotalCost),
			zap.Int("layers", len(e.Layers)),
		)
	case *valuation.LedgerEntryPostedEvent:
		fields = append(fields,
			zap.String("product_id", e.ProductID.String()),
			zap.String("entry_type", string(e.EntryType)),
			zap.Int64("sequence", e.Sequence),
			zap.Int64("balance_qty", e.BalanceQty),
			zap.Int64("balance_amount", e.BalanceAmount),
		)
	}

	h.logger.Info("valuation event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
