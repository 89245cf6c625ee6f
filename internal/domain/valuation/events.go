package valuation

import (
	"github.com/erp/valuation/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type names used on events
const (
	AggregateTypeCostLayer   = "CostLayer"
	AggregateTypeProduct     = "Product"
	AggregateTypeLedgerEntry = "LedgerEntry"
)

// Event type constants
const (
	EventTypeCostLayerCreated    = "CostLayerCreated"
	EventTypeCostLayersConsumed  = "CostLayersConsumed"
	EventTypeLedgerEntryPosted   = "LedgerEntryPosted"
	EventTypeCostLayerBackfilled = "CostLayerBackfilled"
)

// CostLayerCreatedEvent is raised when stock is received into a new layer
type CostLayerCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	UnitCost  int64     `json:"unit_cost"`
	Reference string    `json:"reference"`
}

// NewCostLayerCreatedEvent creates a CostLayerCreatedEvent
func NewCostLayerCreatedEvent(layer *CostLayer) *CostLayerCreatedEvent {
	return &CostLayerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCostLayerCreated, AggregateTypeCostLayer, layer.ID, layer.OwnerID),
		ProductID:       layer.ProductID,
		Quantity:        layer.Quantity,
		UnitCost:        layer.UnitCost,
		Reference:       layer.Reference,
	}
}

// CostLayerBackfilledEvent is raised for each synthetic opening layer
type CostLayerBackfilledEvent struct {
	CostLayerCreatedEvent
}

// NewCostLayerBackfilledEvent creates a CostLayerBackfilledEvent
func NewCostLayerBackfilledEvent(layer *CostLayer) *CostLayerBackfilledEvent {
	e := NewCostLayerCreatedEvent(layer)
	e.Type = EventTypeCostLayerBackfilled
	return &CostLayerBackfilledEvent{CostLayerCreatedEvent: *e}
}

// ConsumedLayer summarizes one consumption inside CostLayersConsumedEvent
type ConsumedLayer struct {
	CostLayerID       uuid.UUID `json:"cost_layer_id"`
	QuantityConsumed  int64     `json:"quantity_consumed"`
	UnitCost          int64     `json:"unit_cost"`
	RemainingQuantity int64     `json:"remaining_quantity"`
}

// CostLayersConsumedEvent is raised once per successful allocation
type CostLayersConsumedEvent struct {
	shared.BaseDomainEvent
	EventKind ConsumingEventKind `json:"event_kind"`
	EventRef  uuid.UUID          `json:"event_ref"`
	Quantity  int64              `json:"quantity"`
	TotalCost int64              `json:"total_cost"`
	Layers    []ConsumedLayer    `json:"layers"`
}

// NewCostLayersConsumedEvent creates a CostLayersConsumedEvent from an allocation
func NewCostLayersConsumedEvent(ownerID uuid.UUID, alloc *Allocation) *CostLayersConsumedEvent {
	remaining := make(map[uuid.UUID]int64, len(alloc.Touched))
	for _, l := range alloc.Touched {
		remaining[l.ID] = l.RemainingQuantity
	}
	layers := make([]ConsumedLayer, 0, len(alloc.Consumptions))
	for _, c := range alloc.Consumptions {
		layers = append(layers, ConsumedLayer{
			CostLayerID:       c.CostLayerID,
			QuantityConsumed:  c.QuantityConsumed,
			UnitCost:          c.UnitCost,
			RemainingQuantity: remaining[c.CostLayerID],
		})
	}
	return &CostLayersConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCostLayersConsumed, AggregateTypeProduct, alloc.ProductID, ownerID),
		EventKind:       alloc.Event.Kind(),
		EventRef:        alloc.Event.ID(),
		Quantity:        alloc.Quantity,
		TotalCost:       alloc.TotalCost,
		Layers:          layers,
	}
}

// LedgerEntryPostedEvent is raised for every appended ledger entry
type LedgerEntryPostedEvent struct {
	shared.BaseDomainEvent
	ProductID     uuid.UUID `json:"product_id"`
	EntryType     EntryType `json:"entry_type"`
	Category      Category  `json:"category"`
	Quantity      *int64    `json:"quantity,omitempty"`
	Amount        *int64    `json:"amount,omitempty"`
	BalanceQty    int64     `json:"balance_qty"`
	BalanceAmount int64     `json:"balance_amount"`
	Sequence      int64     `json:"sequence"`
}

// NewLedgerEntryPostedEvent creates a LedgerEntryPostedEvent
func NewLedgerEntryPostedEvent(entry *LedgerEntry) *LedgerEntryPostedEvent {
	return &LedgerEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryPosted, AggregateTypeLedgerEntry, entry.ID, entry.OwnerID),
		ProductID:       entry.ProductID,
		EntryType:       entry.Type,
		Category:        entry.Category,
		Quantity:        entry.Quantity,
		Amount:          entry.Amount,
		BalanceQty:      entry.BalanceQty,
		BalanceAmount:   entry.BalanceAmount,
		Sequence:        entry.Sequence,
	}
}
