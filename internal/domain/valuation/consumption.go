package valuation

import (
	"fmt"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/google/uuid"
)

// ConsumingEventKind identifies what drew stock from a layer
type ConsumingEventKind string

const (
	ConsumingEventOrderLine  ConsumingEventKind = "order_line"
	ConsumingEventAdjustment ConsumingEventKind = "adjustment"
)

// IsValid returns true for known event kinds
func (k ConsumingEventKind) IsValid() bool {
	return k == ConsumingEventOrderLine || k == ConsumingEventAdjustment
}

// ConsumingEvent is either OrderLine(id) or Adjustment(id). The zero value is
// invalid; build one with OrderLine or Adjustment.
type ConsumingEvent struct {
	kind ConsumingEventKind
	id   uuid.UUID
}

// OrderLine returns a consuming event for an order item
func OrderLine(orderItemID uuid.UUID) ConsumingEvent {
	return ConsumingEvent{kind: ConsumingEventOrderLine, id: orderItemID}
}

// Adjustment returns a consuming event for an inventory adjustment
func Adjustment(adjustmentID uuid.UUID) ConsumingEvent {
	return ConsumingEvent{kind: ConsumingEventAdjustment, id: adjustmentID}
}

// ParseConsumingEvent builds an event from a kind string and id
func ParseConsumingEvent(kind string, id uuid.UUID) (ConsumingEvent, error) {
	e := ConsumingEvent{kind: ConsumingEventKind(kind), id: id}
	if err := e.Validate(); err != nil {
		return ConsumingEvent{}, err
	}
	return e, nil
}

// ConsumingEventFromColumns rebuilds an event from its persisted shape,
// where exactly one of the two references is set.
func ConsumingEventFromColumns(orderItemID, adjustmentID *uuid.UUID) (ConsumingEvent, error) {
	switch {
	case orderItemID != nil && adjustmentID == nil:
		return OrderLine(*orderItemID), nil
	case adjustmentID != nil && orderItemID == nil:
		return Adjustment(*adjustmentID), nil
	default:
		return ConsumingEvent{}, ErrInvalidConsumingEvent
	}
}

// Kind returns the event kind
func (e ConsumingEvent) Kind() ConsumingEventKind { return e.kind }

// ID returns the referenced order item or adjustment id
func (e ConsumingEvent) ID() uuid.UUID { return e.id }

// IsZero reports whether the event was never set
func (e ConsumingEvent) IsZero() bool { return e.kind == "" && e.id == uuid.Nil }

// Validate checks the event references something real
func (e ConsumingEvent) Validate() error {
	if e.id == uuid.Nil {
		return ErrInvalidConsumingEvent
	}
	if !e.kind.IsValid() {
		return ErrInvalidConsumingEvent
	}
	return nil
}

// OrderItemID returns the order item reference, nil for adjustments
func (e ConsumingEvent) OrderItemID() *uuid.UUID {
	if e.kind != ConsumingEventOrderLine {
		return nil
	}
	id := e.id
	return &id
}

// InventoryAdjustmentID returns the adjustment reference, nil for order lines
func (e ConsumingEvent) InventoryAdjustmentID() *uuid.UUID {
	if e.kind != ConsumingEventAdjustment {
		return nil
	}
	id := e.id
	return &id
}

func (e ConsumingEvent) String() string {
	return fmt.Sprintf("%s(%s)", e.kind, e.id)
}

// CostLayerConsumption records units drawn from one layer by one event.
// UnitCost is copied from the layer when the consumption is created.
type CostLayerConsumption struct {
	ID               uuid.UUID
	CostLayerID      uuid.UUID
	Event            ConsumingEvent
	QuantityConsumed int64
	UnitCost         int64
	CreatedAt        time.Time
}

// newConsumption is only reachable through the FIFO planner
func newConsumption(layer *CostLayer, event ConsumingEvent, qty int64, now time.Time) CostLayerConsumption {
	return CostLayerConsumption{
		ID:               shared.NewID(),
		CostLayerID:      layer.ID,
		Event:            event,
		QuantityConsumed: qty,
		UnitCost:         layer.UnitCost,
		CreatedAt:        now,
	}
}

// TotalCost returns quantity * unit cost
func (c CostLayerConsumption) TotalCost() int64 {
	return c.QuantityConsumed * c.UnitCost
}
