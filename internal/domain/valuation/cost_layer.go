package valuation

import (
	"math"
	"strings"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxReferenceLength bounds the provenance tag stored on a layer
const MaxReferenceLength = 100

// CostLayer is one acquisition batch of a product at a fixed unit cost.
// Only RemainingQuantity ever changes after creation, and only downwards.
type CostLayer struct {
	shared.BaseEntity
	OwnerID           uuid.UUID
	ProductID         uuid.UUID
	Quantity          int64 // units acquired
	RemainingQuantity int64 // units not yet consumed
	UnitCost          int64 // minor currency units
	AcquiredAt        time.Time
	Reference         string
}

// NewCostLayer creates a full (unconsumed) cost layer
func NewCostLayer(ownerID, productID uuid.UUID, quantity, unitCost int64, acquiredAt time.Time, reference string) (*CostLayer, error) {
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwner
	}
	if productID == uuid.Nil {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if unitCost < 0 {
		return nil, ErrInvalidUnitCost
	}
	reference = strings.TrimSpace(reference)
	if len(reference) > MaxReferenceLength {
		return nil, ErrInvalidReference
	}
	if acquiredAt.IsZero() {
		acquiredAt = time.Now()
	}

	return &CostLayer{
		BaseEntity:        shared.NewBaseEntity(),
		OwnerID:           ownerID,
		ProductID:         productID,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		UnitCost:          unitCost,
		AcquiredAt:        acquiredAt,
		Reference:         reference,
	}, nil
}

// IsExhausted returns true once every unit has been consumed
func (l *CostLayer) IsExhausted() bool {
	return l.RemainingQuantity == 0
}

// IsActive returns true while units remain
func (l *CostLayer) IsActive() bool {
	return l.RemainingQuantity > 0
}

// ConsumedQuantity returns quantity - remaining
func (l *CostLayer) ConsumedQuantity() int64 {
	return l.Quantity - l.RemainingQuantity
}

// RemainingValue returns remaining units valued at the layer's unit cost
func (l *CostLayer) RemainingValue() decimal.Decimal {
	return decimal.NewFromInt(l.RemainingQuantity).Mul(decimal.NewFromInt(l.UnitCost))
}

// Consume takes n units off the layer
func (l *CostLayer) Consume(n int64) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	if n > l.RemainingQuantity {
		return newInvariantViolation("cost_layer", l.ID,
			"consume %d exceeds remaining %d", n, l.RemainingQuantity)
	}
	l.RemainingQuantity -= n
	l.Touch()
	return nil
}

// CheckBounds verifies 0 <= remaining <= quantity
func (l *CostLayer) CheckBounds() error {
	if l.RemainingQuantity < 0 || l.RemainingQuantity > l.Quantity {
		return newInvariantViolation("cost_layer", l.ID,
			"remaining %d outside [0, %d]", l.RemainingQuantity, l.Quantity)
	}
	return nil
}

// lineCost returns qty * unitCost, refusing to overflow int64
func lineCost(layerID uuid.UUID, qty, unitCost int64) (int64, error) {
	if unitCost != 0 && qty > math.MaxInt64/unitCost {
		return 0, newInvariantViolation("cost_layer", layerID,
			"cost of %d units at %d overflows", qty, unitCost)
	}
	return qty * unitCost, nil
}
