package valuation

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation is the outcome of consuming a quantity of one product FIFO
type Allocation struct {
	ProductID    uuid.UUID
	Event        ConsumingEvent
	Quantity     int64
	TotalCost    int64
	Consumptions []CostLayerConsumption
	Touched      []*CostLayer // layers whose remaining quantity changed
}

// AverageUnitCost returns TotalCost / Quantity rounded to 4 places
func (a *Allocation) AverageUnitCost() decimal.Decimal {
	if a.Quantity == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(a.TotalCost).DivRound(decimal.NewFromInt(a.Quantity), 4)
}

// SortFIFO orders layers oldest first, breaking acquisition-time ties by ID
func SortFIFO(layers []*CostLayer) {
	sort.SliceStable(layers, func(i, j int) bool {
		if !layers[i].AcquiredAt.Equal(layers[j].AcquiredAt) {
			return layers[i].AcquiredAt.Before(layers[j].AcquiredAt)
		}
		return bytes.Compare(layers[i].ID[:], layers[j].ID[:]) < 0
	})
}

// AvailableQuantity sums remaining units across active layers of productID
func AvailableQuantity(productID uuid.UUID, layers []*CostLayer) int64 {
	var total int64
	for _, l := range layers {
		if l.ProductID == productID && l.IsActive() {
			total += l.RemainingQuantity
		}
	}
	return total
}

// PlanFIFO consumes quantity units of productID from layers, oldest first.
// It is all-or-nothing: when the active layers cannot cover the request an
// *InsufficientCostLayersError is returned and no layer is modified. On
// success the touched layers are mutated in place and listed in the result.
func PlanFIFO(productID uuid.UUID, layers []*CostLayer, quantity int64, event ConsumingEvent) (*Allocation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	active := make([]*CostLayer, 0, len(layers))
	for _, l := range layers {
		if l.ProductID != productID || !l.IsActive() {
			continue
		}
		if err := l.CheckBounds(); err != nil {
			return nil, err
		}
		active = append(active, l)
	}

	available := AvailableQuantity(productID, active)
	if available < quantity {
		return nil, &InsufficientCostLayersError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}

	SortFIFO(active)

	now := time.Now()
	alloc := &Allocation{
		ProductID: productID,
		Event:     event,
		Quantity:  quantity,
	}

	// Costs are computed before any layer is mutated so an overflow
	// cannot leave a half-consumed set behind.
	type step struct {
		layer *CostLayer
		take  int64
	}
	steps := make([]step, 0, len(active))
	needed := quantity
	for _, l := range active {
		if needed == 0 {
			break
		}
		take := min(l.RemainingQuantity, needed)
		cost, err := lineCost(l.ID, take, l.UnitCost)
		if err != nil {
			return nil, err
		}
		if cost > math.MaxInt64-alloc.TotalCost {
			return nil, newInvariantViolation("cost_layer", l.ID,
				"allocation total overflows after %d units", quantity-needed+take)
		}
		alloc.TotalCost += cost
		needed -= take
		steps = append(steps, step{layer: l, take: take})
	}

	for _, s := range steps {
		if err := s.layer.Consume(s.take); err != nil {
			return nil, err
		}
		alloc.Consumptions = append(alloc.Consumptions, newConsumption(s.layer, event, s.take, now))
		alloc.Touched = append(alloc.Touched, s.layer)
	}

	return alloc, nil
}
