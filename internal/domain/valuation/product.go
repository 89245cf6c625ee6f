package valuation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MigrationReference tags layers synthesized by backfill
const MigrationReference = "MIGRATION"

// CostPolicy decides which product price seeds a synthetic opening layer
type CostPolicy string

const (
	// CostPolicyCostOrPrice uses the recorded cost, falling back to sale price
	CostPolicyCostOrPrice CostPolicy = "cost_or_price"
	// CostPolicyCostOnly uses the recorded cost and skips products without one
	CostPolicyCostOnly CostPolicy = "cost_only"
)

// IsValid returns true for known policies
func (p CostPolicy) IsValid() bool {
	return p == CostPolicyCostOrPrice || p == CostPolicyCostOnly
}

// ProductStock is the catalog's view of a product as far as valuation cares.
// Prices are in major currency units.
type ProductStock struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Stock     int64
	Cost      *decimal.Decimal
	Price     decimal.Decimal
	CreatedAt *time.Time
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a major-unit decimal
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// OpeningUnitCost returns the unit cost an opening layer should carry.
// ok is false when the policy cannot price the product.
func (p ProductStock) OpeningUnitCost(policy CostPolicy) (unitCost int64, ok bool) {
	if p.Cost != nil {
		return ToMinorUnits(*p.Cost), true
	}
	if policy == CostPolicyCostOnly {
		return 0, false
	}
	return ToMinorUnits(p.Price), true
}

// OpeningLayer synthesizes the single layer backfill creates for p:
// quantity = remaining = current stock, acquired at product creation or now.
func OpeningLayer(p ProductStock, policy CostPolicy, reference string, now time.Time) (*CostLayer, bool, error) {
	if !policy.IsValid() {
		return nil, false, ErrInvalidCostPolicy
	}
	unitCost, ok := p.OpeningUnitCost(policy)
	if !ok {
		return nil, false, nil
	}
	if unitCost < 0 {
		return nil, false, ErrInvalidUnitCost
	}
	acquiredAt := now
	if p.CreatedAt != nil && !p.CreatedAt.IsZero() {
		acquiredAt = *p.CreatedAt
	}
	if reference == "" {
		reference = MigrationReference
	}
	layer, err := NewCostLayer(p.OwnerID, p.ID, p.Stock, unitCost, acquiredAt, reference)
	if err != nil {
		return nil, false, err
	}
	return layer, true, nil
}
