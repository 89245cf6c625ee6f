package valuation

import (
	"context"
	"fmt"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
)

// AllocateRequest asks for quantity units of a product to be drawn FIFO
type AllocateRequest struct {
	OwnerID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int64
	Event     valuation.ConsumingEvent
}

// Allocator consumes cost layers inside a caller-provided transaction
type Allocator struct{}

// NewAllocator creates an Allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate locks the product, consumes its active layers oldest first and
// persists the touched layers and the consumption records. On
// *InsufficientCostLayersError nothing has been written and the caller's
// transaction must be rolled back.
func (a *Allocator) Allocate(ctx context.Context, repos TransactionalRepositories, req AllocateRequest) (*valuation.Allocation, error) {
	if req.Quantity <= 0 {
		return nil, valuation.ErrInvalidQuantity
	}
	if err := req.Event.Validate(); err != nil {
		return nil, err
	}

	if err := repos.ProductLocker().LockProduct(ctx, req.OwnerID, req.ProductID); err != nil {
		return nil, err
	}

	layers, err := repos.LayerRepo().FindActiveForUpdate(ctx, req.OwnerID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load cost layers: %w", err)
	}

	alloc, err := valuation.PlanFIFO(req.ProductID, layers, req.Quantity, req.Event)
	if err != nil {
		return nil, err
	}

	if err := repos.LayerRepo().UpdateRemaining(ctx, alloc.Touched...); err != nil {
		return nil, fmt.Errorf("update cost layers: %w", err)
	}
	if err := repos.ConsumptionRepo().CreateBatch(ctx, alloc.Consumptions); err != nil {
		return nil, fmt.Errorf("record consumptions: %w", err)
	}
	return alloc, nil
}
