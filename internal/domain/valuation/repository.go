package valuation

import (
	"context"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/google/uuid"
)

// CostLayerRepository persists cost layers. Layers are never deleted.
type CostLayerRepository interface {
	Create(ctx context.Context, layer *CostLayer) error
	// UpdateRemaining writes RemainingQuantity of each layer
	UpdateRemaining(ctx context.Context, layers ...*CostLayer) error
	// FindActiveForUpdate returns layers with remaining > 0 in FIFO order,
	// row-locked for the rest of the transaction where the database supports it
	FindActiveForUpdate(ctx context.Context, ownerID, productID uuid.UUID) ([]*CostLayer, error)
	// FindByProduct returns every layer of the product in FIFO order
	FindByProduct(ctx context.Context, ownerID, productID uuid.UUID) ([]*CostLayer, error)
	HasActive(ctx context.Context, ownerID, productID uuid.UUID) (bool, error)
}

// ConsumptionRepository persists immutable consumption records
type ConsumptionRepository interface {
	CreateBatch(ctx context.Context, consumptions []CostLayerConsumption) error
	FindByLayer(ctx context.Context, layerID uuid.UUID) ([]CostLayerConsumption, error)
	// SumByLayer returns Σ quantity_consumed keyed by layer id
	SumByLayer(ctx context.Context, layerIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// LedgerRepository persists the append-only ledger
type LedgerRepository interface {
	Append(ctx context.Context, entry *LedgerEntry) error
	// Latest returns the newest entry of the chain, nil when the chain is empty
	Latest(ctx context.Context, ownerID, productID uuid.UUID) (*LedgerEntry, error)
	// LatestForUpdate is Latest with a row lock
	LatestForUpdate(ctx context.Context, ownerID, productID uuid.UUID) (*LedgerEntry, error)
	// FindByScope returns the chain ordered by sequence
	FindByScope(ctx context.Context, ownerID, productID uuid.UUID, filter shared.Filter) ([]LedgerEntry, int64, error)
}

// ProductStockReader reads the catalog's product table
type ProductStockReader interface {
	FindByID(ctx context.Context, ownerID, productID uuid.UUID) (*ProductStock, error)
	// FindMissingCostLayers returns products with stock > 0 and no active layer.
	// ownerID nil means all owners.
	FindMissingCostLayers(ctx context.Context, ownerID *uuid.UUID) ([]ProductStock, error)
}

// ProductLocker serializes work on one product for the current transaction
type ProductLocker interface {
	LockProduct(ctx context.Context, ownerID, productID uuid.UUID) error
}
