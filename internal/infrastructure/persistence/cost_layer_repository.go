package persistence

import (
	"context"
	"fmt"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fifoOrder is the consumption order of layers within a product
const fifoOrder = "acquired_at ASC, id ASC"

// GormCostLayerRepository implements CostLayerRepository using GORM
type GormCostLayerRepository struct {
	db *gorm.DB
}

// NewGormCostLayerRepository creates a new GormCostLayerRepository
func NewGormCostLayerRepository(db *gorm.DB) *GormCostLayerRepository {
	return &GormCostLayerRepository{db: db}
}

// Create inserts a new layer
func (r *GormCostLayerRepository) Create(ctx context.Context, layer *valuation.CostLayer) error {
	if err := layer.CheckBounds(); err != nil {
		return err
	}
	m := models.CostLayerModelFromDomain(layer)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return classifyError(err, layer.ProductID, "create_layer")
	}
	return nil
}

// UpdateRemaining writes the remaining quantity of each layer. Only
// remaining_quantity and updated_at are ever updated.
func (r *GormCostLayerRepository) UpdateRemaining(ctx context.Context, layers ...*valuation.CostLayer) error {
	for _, layer := range layers {
		if err := layer.CheckBounds(); err != nil {
			return err
		}
		result := r.db.WithContext(ctx).
			Model(&models.CostLayerModel{}).
			Where("id = ?", layer.ID).
			Updates(map[string]any{
				"remaining_quantity": layer.RemainingQuantity,
				"updated_at":         layer.UpdatedAt,
			})
		if result.Error != nil {
			return classifyError(result.Error, layer.ProductID, "update_layer")
		}
		if result.RowsAffected != 1 {
			return &valuation.InvariantViolationError{
				Entity: "cost_layer",
				ID:     layer.ID,
				Detail: fmt.Sprintf("expected 1 row updated, got %d", result.RowsAffected),
			}
		}
	}
	return nil
}

// FindActiveForUpdate returns the layers that still hold units, oldest first,
// with FOR UPDATE row locks on PostgreSQL. SQLite drops the locking clause.
func (r *GormCostLayerRepository) FindActiveForUpdate(ctx context.Context, ownerID, productID uuid.UUID) ([]*valuation.CostLayer, error) {
	var rows []models.CostLayerModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(ofProduct(ownerID, productID), withRemaining).
		Order(fifoOrder).
		Find(&rows).Error
	if err != nil {
		return nil, classifyError(err, productID, "find_layers")
	}
	return toDomainLayers(rows), nil
}

// FindByProduct returns every layer of the product, oldest first
func (r *GormCostLayerRepository) FindByProduct(ctx context.Context, ownerID, productID uuid.UUID) ([]*valuation.CostLayer, error) {
	var rows []models.CostLayerModel
	err := r.db.WithContext(ctx).
		Scopes(ofProduct(ownerID, productID)).
		Order(fifoOrder).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainLayers(rows), nil
}

// HasActive reports whether any layer of the product still holds units
func (r *GormCostLayerRepository) HasActive(ctx context.Context, ownerID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CostLayerModel{}).
		Scopes(ofProduct(ownerID, productID), withRemaining).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func toDomainLayers(rows []models.CostLayerModel) []*valuation.CostLayer {
	layers := make([]*valuation.CostLayer, len(rows))
	for i := range rows {
		layers[i] = rows[i].ToDomain()
	}
	return layers
}

// Ensure GormCostLayerRepository implements CostLayerRepository
var _ valuation.CostLayerRepository = (*GormCostLayerRepository)(nil)
