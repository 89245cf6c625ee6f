package persistence

import (
	"context"
	"errors"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductStockRepository reads the catalog's products table
type GormProductStockRepository struct {
	db *gorm.DB
}

// NewGormProductStockRepository creates a new GormProductStockRepository
func NewGormProductStockRepository(db *gorm.DB) *GormProductStockRepository {
	return &GormProductStockRepository{db: db}
}

// FindByID finds a product of the owner
func (r *GormProductStockRepository) FindByID(ctx context.Context, ownerID, productID uuid.UUID) (*valuation.ProductStock, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, productID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	p := m.ToDomain()
	return &p, nil
}

// FindMissingCostLayers returns products holding stock with no active cost
// layer, ordered by owner and id so repeated runs visit them in the same order.
func (r *GormProductStockRepository) FindMissingCostLayers(ctx context.Context, ownerID *uuid.UUID) ([]valuation.ProductStock, error) {
	active := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.CostLayerModel{}).
		Select("1").
		Where("cost_layers.owner_id = products.owner_id AND cost_layers.product_id = products.id AND cost_layers.remaining_quantity > 0")

	query := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("products.stock > 0").
		Where("NOT EXISTS (?)", active)
	if ownerID != nil {
		query = query.Where("products.owner_id = ?", *ownerID)
	}

	var rows []models.ProductModel
	if err := query.Order("products.owner_id ASC, products.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	products := make([]valuation.ProductStock, len(rows))
	for i := range rows {
		products[i] = rows[i].ToDomain()
	}
	return products, nil
}

// Ensure GormProductStockRepository implements ProductStockReader
var _ valuation.ProductStockReader = (*GormProductStockRepository)(nil)
