package persistence

import (
	"context"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConsumptionRepository implements ConsumptionRepository using GORM
type GormConsumptionRepository struct {
	db *gorm.DB
}

// NewGormConsumptionRepository creates a new GormConsumptionRepository
func NewGormConsumptionRepository(db *gorm.DB) *GormConsumptionRepository {
	return &GormConsumptionRepository{db: db}
}

// CreateBatch inserts consumption records. Records are never updated.
func (r *GormConsumptionRepository) CreateBatch(ctx context.Context, consumptions []valuation.CostLayerConsumption) error {
	if len(consumptions) == 0 {
		return nil
	}
	rows := make([]models.CostLayerConsumptionModel, len(consumptions))
	for i, c := range consumptions {
		if err := c.Event.Validate(); err != nil {
			return err
		}
		rows[i] = models.CostLayerConsumptionModelFromDomain(c)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// FindByLayer returns the consumptions of one layer, oldest first
func (r *GormConsumptionRepository) FindByLayer(ctx context.Context, layerID uuid.UUID) ([]valuation.CostLayerConsumption, error) {
	var rows []models.CostLayerConsumptionModel
	if err := r.db.WithContext(ctx).
		Where("cost_layer_id = ?", layerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	consumptions := make([]valuation.CostLayerConsumption, 0, len(rows))
	for i := range rows {
		c, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		consumptions = append(consumptions, c)
	}
	return consumptions, nil
}

// SumByLayer returns the consumed quantity per layer. Layers without
// consumptions are absent from the map.
func (r *GormConsumptionRepository) SumByLayer(ctx context.Context, layerIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	sums := make(map[uuid.UUID]int64, len(layerIDs))
	if len(layerIDs) == 0 {
		return sums, nil
	}

	var rows []struct {
		CostLayerID uuid.UUID
		Total       int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.CostLayerConsumptionModel{}).
		Select("cost_layer_id, SUM(quantity_consumed) AS total").
		Where("cost_layer_id IN ?", layerIDs).
		Group("cost_layer_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		sums[row.CostLayerID] = row.Total
	}
	return sums, nil
}

// Ensure GormConsumptionRepository implements ConsumptionRepository
var _ valuation.ConsumptionRepository = (*GormConsumptionRepository)(nil)
