package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testBaseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// setupValuationTestDB opens an in-memory SQLite database with the valuation
// tables and the products read model
func setupValuationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, db.AutoMigrate(&models.ProductModel{}))
	return db
}

func createTestLayer(t *testing.T, db *gorm.DB, ownerID, productID uuid.UUID, qty, unitCost int64, acquiredAt time.Time) *valuation.CostLayer {
	t.Helper()

	layer, err := valuation.NewCostLayer(ownerID, productID, qty, unitCost, acquiredAt, "PO-1")
	require.NoError(t, err)
	require.NoError(t, NewGormCostLayerRepository(db).Create(context.Background(), layer))
	return layer
}

func layerIDs(layers []*valuation.CostLayer) []uuid.UUID {
	ids := make([]uuid.UUID, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return ids
}
