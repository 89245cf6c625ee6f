package persistence

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	appval "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgresTestDB starts a PostgreSQL container and applies the SQL
// migrations. The test is skipped when Docker is unavailable.
func setupPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("valuation_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	wd, err := os.Getwd()
	require.NoError(t, err)
	path := migration.FindMigrationsPath(wd)
	require.NotEmpty(t, path, "Could not find migrations directory")

	m, err := migration.New(sqlDB, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func newPostgresService(t *testing.T, db *gorm.DB, lockTimeout time.Duration, maxRetries int) *appval.ValuationService {
	t.Helper()
	return appval.NewValuationService(
		NewGormTransactionScope(db, lockTimeout),
		NewGormCostLayerRepository(db),
		NewGormLedgerRepository(db),
		zaptest.NewLogger(t),
		appval.ServiceConfig{
			OperationTimeout: 10 * time.Second,
			MaxRetries:       maxRetries,
			RetryBackoff:     10 * time.Millisecond,
		},
	)
}

func TestPostgres_ConcurrentOversubscription(t *testing.T) {
	db := setupPostgresTestDB(t)
	svc := newPostgresService(t, db, 5*time.Second, 3)
	ctx := context.Background()
	ownerID, productID := uuid.New(), uuid.New()

	_, err := svc.ReceiveStock(ctx, appval.ReceiveStockRequest{
		OwnerID: ownerID, ProductID: productID, Quantity: 6, UnitCost: 100, AcquiredAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.ReceiveStock(ctx, appval.ReceiveStockRequest{
		OwnerID: ownerID, ProductID: productID, Quantity: 4, UnitCost: 200, AcquiredAt: time.Now(),
	})
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	var g errgroup.Group
	for range 2 {
		g.Go(func() error {
			_, err := svc.RemoveStock(ctx, appval.RemoveStockRequest{
				OwnerID:   ownerID,
				ProductID: productID,
				Quantity:  7,
				Event:     valuation.OrderLine(uuid.New()),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case valuation.IsInsufficientCostLayers(err):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	layers, err := svc.ListLayers(ctx, ownerID, productID, false)
	require.NoError(t, err)
	var remaining int64
	for _, l := range layers {
		remaining += l.RemainingQuantity
	}
	assert.Equal(t, int64(3), remaining)

	balance, err := svc.CurrentBalance(ctx, ownerID, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.BalanceQty)
	assert.Equal(t, int64(3), balance.Sequence)

	entries, _, err := NewGormLedgerRepository(db).FindByScope(ctx, ownerID, productID, shared.Filter{})
	require.NoError(t, err)
	assert.NoError(t, valuation.VerifyChain(entries))
}

func TestPostgres_LockTimeoutSurfacesAsContention(t *testing.T) {
	db := setupPostgresTestDB(t)
	svc := newPostgresService(t, db, 100*time.Millisecond, 1)
	ctx := context.Background()
	ownerID, productID := uuid.New(), uuid.New()

	_, err := svc.ReceiveStock(ctx, appval.ReceiveStockRequest{
		OwnerID: ownerID, ProductID: productID, Quantity: 5, UnitCost: 100,
	})
	require.NoError(t, err)

	holder := db.Begin()
	require.NoError(t, holder.Error)
	defer holder.Rollback()
	require.NoError(t, NewGormProductLocker(holder, 0).LockProduct(ctx, ownerID, productID))

	_, err = svc.RemoveStock(ctx, appval.RemoveStockRequest{
		OwnerID:   ownerID,
		ProductID: productID,
		Quantity:  1,
		Event:     valuation.OrderLine(uuid.New()),
	})
	require.Error(t, err)
	assert.True(t, valuation.IsRetryable(err))

	var contention *valuation.ContentionError
	require.ErrorAs(t, err, &contention)
	assert.Equal(t, productID, contention.ProductID)

	// nothing was consumed while the lock was held elsewhere
	layers, err := svc.ListLayers(ctx, ownerID, productID, true)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, int64(5), layers[0].RemainingQuantity)
}

func TestPostgres_CheckConstraintsRejectOutOfBoundsLayer(t *testing.T) {
	db := setupPostgresTestDB(t)
	ctx := context.Background()
	repo := NewGormCostLayerRepository(db)

	layer, err := valuation.NewCostLayer(uuid.New(), uuid.New(), 5, 100, time.Now(), "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, layer))

	err = db.Exec("UPDATE cost_layers SET remaining_quantity = 6 WHERE id = ?", layer.ID).Error
	assert.Error(t, err)
}
