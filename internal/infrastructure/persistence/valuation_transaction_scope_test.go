package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appval "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("commits layer and ledger entry together", func(t *testing.T) {
		db := setupValuationTestDB(t)
		scope := NewGormTransactionScope(db, time.Second)
		ownerID, productID := uuid.New(), uuid.New()

		err := scope.Execute(ctx, func(repos appval.TransactionalRepositories) error {
			require.NoError(t, repos.ProductLocker().LockProduct(ctx, ownerID, productID))

			layer, err := valuation.NewCostLayer(ownerID, productID, 4, 250, testBaseTime, "PO-9")
			require.NoError(t, err)
			if err := repos.LayerRepo().Create(ctx, layer); err != nil {
				return err
			}
			entry, err := valuation.NextLedgerEntry(nil, valuation.LedgerPosting{
				OwnerID:   ownerID,
				ProductID: productID,
				Type:      valuation.EntryTypeStockIn,
				Quantity:  4,
			}, testBaseTime)
			require.NoError(t, err)
			return repos.LedgerRepo().Append(ctx, entry)
		})
		require.NoError(t, err)

		has, err := NewGormCostLayerRepository(db).HasActive(ctx, ownerID, productID)
		require.NoError(t, err)
		assert.True(t, has)
		latest, err := NewGormLedgerRepository(db).Latest(ctx, ownerID, productID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, int64(4), latest.BalanceQty)
	})

	t.Run("rolls back every repository on error", func(t *testing.T) {
		db := setupValuationTestDB(t)
		scope := NewGormTransactionScope(db, time.Second)
		ownerID, productID := uuid.New(), uuid.New()
		boom := errors.New("boom")

		err := scope.Execute(ctx, func(repos appval.TransactionalRepositories) error {
			layer, err := valuation.NewCostLayer(ownerID, productID, 4, 250, testBaseTime, "")
			require.NoError(t, err)
			require.NoError(t, repos.LayerRepo().Create(ctx, layer))

			alloc, err := valuation.PlanFIFO(productID, []*valuation.CostLayer{layer}, 1, valuation.OrderLine(uuid.New()))
			require.NoError(t, err)
			require.NoError(t, repos.ConsumptionRepo().CreateBatch(ctx, alloc.Consumptions))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		layers, err := NewGormCostLayerRepository(db).FindByProduct(ctx, ownerID, productID)
		require.NoError(t, err)
		assert.Empty(t, layers)
	})
}
