package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type serviceFixture struct {
	ownerID     uuid.UUID
	productID   uuid.UUID
	layers      *MockCostLayerRepository
	consumption *MockConsumptionRepository
	ledger      *MockLedgerRepository
	locker      *MockProductLocker
	publisher   *MockEventPublisher
	metrics     *recordingMetrics
	service     *ValuationService
}

func newServiceFixture(t *testing.T, cfg ServiceConfig) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		ownerID:     uuid.New(),
		productID:   uuid.New(),
		layers:      new(MockCostLayerRepository),
		consumption: new(MockConsumptionRepository),
		ledger:      new(MockLedgerRepository),
		locker:      new(MockProductLocker),
		publisher:   NewMockEventPublisher(),
		metrics:     &recordingMetrics{},
	}
	scope := NewNoOpTransactionScope(f.layers, f.consumption, f.ledger, f.locker)
	f.service = NewValuationService(scope, f.layers, f.ledger, zap.NewNop(), cfg)
	f.service.SetEventPublisher(f.publisher)
	f.service.SetMetrics(f.metrics)
	return f
}

func (f *serviceFixture) layer(t *testing.T, qty, unitCost int64, acquiredAt time.Time) *valuation.CostLayer {
	t.Helper()
	l, err := valuation.NewCostLayer(f.ownerID, f.productID, qty, unitCost, acquiredAt, "PO-1")
	require.NoError(t, err)
	return l
}

func (f *serviceFixture) previousEntry(balanceQty, sequence int64) *valuation.LedgerEntry {
	q := balanceQty
	return &valuation.LedgerEntry{
		ID:         uuid.New(),
		OwnerID:    f.ownerID,
		ProductID:  f.productID,
		Type:       valuation.EntryTypeStockIn,
		Category:   valuation.CategoryInventory,
		Quantity:   &q,
		BalanceQty: balanceQty,
		Sequence:   sequence,
	}
}

func fastConfig() ServiceConfig {
	return ServiceConfig{OperationTimeout: time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestValuationService_RemoveStock_ConsumesOldestLayersFirst(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	ctx := context.Background()

	l1 := f.layer(t, 5, 100, baseTime)
	l2 := f.layer(t, 5, 120, baseTime.Add(time.Hour))
	l3 := f.layer(t, 5, 150, baseTime.Add(2*time.Hour))
	orderItemID := uuid.New()

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
	f.layers.On("FindActiveForUpdate", mock.Anything, f.ownerID, f.productID).
		Return([]*valuation.CostLayer{l3, l1, l2}, nil)
	f.layers.On("UpdateRemaining", mock.Anything, mock.Anything).Return(nil)
	f.consumption.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, f.productID).Return(f.previousEntry(15, 3), nil)
	f.ledger.On("Append", mock.Anything, mock.AnythingOfType("*valuation.LedgerEntry")).Return(nil)

	resp, err := f.service.RemoveStock(ctx, RemoveStockRequest{
		OwnerID:   f.ownerID,
		ProductID: f.productID,
		Quantity:  7,
		Event:     valuation.OrderLine(orderItemID),
		Reference: "SO-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), resp.Quantity)
	assert.Equal(t, int64(740), resp.TotalCost)
	assert.True(t, decimal.RequireFromString("105.7143").Equal(resp.AverageUnitCost))
	require.Len(t, resp.Consumptions, 2)
	assert.Equal(t, l1.ID, resp.Consumptions[0].CostLayerID)
	assert.Equal(t, int64(5), resp.Consumptions[0].QuantityConsumed)
	assert.Equal(t, l2.ID, resp.Consumptions[1].CostLayerID)
	assert.Equal(t, int64(2), resp.Consumptions[1].QuantityConsumed)
	assert.Equal(t, orderItemID, resp.Consumptions[0].EventID)

	assert.Equal(t, []int64{0, 3, 5}, []int64{l1.RemainingQuantity, l2.RemainingQuantity, l3.RemainingQuantity})

	assert.Equal(t, "stock_out", resp.LedgerEntry.Type)
	require.NotNil(t, resp.LedgerEntry.Quantity)
	assert.Equal(t, int64(-7), *resp.LedgerEntry.Quantity)
	assert.Equal(t, int64(8), resp.LedgerEntry.BalanceQty)
	assert.Equal(t, int64(4), resp.LedgerEntry.Sequence)

	f.layers.AssertCalled(t, "UpdateRemaining", mock.Anything, []*valuation.CostLayer{l1, l2})
	assert.Len(t, f.publisher.GetEventsByType(valuation.EventTypeCostLayersConsumed), 1)
	assert.Len(t, f.publisher.GetEventsByType(valuation.EventTypeLedgerEntryPosted), 1)
	assert.Equal(t, 1, f.metrics.allocations)
	assert.Equal(t, []string{"stock_out"}, f.metrics.ledger)
}

func TestValuationService_RemoveStock_AdjustmentPostsAdjustmentEntry(t *testing.T) {
	f := newServiceFixture(t, fastConfig())

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
	f.layers.On("FindActiveForUpdate", mock.Anything, f.ownerID, f.productID).
		Return([]*valuation.CostLayer{f.layer(t, 4, 100, baseTime)}, nil)
	f.layers.On("UpdateRemaining", mock.Anything, mock.Anything).Return(nil)
	f.consumption.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, f.productID).Return(f.previousEntry(4, 1), nil)
	f.ledger.On("Append", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.service.RemoveStock(context.Background(), RemoveStockRequest{
		OwnerID:   f.ownerID,
		ProductID: f.productID,
		Quantity:  1,
		Event:     valuation.Adjustment(uuid.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, "adjustment", resp.LedgerEntry.Type)
	assert.Equal(t, "adjustment", resp.Consumptions[0].EventKind)
}

func TestValuationService_RemoveStock_ShortfallWritesNothing(t *testing.T) {
	f := newServiceFixture(t, fastConfig())

	l1 := f.layer(t, 5, 100, baseTime)
	l2 := f.layer(t, 3, 120, baseTime.Add(time.Hour))
	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
	f.layers.On("FindActiveForUpdate", mock.Anything, f.ownerID, f.productID).
		Return([]*valuation.CostLayer{l1, l2}, nil)

	_, err := f.service.RemoveStock(context.Background(), RemoveStockRequest{
		OwnerID:   f.ownerID,
		ProductID: f.productID,
		Quantity:  10,
		Event:     valuation.OrderLine(uuid.New()),
	})
	require.Error(t, err)

	var shortfall *valuation.InsufficientCostLayersError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, int64(10), shortfall.Requested)
	assert.Equal(t, int64(8), shortfall.Available)
	assert.Equal(t, int64(2), shortfall.Shortfall())
	assert.False(t, valuation.IsRetryable(err))

	assert.Equal(t, int64(5), l1.RemainingQuantity)
	assert.Equal(t, int64(3), l2.RemainingQuantity)
	f.layers.AssertNotCalled(t, "UpdateRemaining", mock.Anything, mock.Anything)
	f.consumption.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.GetEventsByType(valuation.EventTypeCostLayersConsumed))
	assert.Equal(t, 1, f.metrics.shortfalls)
	assert.Empty(t, f.metrics.contentions)
}

func TestValuationService_RemoveStock_RejectsInvalidRequests(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	ctx := context.Background()

	_, err := f.service.RemoveStock(ctx, RemoveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 0, Event: valuation.OrderLine(uuid.New()),
	})
	assert.ErrorIs(t, err, valuation.ErrInvalidQuantity)

	_, err = f.service.RemoveStock(ctx, RemoveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 1,
	})
	assert.ErrorIs(t, err, valuation.ErrInvalidConsumingEvent)

	f.locker.AssertNotCalled(t, "LockProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestValuationService_RetriesContention(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	contention := valuation.NewContentionError(f.productID, "lock_product", errors.New("lock timeout"))

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(contention).Once()
	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
	f.layers.On("FindActiveForUpdate", mock.Anything, f.ownerID, f.productID).
		Return([]*valuation.CostLayer{f.layer(t, 5, 100, baseTime)}, nil)
	f.layers.On("UpdateRemaining", mock.Anything, mock.Anything).Return(nil)
	f.consumption.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, f.productID).Return(f.previousEntry(5, 1), nil)
	f.ledger.On("Append", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.service.RemoveStock(context.Background(), RemoveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 2, Event: valuation.OrderLine(uuid.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200), resp.TotalCost)
	assert.Equal(t, []bool{true}, f.metrics.contentions)
	f.layers.AssertNumberOfCalls(t, "FindActiveForUpdate", 1)
}

func TestValuationService_GivesUpAfterMaxRetries(t *testing.T) {
	f := newServiceFixture(t, ServiceConfig{OperationTimeout: time.Second, MaxRetries: 1, RetryBackoff: time.Millisecond})
	contention := valuation.NewContentionError(f.productID, "lock_product", errors.New("lock timeout"))

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(contention)

	_, err := f.service.RemoveStock(context.Background(), RemoveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 2, Event: valuation.OrderLine(uuid.New()),
	})
	require.Error(t, err)

	var ce *valuation.ContentionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, f.productID, ce.ProductID)
	assert.True(t, valuation.IsRetryable(err))
	assert.Equal(t, []bool{true, false}, f.metrics.contentions)
	f.locker.AssertNumberOfCalls(t, "LockProduct", 2)
	f.layers.AssertNotCalled(t, "FindActiveForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestValuationService_OperationTimeoutBecomesContention(t *testing.T) {
	f := newServiceFixture(t, ServiceConfig{OperationTimeout: 20 * time.Millisecond, MaxRetries: 0})

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	_, err := f.service.RemoveStock(context.Background(), RemoveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 1, Event: valuation.OrderLine(uuid.New()),
	})
	require.Error(t, err)

	var ce *valuation.ContentionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, valuation.ErrContention)
}

func TestValuationService_InvariantViolationIsNotRetried(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	violation := &valuation.InvariantViolationError{Entity: "cost_layer", ID: uuid.New(), Detail: "row vanished"}

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
	f.layers.On("FindActiveForUpdate", mock.Anything, f.ownerID, f.productID).
		Return([]*valuation.CostLayer{f.layer(t, 5, 100, baseTime)}, nil)
	f.layers.On("UpdateRemaining", mock.Anything, mock.Anything).Return(violation)

	_, err := f.service.RemoveStock(context.Background(), RemoveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 1, Event: valuation.OrderLine(uuid.New()),
	})
	require.Error(t, err)
	assert.True(t, valuation.IsInvariantViolation(err))
	f.layers.AssertNumberOfCalls(t, "FindActiveForUpdate", 1)
	assert.Empty(t, f.metrics.contentions)
}

func TestValuationService_DistributedLock(t *testing.T) {
	t.Run("released after the unit of work", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		dist := new(MockDistributedLocker)
		dist.On("Acquire", mock.Anything, f.ownerID, f.productID).Return(nil)
		f.service.SetDistributedLocker(dist)

		f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
		f.layers.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, f.productID).Return(nil, nil)
		f.ledger.On("Append", mock.Anything, mock.Anything).Return(nil)

		_, err := f.service.ReceiveStock(context.Background(), ReceiveStockRequest{
			OwnerID: f.ownerID, ProductID: f.productID, Quantity: 5, UnitCost: 100, AcquiredAt: baseTime,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, dist.Released())
	})

	t.Run("held elsewhere surfaces contention", func(t *testing.T) {
		f := newServiceFixture(t, ServiceConfig{OperationTimeout: time.Second, MaxRetries: 0})
		dist := new(MockDistributedLocker)
		dist.On("Acquire", mock.Anything, f.ownerID, f.productID).
			Return(valuation.NewContentionError(f.productID, "distributed_lock", nil))
		f.service.SetDistributedLocker(dist)

		_, err := f.service.ReceiveStock(context.Background(), ReceiveStockRequest{
			OwnerID: f.ownerID, ProductID: f.productID, Quantity: 5, UnitCost: 100, AcquiredAt: baseTime,
		})
		assert.ErrorIs(t, err, valuation.ErrContention)
		f.layers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Equal(t, 0, dist.Released())
	})
}

func TestValuationService_PublishFailureDoesNotFailOperation(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	f.publisher.err = errors.New("bus down")

	f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
	f.layers.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, f.productID).Return(nil, nil)
	f.ledger.On("Append", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.service.ReceiveStock(context.Background(), ReceiveStockRequest{
		OwnerID: f.ownerID, ProductID: f.productID, Quantity: 5, UnitCost: 100, AcquiredAt: baseTime,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Layer.RemainingQuantity)
	assert.Len(t, f.publisher.GetEventsByType(valuation.EventTypeCostLayerCreated), 1)
}

func TestValuationService_ReceiveStock(t *testing.T) {
	t.Run("creates a full layer and a stock_in entry", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		f.locker.On("LockProduct", mock.Anything, f.ownerID, f.productID).Return(nil)
		f.layers.On("Create", mock.Anything, mock.AnythingOfType("*valuation.CostLayer")).Return(nil)
		f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, f.productID).Return(f.previousEntry(3, 2), nil)
		f.ledger.On("Append", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.ReceiveStock(context.Background(), ReceiveStockRequest{
			OwnerID:    f.ownerID,
			ProductID:  f.productID,
			Quantity:   10,
			UnitCost:   250,
			AcquiredAt: baseTime,
			Reference:  "PO-7",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(10), resp.Layer.Quantity)
		assert.Equal(t, int64(10), resp.Layer.RemainingQuantity)
		assert.Equal(t, int64(250), resp.Layer.UnitCost)
		assert.Equal(t, "stock_in", resp.LedgerEntry.Type)
		assert.Equal(t, int64(13), resp.LedgerEntry.BalanceQty)
		assert.Equal(t, int64(3), resp.LedgerEntry.Sequence)
		f.consumption.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	})

	t.Run("rejects entry types that do not add stock", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		_, err := f.service.ReceiveStock(context.Background(), ReceiveStockRequest{
			OwnerID: f.ownerID, ProductID: f.productID, Quantity: 1, UnitCost: 1,
			AcquiredAt: baseTime, EntryType: valuation.EntryTypeStockOut,
		})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, valuation.CodeInvalidLedgerEntry, de.Code)
	})

	t.Run("rejects negative unit cost before touching storage", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		_, err := f.service.ReceiveStock(context.Background(), ReceiveStockRequest{
			OwnerID: f.ownerID, ProductID: f.productID, Quantity: 1, UnitCost: -1, AcquiredAt: baseTime,
		})
		assert.ErrorIs(t, err, valuation.ErrInvalidUnitCost)
		f.locker.AssertNotCalled(t, "LockProduct", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestValuationService_PostFinancial(t *testing.T) {
	t.Run("owner-level sale", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		f.locker.On("LockProduct", mock.Anything, f.ownerID, uuid.Nil).Return(nil)
		f.ledger.On("LatestForUpdate", mock.Anything, f.ownerID, uuid.Nil).Return(nil, nil)
		f.ledger.On("Append", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.PostFinancial(context.Background(), PostFinancialRequest{
			OwnerID: f.ownerID,
			Type:    valuation.EntryTypeSale,
			Amount:  1999,
		})
		require.NoError(t, err)
		assert.Nil(t, resp.ProductID)
		assert.Equal(t, "financial", resp.Category)
		assert.Equal(t, int64(1999), resp.BalanceAmount)
		assert.Equal(t, int64(0), resp.BalanceQty)
		assert.Equal(t, int64(1), resp.Sequence)
	})

	t.Run("inventory types are rejected", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		_, err := f.service.PostFinancial(context.Background(), PostFinancialRequest{
			OwnerID: f.ownerID, Type: valuation.EntryTypeStockIn, Amount: 10,
		})
		require.Error(t, err)
		f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("expense must be negative", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		_, err := f.service.PostFinancial(context.Background(), PostFinancialRequest{
			OwnerID: f.ownerID, Type: valuation.EntryTypeExpense, Amount: 10,
		})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, valuation.CodeInvalidLedgerEntry, de.Code)
	})
}

func TestValuationService_CurrentBalance(t *testing.T) {
	t.Run("empty chain is zero", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		f.ledger.On("Latest", mock.Anything, f.ownerID, f.productID).Return(nil, nil)

		resp, err := f.service.CurrentBalance(context.Background(), f.ownerID, f.productID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), resp.BalanceQty)
		assert.Equal(t, int64(0), resp.Sequence)
		assert.Nil(t, resp.AsOf)
		require.NotNil(t, resp.ProductID)
		assert.Equal(t, f.productID, *resp.ProductID)
	})

	t.Run("newest entry carries the balance", func(t *testing.T) {
		f := newServiceFixture(t, fastConfig())
		latest := f.previousEntry(12, 7)
		latest.CreatedAt = baseTime
		f.ledger.On("Latest", mock.Anything, f.ownerID, f.productID).Return(latest, nil)

		resp, err := f.service.CurrentBalance(context.Background(), f.ownerID, f.productID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), resp.BalanceQty)
		assert.Equal(t, int64(7), resp.Sequence)
		require.NotNil(t, resp.AsOf)
		assert.Equal(t, baseTime, *resp.AsOf)
	})
}

func TestValuationService_ListLayersAndReport(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	drained := f.layer(t, 4, 90, baseTime)
	require.NoError(t, drained.Consume(4))
	partial := f.layer(t, 5, 100, baseTime.Add(time.Hour))
	require.NoError(t, partial.Consume(2))
	full := f.layer(t, 2, 150, baseTime.Add(2*time.Hour))
	f.layers.On("FindByProduct", mock.Anything, f.ownerID, f.productID).
		Return([]*valuation.CostLayer{drained, partial, full}, nil)

	all, err := f.service.ListLayers(context.Background(), f.ownerID, f.productID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := f.service.ListLayers(context.Background(), f.ownerID, f.productID, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, partial.ID, active[0].ID)
	assert.Equal(t, full.ID, active[1].ID)

	report, err := f.service.ValuationReport(context.Background(), f.ownerID, f.productID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.OnHand)
	assert.Equal(t, 2, report.ActiveLayers)
	assert.Equal(t, int64(600), report.TotalValue)
	assert.True(t, decimal.NewFromInt(120).Equal(report.AverageUnitCost))
}

func TestValuationService_ListLedger(t *testing.T) {
	f := newServiceFixture(t, fastConfig())
	filter := shared.Filter{Page: 2, PageSize: 1, OrderDir: "asc"}
	f.ledger.On("FindByScope", mock.Anything, f.ownerID, f.productID, filter).
		Return([]valuation.LedgerEntry{*f.previousEntry(5, 2)}, int64(3), nil)

	page, err := f.service.ListLedger(context.Background(), f.ownerID, f.productID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].Sequence)
}
