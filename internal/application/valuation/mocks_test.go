package valuation

import (
	"context"
	"sync"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCostLayerRepository is a mock implementation of valuation.CostLayerRepository
type MockCostLayerRepository struct {
	mock.Mock
}

func (m *MockCostLayerRepository) Create(ctx context.Context, layer *valuation.CostLayer) error {
	args := m.Called(ctx, layer)
	return args.Error(0)
}

func (m *MockCostLayerRepository) UpdateRemaining(ctx context.Context, layers ...*valuation.CostLayer) error {
	args := m.Called(ctx, layers)
	return args.Error(0)
}

func (m *MockCostLayerRepository) FindActiveForUpdate(ctx context.Context, ownerID, productID uuid.UUID) ([]*valuation.CostLayer, error) {
	args := m.Called(ctx, ownerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*valuation.CostLayer), args.Error(1)
}

func (m *MockCostLayerRepository) FindByProduct(ctx context.Context, ownerID, productID uuid.UUID) ([]*valuation.CostLayer, error) {
	args := m.Called(ctx, ownerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*valuation.CostLayer), args.Error(1)
}

func (m *MockCostLayerRepository) HasActive(ctx context.Context, ownerID, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, ownerID, productID)
	return args.Bool(0), args.Error(1)
}

// MockConsumptionRepository is a mock implementation of valuation.ConsumptionRepository
type MockConsumptionRepository struct {
	mock.Mock
}

func (m *MockConsumptionRepository) CreateBatch(ctx context.Context, consumptions []valuation.CostLayerConsumption) error {
	args := m.Called(ctx, consumptions)
	return args.Error(0)
}

func (m *MockConsumptionRepository) FindByLayer(ctx context.Context, layerID uuid.UUID) ([]valuation.CostLayerConsumption, error) {
	args := m.Called(ctx, layerID)
	return args.Get(0).([]valuation.CostLayerConsumption), args.Error(1)
}

func (m *MockConsumptionRepository) SumByLayer(ctx context.Context, layerIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	args := m.Called(ctx, layerIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of valuation.LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entry *valuation.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) Latest(ctx context.Context, ownerID, productID uuid.UUID) (*valuation.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) LatestForUpdate(ctx context.Context, ownerID, productID uuid.UUID) (*valuation.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) FindByScope(ctx context.Context, ownerID, productID uuid.UUID, filter shared.Filter) ([]valuation.LedgerEntry, int64, error) {
	args := m.Called(ctx, ownerID, productID, filter)
	return args.Get(0).([]valuation.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

// MockProductLocker is a mock implementation of valuation.ProductLocker
type MockProductLocker struct {
	mock.Mock
}

func (m *MockProductLocker) LockProduct(ctx context.Context, ownerID, productID uuid.UUID) error {
	args := m.Called(ctx, ownerID, productID)
	return args.Error(0)
}

// MockProductStockReader is a mock implementation of valuation.ProductStockReader
type MockProductStockReader struct {
	mock.Mock
}

func (m *MockProductStockReader) FindByID(ctx context.Context, ownerID, productID uuid.UUID) (*valuation.ProductStock, error) {
	args := m.Called(ctx, ownerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.ProductStock), args.Error(1)
}

func (m *MockProductStockReader) FindMissingCostLayers(ctx context.Context, ownerID *uuid.UUID) ([]valuation.ProductStock, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]valuation.ProductStock), args.Error(1)
}

// MockDistributedLocker is a mock implementation of DistributedLocker
type MockDistributedLocker struct {
	mock.Mock
	mu       sync.Mutex
	released int
}

func (m *MockDistributedLocker) Acquire(ctx context.Context, ownerID, productID uuid.UUID) (func(context.Context) error, error) {
	args := m.Called(ctx, ownerID, productID)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released++
		return nil
	}, nil
}

func (m *MockDistributedLocker) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.err
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// recordingMetrics counts calls per measurement
type recordingMetrics struct {
	mu          sync.Mutex
	allocations int
	shortfalls  int
	contentions []bool
	backfilled  int64
	ledger      []string
}

func (r *recordingMetrics) AllocationCompleted(context.Context, int64, int64, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations++
}

func (r *recordingMetrics) AllocationShortfall(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortfalls++
}

func (r *recordingMetrics) ContentionObserved(_ context.Context, _ string, retried bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentions = append(r.contentions, retried)
}

func (r *recordingMetrics) LayersBackfilled(_ context.Context, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backfilled += count
}

func (r *recordingMetrics) LedgerEntryPosted(_ context.Context, entryType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = append(r.ledger, entryType)
}

var _ Metrics = (*recordingMetrics)(nil)
