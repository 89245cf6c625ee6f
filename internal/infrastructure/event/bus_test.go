package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	types []string
	err   error
	panic bool

	mu       sync.Mutex
	received []shared.DomainEvent
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panic {
		panic("handler exploded")
	}
	h.mu.Lock()
	h.received = append(h.received, event)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func newLayerEvent(t *testing.T) *valuation.CostLayerCreatedEvent {
	t.Helper()
	layer, err := valuation.NewCostLayer(uuid.New(), uuid.New(), 5, 100, time.Now(), "PO-1")
	require.NoError(t, err)
	return valuation.NewCostLayerCreatedEvent(layer)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	t.Run("routes by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		created := &recordingHandler{types: []string{valuation.EventTypeCostLayerCreated}}
		posted := &recordingHandler{types: []string{valuation.EventTypeLedgerEntryPosted}}
		bus.Subscribe(created)
		bus.Subscribe(posted)

		require.NoError(t, bus.Publish(context.Background(), newLayerEvent(t)))

		assert.Equal(t, 1, created.count())
		assert.Equal(t, 0, posted.count())
	})

	t.Run("handler without types receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		all := &recordingHandler{}
		bus.Subscribe(all)

		layer, err := valuation.NewCostLayer(uuid.New(), uuid.New(), 5, 100, time.Now(), "")
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(),
			valuation.NewCostLayerCreatedEvent(layer),
			valuation.NewCostLayerBackfilledEvent(layer),
		))

		assert.Equal(t, 2, all.count())
	})

	t.Run("explicit types override handler types", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		h := &recordingHandler{types: []string{valuation.EventTypeLedgerEntryPosted}}
		bus.Subscribe(h, valuation.EventTypeCostLayerCreated)

		require.NoError(t, bus.Publish(context.Background(), newLayerEvent(t)))
		assert.Equal(t, 1, h.count())
	})

	t.Run("failing and panicking handlers do not block others", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		bus := NewInMemoryEventBus(zap.New(core))

		boom := errors.New("boom")
		failing := &recordingHandler{types: []string{valuation.EventTypeCostLayerCreated}, err: boom}
		panicking := &recordingHandler{types: []string{valuation.EventTypeCostLayerCreated}, panic: true}
		healthy := &recordingHandler{types: []string{valuation.EventTypeCostLayerCreated}}
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		err := bus.Publish(context.Background(), newLayerEvent(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "panicked")
		assert.Equal(t, 1, healthy.count())
		assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
	})

	t.Run("unsubscribed handler stops receiving", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		h := &recordingHandler{}
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(context.Background(), newLayerEvent(t)))
		assert.Equal(t, 0, h.count())
	})
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{}
	bus.Subscribe(h)

	require.NoError(t, bus.Stop(context.Background()))
	assert.ErrorIs(t, bus.Publish(context.Background(), newLayerEvent(t)), ErrBusStopped)

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newLayerEvent(t)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{}
	bus.Subscribe(h)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), newLayerEvent(t))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, h.count())
}

func TestInMemoryEventBus_StopWaitsForAdmittedPublishes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{}
	bus.Subscribe(h)

	var (
		wg        sync.WaitGroup
		delivered sync.Map
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := bus.Publish(context.Background(), newLayerEvent(t))
			if err == nil {
				delivered.Store(i, true)
				return
			}
			assert.ErrorIs(t, err, ErrBusStopped)
		}()
	}

	require.NoError(t, bus.Stop(context.Background()))
	handledAtStop := h.count()
	wg.Wait()

	accepted := 0
	delivered.Range(func(_, _ any) bool {
		accepted++
		return true
	})
	assert.Equal(t, accepted, h.count())
	assert.Equal(t, accepted, handledAtStop)
}

func TestRouteTable(t *testing.T) {
	typed := &recordingHandler{}
	wildcard := &recordingHandler{}

	empty := &routeTable{typed: map[string][]shared.EventHandler{}}
	table := empty.
		with(typed, []string{valuation.EventTypeCostLayerCreated, valuation.EventTypeCostLayerBackfilled}).
		with(wildcard, nil)

	handlers := table.handlersFor(valuation.EventTypeCostLayerCreated)
	require.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])
	assert.Len(t, table.handlersFor(valuation.EventTypeLedgerEntryPosted), 1)
	assert.Empty(t, empty.handlersFor(valuation.EventTypeCostLayerCreated))

	pruned := table.without(typed)
	assert.Len(t, pruned.handlersFor(valuation.EventTypeCostLayerBackfilled), 1)
	assert.Empty(t, pruned.typed)
	assert.Len(t, table.typed, 2)
}
