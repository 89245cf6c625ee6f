package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erp/valuation/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus stopped")

// InMemoryEventBus delivers events synchronously to in-process handlers.
// A failing or panicking handler does not prevent delivery to the others;
// its error is returned to the publisher joined with the rest.
type InMemoryEventBus struct {
	mu     sync.Mutex // serializes writers of routes
	routes atomic.Pointer[routeTable]
	logger *zap.Logger

	// state guards running and every inflight.Add, so Stop never waits
	// while a publish is still being admitted
	state    sync.RWMutex
	running  bool
	inflight sync.WaitGroup
}

// routeTable is replaced, never mutated, so Publish reads it without locking.
// wildcard handlers run after the typed ones.
type routeTable struct {
	typed    map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

func (t *routeTable) handlersFor(eventType string) []shared.EventHandler {
	typed := t.typed[eventType]
	if len(t.wildcard) == 0 {
		return typed
	}
	out := make([]shared.EventHandler, 0, len(typed)+len(t.wildcard))
	return append(append(out, typed...), t.wildcard...)
}

func (t *routeTable) with(handler shared.EventHandler, eventTypes []string) *routeTable {
	next := &routeTable{typed: make(map[string][]shared.EventHandler, len(t.typed)+len(eventTypes))}
	for k, v := range t.typed {
		next.typed[k] = v
	}
	next.wildcard = t.wildcard
	if len(eventTypes) == 0 {
		next.wildcard = append(append([]shared.EventHandler(nil), t.wildcard...), handler)
		return next
	}
	for _, et := range eventTypes {
		next.typed[et] = append(append([]shared.EventHandler(nil), t.typed[et]...), handler)
	}
	return next
}

func (t *routeTable) without(handler shared.EventHandler) *routeTable {
	drop := func(in []shared.EventHandler) []shared.EventHandler {
		var out []shared.EventHandler
		for _, h := range in {
			if h != handler {
				out = append(out, h)
			}
		}
		return out
	}
	next := &routeTable{typed: make(map[string][]shared.EventHandler, len(t.typed)), wildcard: drop(t.wildcard)}
	for k, v := range t.typed {
		if kept := drop(v); len(kept) > 0 {
			next.typed[k] = kept
		}
	}
	return next
}

// NewInMemoryEventBus creates a running in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{logger: logger.Named("event_bus")}
	b.routes.Store(&routeTable{typed: map[string][]shared.EventHandler{}})
	b.running = true
	return b
}

// Publish delivers events in order to every handler subscribed to their type
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.state.RLock()
	if !b.running {
		b.state.RUnlock()
		return ErrBusStopped
	}
	b.inflight.Add(1)
	b.state.RUnlock()
	defer b.inflight.Done()

	routes := b.routes.Load()
	var errs []error
	for _, event := range events {
		for _, handler := range routes.handlersFor(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used; an empty list subscribes to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.mu.Lock()
	b.routes.Store(b.routes.Load().with(handler, eventTypes))
	b.mu.Unlock()
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes.Store(b.routes.Load().without(handler))
}

// Start (re)opens the bus for publishing
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.state.Lock()
	b.running = true
	b.state.Unlock()
	b.logger.Info("event bus started")
	return nil
}

// Stop rejects new publishes and waits for in-flight deliveries or ctx
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.state.Lock()
	b.running = false
	b.state.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", event.EventType(), r)
		}
	}()
	return handler.Handle(ctx, event)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
