// Package dispatch provides the in-process domain event dispatcher: a typed
// handler registry keyed by event type, with concurrent fan-out delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
)

// HandlerFunc handles a single domain event.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

// Dispatcher routes domain events to registered handlers. Resolution matches
// the event's own declared type name only; there is no polymorphic matching
// against embedded base types. That is a deliberate design choice: an event
// type names one fact, and handlers subscribe to facts, not hierarchies.
//
// Dispatcher is safe for concurrent use. Registration is expected to happen
// during startup, before dispatching begins.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register adds a handler for an event type.
func (d *Dispatcher) Register(eventType string, handler HandlerFunc) error {
	if eventType == "" {
		return errors.New("event type cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], handler)

	return nil
}

// On registers a statically typed handler for an event type. The adapter
// asserts the event's concrete type, so handlers never see events of a
// different shape published under the same type name.
func On[E event.DomainEvent](
	d *Dispatcher,
	eventType string,
	handler func(ctx context.Context, evt E) error,
) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	return d.Register(eventType, func(ctx context.Context, evt event.DomainEvent) error {
		typed, ok := evt.(E)
		if !ok {
			return fmt.Errorf("handler for %q expects %T, got %T", eventType, *new(E), evt)
		}
		return handler(ctx, typed)
	})
}

// HandlerCount returns the number of handlers registered for an event type.
func (d *Dispatcher) HandlerCount(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType])
}

// Dispatch delivers a batch of events. Every (event, handler) pair runs
// concurrently; the call waits for all of them. Events with no registered
// handlers are skipped silently. On failure every handler error is logged and
// an *Error aggregating all of them is returned, first failure first.
//
// The caller's context is passed to handlers as-is; one handler failing does
// not cancel its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, events []event.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	type invocation struct {
		evt     event.DomainEvent
		handler HandlerFunc
		index   int
	}

	d.mu.RLock()
	var pending []invocation
	for _, evt := range events {
		if evt == nil {
			continue
		}
		for i, handler := range d.handlers[evt.EventType()] {
			pending = append(pending, invocation{evt: evt, handler: handler, index: i})
		}
	}
	d.mu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	results := make([]error, len(pending))

	var wg sync.WaitGroup
	for i, inv := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := inv.handler(ctx, inv.evt); err != nil {
				results[i] = err
				d.logger.ErrorContext(ctx, "event handler failed",
					slog.String("event_type", inv.evt.EventType()),
					slog.String("event_id", inv.evt.ID().String()),
					slog.String("aggregate_id", inv.evt.AggregateID().String()),
					slog.Int("handler_index", inv.index),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	wg.Wait()

	var failed []error
	for _, err := range results {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return &Error{Errs: failed}
	}

	return nil
}

// DispatchEvent delivers a single event to all its handlers.
func (d *Dispatcher) DispatchEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return nil
	}
	return d.Dispatch(ctx, []event.DomainEvent{evt})
}

var _ appcore.Dispatcher = (*Dispatcher)(nil)
