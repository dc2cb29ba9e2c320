package outbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
)

// Dispatcher is an appcore.Dispatcher that stores events in the outbox
// instead of invoking handlers in-process. Delivery then happens
// asynchronously through the relay worker, so a handler failure can never
// surface after an already-committed write — the trade-off is at-least-once
// delivery instead of at-most-once.
type Dispatcher struct {
	outbox appcore.Outbox
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger for the outbox dispatcher.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher writing to the given outbox.
func NewDispatcher(outbox appcore.Outbox, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		outbox: outbox,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch stores the batch in the outbox for asynchronous delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, events []event.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	if err := d.outbox.AddBatch(ctx, events); err != nil {
		return fmt.Errorf("failed to store events in outbox: %w", err)
	}

	d.logger.DebugContext(ctx, "events stored for asynchronous dispatch",
		slog.Int("count", len(events)),
	)

	return nil
}

var _ appcore.Dispatcher = (*Dispatcher)(nil)
