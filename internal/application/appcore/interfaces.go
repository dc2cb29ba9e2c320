// Package appcore declares the contracts between the unit of work and its
// collaborators. Interfaces live on the consumer side (application layer),
// not next to their infrastructure implementations.
package appcore

import (
	"context"

	"github.com/lllypuk/corekit/internal/domain/event"
)

// Dispatcher delivers a batch of collected domain events to their handlers.
// A unit of work calls it after the persistence write has succeeded.
type Dispatcher interface {
	// Dispatch delivers every event in the batch and waits for all handlers
	// to finish. Submission order follows the batch order; completion order
	// is not guaranteed.
	Dispatch(ctx context.Context, events []event.DomainEvent) error
}

// Transaction is a handle to one in-progress persistence transaction.
type Transaction interface {
	// Commit makes the transaction durable. The handle is released
	// regardless of the outcome.
	Commit(ctx context.Context) error

	// Rollback discards the transaction.
	Rollback(ctx context.Context) error
}

// Store is the persistence collaborator of a session. Implementations wrap a
// change-tracking storage layer (see infrastructure/memstore for the
// in-memory one).
type Store interface {
	// Tracked returns the currently tracked pending-event carriers. The
	// session drains events from them after a successful Persist.
	Tracked() []event.Carrier

	// Persist durably and atomically applies all tracked mutations and
	// returns the number of persisted state changes.
	Persist(ctx context.Context) (int, error)

	// Begin opens a new transaction.
	Begin(ctx context.Context) (Transaction, error)
}

// UnitOfWork batches state mutations and commits them atomically. Collected
// domain events are dispatched strictly after the write succeeds, exactly
// once, and pending sequences are cleared afterwards.
type UnitOfWork interface {
	// BeginTransaction opens a transaction. A no-op if one is already active.
	BeginTransaction(ctx context.Context) error

	// CommitTransaction commits the active transaction. A no-op if there is
	// none. A failed commit rolls back and returns the original error.
	CommitTransaction(ctx context.Context) error

	// RollbackTransaction discards the active transaction. A no-op if there
	// is none.
	RollbackTransaction(ctx context.Context) error

	// SaveChanges persists tracked mutations and dispatches the drained
	// events, returning the persisted change count.
	SaveChanges(ctx context.Context) (int, error)
}
