package appcore

import (
	"context"
	"errors"

	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
)

var (
	// ErrAggregateNotFound is returned when the aggregate is not found
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrConcurrencyConflict is returned on version conflict (optimistic locking)
	ErrConcurrencyConflict = errors.New("concurrency conflict detected")

	// ErrInvalidVersion is returned when the version is invalid
	ErrInvalidVersion = errors.New("invalid version")
)

// EventStore defines the interface for saving and loading events.
type EventStore interface {
	// SaveEvents appends events for an aggregate.
	// expectedVersion is the version for optimistic locking (0 for a new aggregate).
	SaveEvents(ctx context.Context, aggregateID uuid.UUID, events []event.DomainEvent, expectedVersion int) error

	// LoadEvents loads all events for an aggregate in chronological order.
	LoadEvents(ctx context.Context, aggregateID uuid.UUID) ([]event.DomainEvent, error)

	// Version returns the current version of an aggregate, 0 if not found.
	Version(ctx context.Context, aggregateID uuid.UUID) (int, error)
}
