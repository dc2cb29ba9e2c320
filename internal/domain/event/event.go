// Package event defines domain events and the pending-event recorder that
// aggregates embed to accumulate them.
package event

import (
	"context"
	"time"

	"github.com/lllypuk/corekit/internal/domain/uuid"
)

// DomainEvent represents an immutable fact recorded by an aggregate.
type DomainEvent interface {
	// ID returns the unique event identifier, assigned at creation.
	ID() uuid.UUID

	// EventType returns the event type name, e.g. "order.created".
	EventType() string

	// AggregateID returns the ID of the aggregate that raised the event.
	AggregateID() uuid.UUID

	// AggregateType returns the type name of the originating aggregate.
	AggregateType() string

	// OccurredAt returns the UTC time the event occurred.
	OccurredAt() time.Time

	// Version returns the aggregate version at the time the event was raised.
	// Zero means the raiser does not track versions.
	Version() int

	// Metadata returns the event metadata.
	Metadata() Metadata
}

// Bus is the cross-process delivery contract for domain events.
type Bus interface {
	// Publish publishes an event.
	Publish(ctx context.Context, event DomainEvent) error
}

// Carrier is the pending-events capability a unit of work looks for on
// tracked objects. Aggregates get it by embedding Recorder.
type Carrier interface {
	// UncommittedEvents returns a snapshot of pending events in insertion order.
	UncommittedEvents() []DomainEvent

	// ClearEvents drops all pending events. Idempotent.
	ClearEvents()

	// HasUncommittedEvents reports whether any events are pending.
	HasUncommittedEvents() bool
}
