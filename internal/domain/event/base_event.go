package event

import (
	"time"

	"github.com/lllypuk/corekit/internal/domain/uuid"
)

// BaseEvent is the common implementation of DomainEvent. Concrete events
// embed it and add their own payload fields.
type BaseEvent struct {
	id            uuid.UUID
	eventType     string
	aggregateID   uuid.UUID
	aggregateType string
	occurredAt    time.Time
	version       int
	metadata      Metadata
}

// NewBaseEvent creates a base event stamped with a fresh ID and the current
// UTC time.
func NewBaseEvent(
	eventType string,
	aggregateID uuid.UUID,
	aggregateType string,
	version int,
	metadata Metadata,
) BaseEvent {
	return NewBaseEventAt(eventType, aggregateID, aggregateType, version, metadata, time.Now())
}

// NewBaseEventAt creates a base event with an explicit occurrence time.
// Tests use it to produce deterministic timestamps.
func NewBaseEventAt(
	eventType string,
	aggregateID uuid.UUID,
	aggregateType string,
	version int,
	metadata Metadata,
	occurredAt time.Time,
) BaseEvent {
	return BaseEvent{
		id:            uuid.NewUUID(),
		eventType:     eventType,
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		occurredAt:    occurredAt.UTC(),
		version:       version,
		metadata:      metadata,
	}
}

// ID returns the event identifier.
func (e BaseEvent) ID() uuid.UUID {
	return e.id
}

// EventType returns the event type name.
func (e BaseEvent) EventType() string {
	return e.eventType
}

// AggregateID returns the originating aggregate ID.
func (e BaseEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

// AggregateType returns the originating aggregate type name.
func (e BaseEvent) AggregateType() string {
	return e.aggregateType
}

// OccurredAt returns the UTC occurrence time.
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// Version returns the aggregate version at raise time.
func (e BaseEvent) Version() int {
	return e.version
}

// Metadata returns the event metadata.
func (e BaseEvent) Metadata() Metadata {
	return e.metadata
}
