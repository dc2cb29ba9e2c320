package eventstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
)

// EventDocument is the MongoDB representation of a stored domain event.
type EventDocument struct {
	ID bson.ObjectID `bson:"_id,omitempty"`

	EventID       string                `bson:"event_id"`
	AggregateID   string                `bson:"aggregate_id"`
	AggregateType string                `bson:"aggregate_type"`
	EventType     string                `bson:"event_type"`
	Version       int                   `bson:"version"`
	Payload       []byte                `bson:"payload"`
	Metadata      EventMetadataDocument `bson:"metadata"`
	OccurredAt    time.Time             `bson:"occurred_at"`
	CreatedAt     time.Time             `bson:"created_at"`
}

// EventMetadataDocument is the MongoDB representation of event metadata.
type EventMetadataDocument struct {
	Timestamp     time.Time `bson:"timestamp"`
	UserID        string    `bson:"user_id,omitempty"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	CausationID   string    `bson:"causation_id,omitempty"`
}

// EventSerializer converts domain events to and from their stored form.
type EventSerializer struct{}

// NewEventSerializer creates a new event serializer.
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{}
}

// Serialize converts a domain event into a MongoDB document. The concrete
// event's exported fields become the JSON payload; the envelope fields come
// from the DomainEvent accessors.
func (s *EventSerializer) Serialize(e event.DomainEvent) (*EventDocument, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	metadata := e.Metadata()

	return &EventDocument{
		EventID:       e.ID().String(),
		AggregateID:   e.AggregateID().String(),
		AggregateType: e.AggregateType(),
		EventType:     e.EventType(),
		Version:       e.Version(),
		Payload:       payload,
		Metadata: EventMetadataDocument{
			Timestamp:     metadata.Timestamp,
			UserID:        metadata.UserID,
			CorrelationID: metadata.CorrelationID,
			CausationID:   metadata.CausationID,
		},
		OccurredAt: e.OccurredAt(),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// SerializeMany serializes a batch of events.
func (s *EventSerializer) SerializeMany(events []event.DomainEvent) ([]*EventDocument, error) {
	documents := make([]*EventDocument, 0, len(events))

	for i, e := range events {
		doc, err := s.Serialize(e)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize event at index %d: %w", i, err)
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

// Deserialize converts a stored document back into a domain event. The
// result is a StoredEvent: the envelope is fully reconstructed and the
// concrete payload stays raw JSON for the consumer to decode.
func (s *EventSerializer) Deserialize(doc *EventDocument) (*StoredEvent, error) {
	if doc == nil {
		return nil, errors.New("document cannot be nil")
	}

	return &StoredEvent{doc: *doc}, nil
}

// DeserializeMany deserializes a batch of documents.
func (s *EventSerializer) DeserializeMany(docs []*EventDocument) ([]event.DomainEvent, error) {
	events := make([]event.DomainEvent, 0, len(docs))

	for i, doc := range docs {
		evt, err := s.Deserialize(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize event at index %d: %w", i, err)
		}
		events = append(events, evt)
	}

	return events, nil
}

// StoredEvent is a domain event reconstructed from storage. Consumers decode
// Payload into the concrete event type they expect for the event's type name.
type StoredEvent struct {
	doc EventDocument
}

// ID returns the original event identifier.
func (e *StoredEvent) ID() uuid.UUID { return uuid.UUID(e.doc.EventID) }

// EventType returns the event type name.
func (e *StoredEvent) EventType() string { return e.doc.EventType }

// AggregateID returns the originating aggregate ID.
func (e *StoredEvent) AggregateID() uuid.UUID { return uuid.UUID(e.doc.AggregateID) }

// AggregateType returns the originating aggregate type name.
func (e *StoredEvent) AggregateType() string { return e.doc.AggregateType }

// OccurredAt returns the UTC occurrence time.
func (e *StoredEvent) OccurredAt() time.Time { return e.doc.OccurredAt.UTC() }

// Version returns the aggregate version at raise time.
func (e *StoredEvent) Version() int { return e.doc.Version }

// Metadata returns the event metadata.
func (e *StoredEvent) Metadata() event.Metadata {
	return event.Metadata{
		Timestamp:     e.doc.Metadata.Timestamp,
		UserID:        e.doc.Metadata.UserID,
		CorrelationID: e.doc.Metadata.CorrelationID,
		CausationID:   e.doc.Metadata.CausationID,
	}
}

// Payload returns the raw JSON payload of the concrete event.
func (e *StoredEvent) Payload() json.RawMessage { return e.doc.Payload }

var _ event.DomainEvent = (*StoredEvent)(nil)
