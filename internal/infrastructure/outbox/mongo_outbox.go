// Package outbox provides the transactional outbox pattern implementation.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
)

// outboxDocument represents the MongoDB document structure for outbox entries.
type outboxDocument struct {
	ID            string     `bson:"_id"`
	EventID       string     `bson:"event_id"`
	EventType     string     `bson:"event_type"`
	AggregateID   string     `bson:"aggregate_id"`
	AggregateType string     `bson:"aggregate_type"`
	Payload       []byte     `bson:"payload"`
	CreatedAt     time.Time  `bson:"created_at"`
	ProcessedAt   *time.Time `bson:"processed_at,omitempty"`
	RetryCount    int        `bson:"retry_count"`
	LastError     string     `bson:"last_error,omitempty"`
}

// MongoOutbox implements appcore.Outbox using MongoDB.
type MongoOutbox struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// Option configures MongoOutbox.
type Option func(*MongoOutbox)

// WithLogger sets the logger for the outbox.
func WithLogger(logger *slog.Logger) Option {
	return func(o *MongoOutbox) {
		o.logger = logger
	}
}

// NewMongoOutbox creates a new MongoDB-backed outbox.
func NewMongoOutbox(collection *mongo.Collection, opts ...Option) *MongoOutbox {
	o := &MongoOutbox{
		collection: collection,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Add inserts an event into the outbox.
func (o *MongoOutbox) Add(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return errors.New("event cannot be nil")
	}

	doc, err := o.eventToDocument(evt)
	if err != nil {
		return fmt.Errorf("failed to convert event to document: %w", err)
	}

	_, err = o.collection.InsertOne(ctx, doc)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to insert event into outbox",
			slog.String("event_type", evt.EventType()),
			slog.String("aggregate_id", evt.AggregateID().String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert event into outbox: %w", err)
	}

	o.logger.DebugContext(ctx, "event added to outbox",
		slog.String("entry_id", doc.ID),
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID().String()),
	)

	return nil
}

// AddBatch inserts multiple events into the outbox atomically.
func (o *MongoOutbox) AddBatch(ctx context.Context, events []event.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, len(events))
	for i, evt := range events {
		if evt == nil {
			return fmt.Errorf("event at index %d cannot be nil", i)
		}

		doc, err := o.eventToDocument(evt)
		if err != nil {
			return fmt.Errorf("failed to convert event at index %d: %w", i, err)
		}
		docs[i] = doc
	}

	_, err := o.collection.InsertMany(ctx, docs)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to insert events batch into outbox",
			slog.Int("count", len(events)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert events batch into outbox: %w", err)
	}

	o.logger.DebugContext(ctx, "events batch added to outbox",
		slog.Int("count", len(events)),
	)

	return nil
}

// Poll retrieves unprocessed entries, oldest first.
func (o *MongoOutbox) Poll(ctx context.Context, batchSize int) ([]appcore.OutboxEntry, error) {
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}

	filter := bson.M{"processed_at": nil}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(batchSize))

	cursor, err := o.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to poll outbox: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []outboxDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode outbox entries: %w", err)
	}

	entries := make([]appcore.OutboxEntry, len(docs))
	for i, doc := range docs {
		entries[i] = documentToEntry(doc)
	}

	return entries, nil
}

// MarkProcessed marks an entry as successfully published.
func (o *MongoOutbox) MarkProcessed(ctx context.Context, entryID string) error {
	if entryID == "" {
		return errors.New("entry ID cannot be empty")
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"processed_at": now}}

	result, err := o.collection.UpdateByID(ctx, entryID, update)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry processed: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}

	return nil
}

// MarkFailed records a publishing failure and increments the retry count.
func (o *MongoOutbox) MarkFailed(ctx context.Context, entryID string, cause error) error {
	if entryID == "" {
		return errors.New("entry ID cannot be empty")
	}

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	update := bson.M{
		"$inc": bson.M{"retry_count": 1},
		"$set": bson.M{"last_error": lastError},
	}

	result, err := o.collection.UpdateByID(ctx, entryID, update)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}

	return nil
}

// Cleanup removes processed entries older than the given age.
func (o *MongoOutbox) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	filter := bson.M{
		"processed_at": bson.M{
			"$ne": nil,
			"$lt": cutoff,
		},
	}

	result, err := o.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox: %w", err)
	}

	if result.DeletedCount > 0 {
		o.logger.InfoContext(ctx, "cleaned up processed outbox entries",
			slog.Int64("deleted", result.DeletedCount),
		)
	}

	return result.DeletedCount, nil
}

// Count returns the number of unprocessed entries.
func (o *MongoOutbox) Count(ctx context.Context) (int64, error) {
	count, err := o.collection.CountDocuments(ctx, bson.M{"processed_at": nil})
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	return count, nil
}

// Stats returns the unprocessed count and the oldest unprocessed timestamp.
func (o *MongoOutbox) Stats(ctx context.Context) (int64, time.Time, error) {
	count, err := o.Count(ctx)
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var oldest outboxDocument
	err = o.collection.FindOne(ctx, bson.M{"processed_at": nil}, opts).Decode(&oldest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return count, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("failed to find oldest outbox entry: %w", err)
	}

	return count, oldest.CreatedAt, nil
}

// eventToDocument converts a domain event into an outbox document.
func (o *MongoOutbox) eventToDocument(evt event.DomainEvent) (*outboxDocument, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &outboxDocument{
		ID:            uuid.NewUUID().String(),
		EventID:       evt.ID().String(),
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID().String(),
		AggregateType: evt.AggregateType(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func documentToEntry(doc outboxDocument) appcore.OutboxEntry {
	return appcore.OutboxEntry{
		ID:            doc.ID,
		EventID:       doc.EventID,
		EventType:     doc.EventType,
		AggregateID:   doc.AggregateID,
		AggregateType: doc.AggregateType,
		Payload:       doc.Payload,
		CreatedAt:     doc.CreatedAt,
		ProcessedAt:   doc.ProcessedAt,
		RetryCount:    doc.RetryCount,
		LastError:     doc.LastError,
	}
}

var _ appcore.Outbox = (*MongoOutbox)(nil)
