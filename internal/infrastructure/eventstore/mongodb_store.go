package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
	mongodbinfra "github.com/lllypuk/corekit/internal/infrastructure/mongodb"
)

// MongoEventStore implements appcore.EventStore on MongoDB. Appends run in a
// transaction with optimistic locking on the aggregate version; the unique
// (aggregate_id, version) index backs the conflict detection.
type MongoEventStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	serializer *EventSerializer
	logger     *slog.Logger
}

// Option configures MongoEventStore.
type Option func(*MongoEventStore)

// WithLogger sets the logger for the event store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MongoEventStore) {
		s.logger = logger
	}
}

// NewMongoEventStore creates a MongoDB-backed event store.
func NewMongoEventStore(client *mongo.Client, databaseName string, opts ...Option) *MongoEventStore {
	s := &MongoEventStore{
		client:     client,
		collection: client.Database(databaseName).Collection(mongodbinfra.CollectionEvents),
		serializer: NewEventSerializer(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SaveEvents appends events for an aggregate with optimistic locking.
func (s *MongoEventStore) SaveEvents(
	ctx context.Context,
	aggregateID uuid.UUID,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}
	if aggregateID.IsZero() {
		return appcore.ErrAggregateNotFound
	}

	session, err := s.client.StartSession()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to start session for event store",
			slog.String("aggregate_id", aggregateID.String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		currentVersion, errVersion := s.currentVersion(txCtx, aggregateID)
		if errVersion != nil {
			return nil, errVersion
		}

		if currentVersion != expectedVersion {
			s.logger.WarnContext(ctx, "concurrency conflict in event store",
				slog.String("aggregate_id", aggregateID.String()),
				slog.Int("expected_version", expectedVersion),
				slog.Int("current_version", currentVersion),
			)
			return nil, appcore.ErrConcurrencyConflict
		}

		documents, errSerialize := s.serializer.SerializeMany(events)
		if errSerialize != nil {
			return nil, errSerialize
		}

		docs := make([]any, len(documents))
		for i, doc := range documents {
			docs[i] = doc
		}

		if _, errInsert := s.collection.InsertMany(txCtx, docs); errInsert != nil {
			if mongo.IsDuplicateKeyError(errInsert) {
				return nil, appcore.ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("failed to insert events: %w", errInsert)
		}

		return nil, nil //nolint:nilnil // transaction success returns nil for both values
	})

	if err != nil && !errors.Is(err, appcore.ErrConcurrencyConflict) {
		s.logger.ErrorContext(ctx, "event store append failed",
			slog.String("aggregate_id", aggregateID.String()),
			slog.Int("events_count", len(events)),
			slog.String("error", err.Error()),
		)
	}

	return err
}

// LoadEvents loads all events for an aggregate in version order.
func (s *MongoEventStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID) ([]event.DomainEvent, error) {
	filter := bson.M{"aggregate_id": aggregateID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to find events in event store",
			slog.String("aggregate_id", aggregateID.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*EventDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	if len(docs) == 0 {
		return nil, appcore.ErrAggregateNotFound
	}

	return s.serializer.DeserializeMany(docs)
}

// Version returns the current version of an aggregate, 0 if not found.
func (s *MongoEventStore) Version(ctx context.Context, aggregateID uuid.UUID) (int, error) {
	return s.currentVersion(ctx, aggregateID)
}

func (s *MongoEventStore) currentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error) {
	filter := bson.M{"aggregate_id": aggregateID.String()}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.M{"version": 1})

	var doc EventDocument
	err := s.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query current version: %w", err)
	}

	return doc.Version, nil
}

var _ appcore.EventStore = (*MongoEventStore)(nil)
