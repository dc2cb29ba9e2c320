// Package mongodb provides MongoDB infrastructure components including index management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names as constants for consistency.
const (
	CollectionEvents = "events"
	CollectionOutbox = "outbox"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// CreateAllIndexes creates all indexes the library's collections need.
// This function is idempotent - calling it multiple times is safe.
func CreateAllIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := GetAllIndexDefinitions()

	for _, idx := range indexes {
		coll := db.Collection(idx.Collection)
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options,
		}

		_, err := coll.Indexes().CreateOne(ctx, model)
		if err != nil {
			return fmt.Errorf("failed to create index on collection %s: %w", idx.Collection, err)
		}
	}

	return nil
}

// GetAllIndexDefinitions returns all index definitions for all collections.
func GetAllIndexDefinitions() []IndexDefinition {
	var indexes []IndexDefinition

	indexes = append(indexes, GetEventIndexes()...)
	indexes = append(indexes, GetOutboxIndexes()...)

	return indexes
}

// GetEventIndexes returns index definitions for the events collection (event store).
func GetEventIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Unique index for optimistic locking - prevents duplicate events for same aggregate+version
			Collection: CollectionEvents,
			Keys:       bson.D{{Key: "aggregate_id", Value: 1}, {Key: "version", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("idx_events_aggregate_version_unique"),
		},
		{
			// Index for filtering events by type
			Collection: CollectionEvents,
			Keys:       bson.D{{Key: "event_type", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options:    options.Index().SetName("idx_events_type_time"),
		},
	}
}

// GetOutboxIndexes returns index definitions for the outbox collection.
func GetOutboxIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Primary index for polling unprocessed entries ordered by time
			Collection: CollectionOutbox,
			Keys:       bson.D{{Key: "processed_at", Value: 1}, {Key: "created_at", Value: 1}},
			Options:    options.Index().SetName("idx_outbox_poll"),
		},
		{
			// Index for cleanup of processed entries by age
			Collection: CollectionOutbox,
			Keys:       bson.D{{Key: "processed_at", Value: 1}},
			Options:    options.Index().SetName("idx_outbox_cleanup").SetSparse(true),
		},
	}
}
