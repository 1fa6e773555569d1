package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookingsync/internal/constants"
)

// EnsureMongoCollection creates the snapshot-archive indexes. Snapshots are
// looked up by order id and pruned by age.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.ArchiveCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}, {Key: "direction", Value: 1}},
			Options: options.Index().SetName("idx_snapshots_order_direction"),
		},
		{
			Keys:    bson.D{{Key: "source", Value: 1}, {Key: "archived_at", Value: -1}},
			Options: options.Index().SetName("idx_snapshots_source_archived_at"),
		},
		{
			Keys:    bson.D{{Key: "archived_at", Value: -1}},
			Options: options.Index().SetName("idx_snapshots_archived_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
