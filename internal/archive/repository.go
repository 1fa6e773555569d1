// Package archive keeps the full normalized booking document for every crawl
// in MongoDB. The sink row is lossy (flat columns); the snapshot preserves
// everything the parser saw for later inspection or re-shaping.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookingsync/internal/constants"
	"bookingsync/internal/logger"
	"bookingsync/pkg/models"
)

type Snapshot struct {
	OrderID    string               `bson:"order_id"`
	Direction  models.Direction     `bson:"direction"`
	Source     string               `bson:"source"`
	Record     models.BookingDetail `bson:"record"`
	ArchivedAt time.Time            `bson:"archived_at"`
}

type Repository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewRepository(db *mongo.Database, log logger.Logger) *Repository {
	return &Repository{
		collection: db.Collection(constants.ArchiveCollection),
		logger:     log,
	}
}

// Save upserts the snapshot for (order_id, direction) so a replayed crawl
// refreshes the document instead of duplicating it.
func (r *Repository) Save(ctx context.Context, source string, record models.BookingDetail) error {
	snapshot := Snapshot{
		OrderID:    record.OrderID,
		Direction:  record.Direction,
		Source:     source,
		Record:     record,
		ArchivedAt: time.Now().UTC(),
	}

	filter := bson.M{"order_id": record.OrderID, "direction": record.Direction}
	update := bson.M{"$set": snapshot}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive snapshot for order %s: %w", record.OrderID, err)
	}
	return nil
}

// FindByOrderID returns every archived leg for an order, newest first.
func (r *Repository) FindByOrderID(ctx context.Context, orderID string) ([]Snapshot, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"order_id": orderID},
		options.Find().SetSort(bson.D{{Key: "archived_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for order %s: %w", orderID, err)
	}
	defer cursor.Close(ctx)

	var snapshots []Snapshot
	if err := cursor.All(ctx, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}
	return snapshots, nil
}
