// Package mongodb stores outbox events in the service database.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// DefaultCollectionName is the outbox collection
const DefaultCollectionName = "outbox_events"

// publishedRetention keeps delivered events around for replay investigations
const publishedRetention = 7 * 24 * time.Hour

// OutboxRepository implements outbox.Repository
type OutboxRepository struct {
	collection *mongo.Collection
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{collection: db.Collection(DefaultCollectionName)}
}

// SaveAll inserts events in order. Pass the transaction's session context.
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.Event) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(events))
	for _, event := range events {
		docs = append(docs, event)
	}
	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}

// FindPending returns undelivered events that still have attempts left
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*outbox.Event, error) {
	filter := bson.M{
		"publishedAt": bson.M{"$exists": false},
		"$expr":       bson.M{"$lt": bson.A{"$attempts", "$maxAttempts"}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps the delivery time
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	res, err := r.collection.UpdateByID(ctx, eventID, bson.M{"$set": bson.M{"publishedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %s published: %w", eventID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	return nil
}

// RecordFailure bumps the attempt counter and returns the updated event
func (r *OutboxRepository) RecordFailure(ctx context.Context, eventID, reason string) (*outbox.Event, error) {
	var event outbox.Event
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": eventID},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"lastError": reason}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("outbox event %s not found", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return &event, nil
}

// EnsureIndexes creates the polling, per-aggregate and retention indexes
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "publishedAt", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("outbox_pending"),
		},
		{
			Keys:    bson.D{{Key: "aggregateId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("outbox_aggregate"),
		},
		{
			// documents without publishedAt never expire
			Keys:    bson.D{{Key: "publishedAt", Value: 1}},
			Options: options.Index().SetName("outbox_retention").SetExpireAfterSeconds(int32(publishedRetention.Seconds())),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return nil
}
