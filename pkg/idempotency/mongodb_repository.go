package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const idempotencyKeysCollection = "idempotency_keys"

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a new MongoDB-backed repository
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(idempotencyKeysCollection),
	}
}

// AcquireLock upserts the record; the owner token tells a fresh insert from an existing record
func (r *MongoRepository) AcquireLock(ctx context.Context, scope, key string, ttl time.Duration) (*Record, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	owner := uuid.New().String()

	filter := bson.M{"scope": scope, "key": key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"key":       key,
			"scope":     scope,
			"owner":     owner,
			"lockedAt":  now,
			"createdAt": now,
			"expiresAt": now.Add(ttl),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result Record
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, false, err
	}

	return &result, result.Owner == owner, nil
}

// StoreResponse stores the final response for a completed operation
func (r *MongoRepository) StoreResponse(ctx context.Context, scope, key string, response []byte) error {
	filter := bson.M{"scope": scope, "key": key}
	update := bson.M{
		"$set": bson.M{
			"response":    response,
			"completedAt": time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseLock removes an uncompleted record
func (r *MongoRepository) ReleaseLock(ctx context.Context, scope, key string) error {
	filter := bson.M{
		"scope":       scope,
		"key":         key,
		"completedAt": bson.M{"$exists": false},
	}
	_, err := r.collection.DeleteOne(ctx, filter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

// EnsureIndexes creates the unique key index and the TTL index
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "scope", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_scope_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
