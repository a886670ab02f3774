package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const (
	zoneLocksCollection = "zone_locks"
	proposalsCollection = "proposals"
)

// ZoneLockRepository stores maintenance locks keyed by site and zone
type ZoneLockRepository struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

// NewZoneLockRepository creates a new ZoneLockRepository
func NewZoneLockRepository(db *mongo.Database, observer *pkgmongo.Observer) *ZoneLockRepository {
	return &ZoneLockRepository{
		collection: db.Collection(zoneLocksCollection),
		observer:   observer,
	}
}

// Lock stores the lock, replacing an existing lock on the same zone
func (r *ZoneLockRepository) Lock(ctx context.Context, lock *domain.ZoneLock) error {
	return r.observer.Do(ctx, zoneLocksCollection, "lock", func(ctx context.Context) error {
		opts := options.Replace().SetUpsert(true)
		if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": lock.ID}, lock, opts); err != nil {
			return fmt.Errorf("failed to lock zone: %w", err)
		}
		return nil
	})
}

// Unlock removes the lock. Unlocking a free zone is not an error.
func (r *ZoneLockRepository) Unlock(ctx context.Context, siteID, zone string) error {
	return r.observer.Do(ctx, zoneLocksCollection, "unlock", func(ctx context.Context) error {
		if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": domain.ZoneLockID(siteID, zone)}); err != nil {
			return fmt.Errorf("failed to unlock zone: %w", err)
		}
		return nil
	})
}

// Find returns the lock on a zone or nil
func (r *ZoneLockRepository) Find(ctx context.Context, siteID, zone string) (*domain.ZoneLock, error) {
	var lock domain.ZoneLock
	err := r.observer.Do(ctx, zoneLocksCollection, "find", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"_id": domain.ZoneLockID(siteID, zone)}).Decode(&lock)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find zone lock: %w", err)
	}
	return &lock, nil
}

// ProposalRepository stores propose/confirm commands
type ProposalRepository struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

// NewProposalRepository creates a new ProposalRepository
func NewProposalRepository(db *mongo.Database, observer *pkgmongo.Observer) *ProposalRepository {
	return &ProposalRepository{
		collection: db.Collection(proposalsCollection),
		observer:   observer,
	}
}

// EnsureIndexes expires proposals a day after their deadline
func (r *ProposalRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(86400)},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create proposal indexes: %w", err)
	}
	return nil
}

// Save upserts a proposal
func (r *ProposalRepository) Save(ctx context.Context, p *domain.Proposal) error {
	return r.observer.Do(ctx, proposalsCollection, "save", func(ctx context.Context) error {
		opts := options.Replace().SetUpsert(true)
		if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts); err != nil {
			return fmt.Errorf("failed to save proposal: %w", err)
		}
		return nil
	})
}

// FindByID returns the proposal or nil
func (r *ProposalRepository) FindByID(ctx context.Context, id string) (*domain.Proposal, error) {
	var p domain.Proposal
	err := r.observer.Do(ctx, proposalsCollection, "find", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find proposal: %w", err)
	}
	return &p, nil
}
