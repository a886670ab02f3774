package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/fulfillment-service/pkg/outbox/mongodb"
)

const changesCollection = "inventory_changes"

// ApprovalQueue stores pending inventory changes
type ApprovalQueue struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
	observer     *pkgmongo.Observer
}

// NewApprovalQueue creates a new ApprovalQueue
func NewApprovalQueue(db *mongo.Database, eventFactory *cloudevents.EventFactory, observer *pkgmongo.Observer) *ApprovalQueue {
	return &ApprovalQueue{
		collection:   db.Collection(changesCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
		observer:     observer,
	}
}

// EnsureIndexes creates the approval queue indexes
func (q *ApprovalQueue) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "siteId", Value: 1}, {Key: "status", Value: 1}, {Key: "requestedAt", Value: 1}}},
		{Keys: bson.D{{Key: "jobId", Value: 1}, {Key: "lineItemIndex", Value: 1}, {Key: "status", Value: 1}}},
	}
	if _, err := q.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create inventory change indexes: %w", err)
	}
	return nil
}

// Create enqueues a change and announces it on the inventory topic
func (q *ApprovalQueue) Create(ctx context.Context, change *domain.PendingInventoryChange) error {
	return q.observer.Do(ctx, changesCollection, "insert", func(ctx context.Context) error {
		return pkgmongo.WithTransaction(ctx, q.db, func(sessCtx mongo.SessionContext) error {
			if _, err := q.collection.InsertOne(sessCtx, change); err != nil {
				return fmt.Errorf("failed to create inventory change: %w", err)
			}
			event := &domain.InventoryChangeRequestedEvent{
				ChangeID:    change.ID,
				ChangeType:  string(change.ChangeType),
				SiteID:      change.SiteID,
				SKU:         change.ProductSKU,
				RequestedBy: change.RequestedBy,
				RequestedAt: change.RequestedAt,
			}
			return saveEvents(sessCtx, q.outboxRepo, q.eventFactory, change.ID, "InventoryChange",
				"inventory-change/"+change.ID, change.SiteID, []domain.DomainEvent{event})
		})
	})
}

// FindByID returns the change or nil
func (q *ApprovalQueue) FindByID(ctx context.Context, changeID string) (*domain.PendingInventoryChange, error) {
	return q.findOne(ctx, "find", bson.M{"_id": changeID})
}

// FindPendingForJobItem returns the open create request raised by a putaway line, or nil
func (q *ApprovalQueue) FindPendingForJobItem(ctx context.Context, jobID string, lineItemIndex int) (*domain.PendingInventoryChange, error) {
	filter := bson.M{"jobId": jobID, "lineItemIndex": lineItemIndex, "status": domain.ChangePending}
	return q.findOne(ctx, "findForJobItem", filter)
}

func (q *ApprovalQueue) findOne(ctx context.Context, operation string, filter bson.M) (*domain.PendingInventoryChange, error) {
	var change domain.PendingInventoryChange
	err := q.observer.Do(ctx, changesCollection, operation, func(ctx context.Context) error {
		return q.collection.FindOne(ctx, filter).Decode(&change)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inventory change: %w", err)
	}
	return &change, nil
}

// FindPending returns the undecided changes of a site, oldest first
func (q *ApprovalQueue) FindPending(ctx context.Context, siteID string) ([]*domain.PendingInventoryChange, error) {
	var changes []*domain.PendingInventoryChange
	err := q.observer.Do(ctx, changesCollection, "findPending", func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "requestedAt", Value: 1}})
		cursor, err := q.collection.Find(ctx, bson.M{"siteId": siteID, "status": domain.ChangePending}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &changes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find pending changes: %w", err)
	}
	return changes, nil
}

// Update stores a decided change
func (q *ApprovalQueue) Update(ctx context.Context, change *domain.PendingInventoryChange) error {
	return q.observer.Do(ctx, changesCollection, "update", func(ctx context.Context) error {
		result, err := q.collection.ReplaceOne(ctx, bson.M{"_id": change.ID}, change)
		if err != nil {
			return fmt.Errorf("failed to update inventory change: %w", err)
		}
		if result.MatchedCount == 0 {
			return fmt.Errorf("inventory change not found: %s", change.ID)
		}
		return nil
	})
}
