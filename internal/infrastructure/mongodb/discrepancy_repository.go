package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/fulfillment-service/pkg/outbox/mongodb"
)

const discrepanciesCollection = "discrepancy_resolutions"

// discrepancyDocument stores the claim amount as a BSON decimal
type discrepancyDocument struct {
	domain.DiscrepancyResolution `bson:",inline"`
	ClaimAmount                  *primitive.Decimal128 `bson:"claimAmount,omitempty"`
}

func toDiscrepancyDocument(d *domain.DiscrepancyResolution) (*discrepancyDocument, error) {
	doc := &discrepancyDocument{DiscrepancyResolution: *d}
	doc.DomainEvents = nil
	if d.ClaimAmount.Valid {
		amount, err := primitive.ParseDecimal128(d.ClaimAmount.Decimal.String())
		if err != nil {
			return nil, fmt.Errorf("invalid claim amount: %w", err)
		}
		doc.ClaimAmount = &amount
	}
	return doc, nil
}

func (doc *discrepancyDocument) toDomain() (*domain.DiscrepancyResolution, error) {
	d := doc.DiscrepancyResolution
	if doc.ClaimAmount != nil {
		amount, err := decimal.NewFromString(doc.ClaimAmount.String())
		if err != nil {
			return nil, fmt.Errorf("invalid stored claim amount: %w", err)
		}
		d.ClaimAmount = decimal.NewNullDecimal(amount)
	}
	return &d, nil
}

// DiscrepancyRepository stores discrepancy resolutions, one per transfer line
type DiscrepancyRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
	observer     *pkgmongo.Observer
}

// NewDiscrepancyRepository creates a new DiscrepancyRepository
func NewDiscrepancyRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory, observer *pkgmongo.Observer) *DiscrepancyRepository {
	return &DiscrepancyRepository{
		collection:   db.Collection(discrepanciesCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
		observer:     observer,
	}
}

// EnsureIndexes creates the discrepancy indexes. A transfer line has at most one record.
func (r *DiscrepancyRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transferId", Value: 1}, {Key: "lineItemIndex", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "siteId", Value: 1}, {Key: "resolutionStatus", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create discrepancy indexes: %w", err)
	}
	return nil
}

// Save upserts the record together with its domain events
func (r *DiscrepancyRepository) Save(ctx context.Context, d *domain.DiscrepancyResolution) error {
	doc, err := toDiscrepancyDocument(d)
	if err != nil {
		return err
	}

	return r.observer.Do(ctx, discrepanciesCollection, "save", func(ctx context.Context) error {
		err := pkgmongo.WithTransaction(ctx, r.db, func(sessCtx mongo.SessionContext) error {
			opts := options.Replace().SetUpsert(true)
			if _, err := r.collection.ReplaceOne(sessCtx, bson.M{"_id": d.ID}, doc, opts); err != nil {
				return fmt.Errorf("failed to save discrepancy: %w", err)
			}
			return saveEvents(sessCtx, r.outboxRepo, r.eventFactory, d.ID, "DiscrepancyResolution",
				"transfer/"+d.TransferID, d.SiteID, d.DomainEvents)
		})
		if err != nil {
			return err
		}
		d.ClearDomainEvents()
		return nil
	})
}

// FindByID returns the record or nil
func (r *DiscrepancyRepository) FindByID(ctx context.Context, id string) (*domain.DiscrepancyResolution, error) {
	return r.findOne(ctx, "find", bson.M{"_id": id})
}

// FindByLine returns the record of one transfer line or nil
func (r *DiscrepancyRepository) FindByLine(ctx context.Context, transferID string, lineItemIndex int) (*domain.DiscrepancyResolution, error) {
	return r.findOne(ctx, "findByLine", bson.M{"transferId": transferID, "lineItemIndex": lineItemIndex})
}

// FindByTransfer returns the records of a transfer in line order
func (r *DiscrepancyRepository) FindByTransfer(ctx context.Context, transferID string) ([]*domain.DiscrepancyResolution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lineItemIndex", Value: 1}})
	return r.find(ctx, "findByTransfer", bson.M{"transferId": transferID}, opts)
}

// FindPendingBySite returns the open records at a destination site, oldest first
func (r *DiscrepancyRepository) FindPendingBySite(ctx context.Context, siteID string) ([]*domain.DiscrepancyResolution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	filter := bson.M{"siteId": siteID, "resolutionStatus": domain.ResolutionPending}
	return r.find(ctx, "findPending", filter, opts)
}

func (r *DiscrepancyRepository) findOne(ctx context.Context, operation string, filter bson.M) (*domain.DiscrepancyResolution, error) {
	var doc discrepancyDocument
	err := r.observer.Do(ctx, discrepanciesCollection, operation, func(ctx context.Context) error {
		return r.collection.FindOne(ctx, filter).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find discrepancy: %w", err)
	}
	return doc.toDomain()
}

func (r *DiscrepancyRepository) find(ctx context.Context, operation string, filter bson.M, opts *options.FindOptions) ([]*domain.DiscrepancyResolution, error) {
	var docs []discrepancyDocument
	err := r.observer.Do(ctx, discrepanciesCollection, operation, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find discrepancies: %w", err)
	}

	records := make([]*domain.DiscrepancyResolution, 0, len(docs))
	for i := range docs {
		d, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, d)
	}
	return records, nil
}
