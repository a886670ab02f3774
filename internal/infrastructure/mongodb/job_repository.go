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

const jobsCollection = "jobs"

// JobRepository is the MongoDB job store. Every write persists the job's
// domain events to the outbox in the same transaction.
type JobRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
	observer     *pkgmongo.Observer
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory, observer *pkgmongo.Observer) *JobRepository {
	return &JobRepository{
		collection:   db.Collection(jobsCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
		observer:     observer,
	}
}

// EnsureIndexes creates the job indexes
func (r *JobRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "siteId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "orderRef", Value: 1}}},
		{Keys: bson.D{{Key: "destSiteId", Value: 1}, {Key: "lineItems.status", Value: 1}}},
		{Keys: bson.D{{Key: "jobNumber", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create job indexes: %w", err)
	}
	return nil
}

// Create inserts a new job at version 1
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.observer.Do(ctx, jobsCollection, "insert", func(ctx context.Context) error {
		doc := *job
		doc.Version = 1
		doc.UpdatedAt = pkgmongo.Now()

		err := pkgmongo.WithTransaction(ctx, r.db, func(sessCtx mongo.SessionContext) error {
			if _, err := r.collection.InsertOne(sessCtx, &doc); err != nil {
				return fmt.Errorf("failed to insert job: %w", err)
			}
			return saveEvents(sessCtx, r.outboxRepo, r.eventFactory, job.ID, "Job", "job/"+job.ID, job.SiteID, job.GetDomainEvents())
		})
		if err != nil {
			return err
		}

		job.Version = doc.Version
		job.UpdatedAt = doc.UpdatedAt
		job.ClearDomainEvents()
		return nil
	})
}

// Update replaces the job when the stored version still matches job.Version
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	return r.observer.Do(ctx, jobsCollection, "update", func(ctx context.Context) error {
		doc := *job
		doc.Version = job.Version + 1
		doc.UpdatedAt = pkgmongo.Now()

		err := pkgmongo.WithTransaction(ctx, r.db, func(sessCtx mongo.SessionContext) error {
			filter := bson.M{"_id": job.ID, "version": job.Version}
			result, err := r.collection.ReplaceOne(sessCtx, filter, &doc)
			if err != nil {
				return fmt.Errorf("failed to update job: %w", err)
			}
			if result.MatchedCount == 0 {
				return domain.ErrConcurrentModification
			}
			return saveEvents(sessCtx, r.outboxRepo, r.eventFactory, job.ID, "Job", "job/"+job.ID, job.SiteID, job.GetDomainEvents())
		})
		if err != nil {
			return err
		}

		job.Version = doc.Version
		job.UpdatedAt = doc.UpdatedAt
		job.ClearDomainEvents()
		return nil
	})
}

// FindByID returns the job or nil when it does not exist
func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	err := r.observer.Do(ctx, jobsCollection, "find", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &job, nil
}

// FindByOrderRef returns every job raised for an order or transfer
func (r *JobRepository) FindByOrderRef(ctx context.Context, orderRef string) ([]*domain.Job, error) {
	return r.find(ctx, "findByOrderRef", bson.M{"orderRef": orderRef})
}

// FindPending returns the Pending jobs of a site, oldest first
func (r *JobRepository) FindPending(ctx context.Context, siteID string) ([]*domain.Job, error) {
	return r.find(ctx, "findPending", bson.M{"siteId": siteID, "status": domain.JobStatusPending})
}

// GetDiscrepancies returns the jobs touching siteID that still hold a Discrepancy line
func (r *JobRepository) GetDiscrepancies(ctx context.Context, siteID string) ([]*domain.Job, error) {
	filter := bson.M{
		"$or":              bson.A{bson.M{"siteId": siteID}, bson.M{"destSiteId": siteID}},
		"lineItems.status": domain.LineItemDiscrepancy,
	}
	return r.find(ctx, "findDiscrepancies", filter)
}

func (r *JobRepository) find(ctx context.Context, operation string, filter bson.M) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.observer.Do(ctx, jobsCollection, operation, func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &jobs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find jobs: %w", err)
	}
	return jobs, nil
}
