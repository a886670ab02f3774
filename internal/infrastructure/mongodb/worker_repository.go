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
	workersCollection     = "workers"
	assignmentsCollection = "job_assignments"
)

// WorkerRepository stores the worker roster
type WorkerRepository struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

// NewWorkerRepository creates a new WorkerRepository
func NewWorkerRepository(db *mongo.Database, observer *pkgmongo.Observer) *WorkerRepository {
	return &WorkerRepository{
		collection: db.Collection(workersCollection),
		observer:   observer,
	}
}

// EnsureIndexes creates the roster indexes
func (r *WorkerRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "siteId", Value: 1}, {Key: "status", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create worker indexes: %w", err)
	}
	return nil
}

// Save upserts a worker
func (r *WorkerRepository) Save(ctx context.Context, worker *domain.Worker) error {
	return r.observer.Do(ctx, workersCollection, "save", func(ctx context.Context) error {
		opts := options.Replace().SetUpsert(true)
		if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": worker.ID}, worker, opts); err != nil {
			return fmt.Errorf("failed to save worker: %w", err)
		}
		return nil
	})
}

// FindByID returns the worker or nil
func (r *WorkerRepository) FindByID(ctx context.Context, workerID string) (*domain.Worker, error) {
	var worker domain.Worker
	err := r.observer.Do(ctx, workersCollection, "find", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"_id": workerID}).Decode(&worker)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find worker: %w", err)
	}
	return &worker, nil
}

// FindBySite returns the roster of a site
func (r *WorkerRepository) FindBySite(ctx context.Context, siteID string) ([]*domain.Worker, error) {
	var workers []*domain.Worker
	err := r.observer.Do(ctx, workersCollection, "findBySite", func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
		cursor, err := r.collection.Find(ctx, bson.M{"siteId": siteID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &workers)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find workers: %w", err)
	}
	return workers, nil
}

var activeAssignmentStatuses = bson.A{
	domain.AssignmentAssigned,
	domain.AssignmentAccepted,
	domain.AssignmentInProgress,
	domain.AssignmentPaused,
}

// AssignmentRepository stores job assignments
type AssignmentRepository struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *mongo.Database, observer *pkgmongo.Observer) *AssignmentRepository {
	return &AssignmentRepository{
		collection: db.Collection(assignmentsCollection),
		observer:   observer,
	}
}

// EnsureIndexes creates the assignment indexes
func (r *AssignmentRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "jobId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "workerId", Value: 1}, {Key: "status", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create assignment indexes: %w", err)
	}
	return nil
}

// Save upserts an assignment
func (r *AssignmentRepository) Save(ctx context.Context, a *domain.JobAssignment) error {
	return r.observer.Do(ctx, assignmentsCollection, "save", func(ctx context.Context) error {
		opts := options.Replace().SetUpsert(true)
		if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": a.ID}, a, opts); err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}
		return nil
	})
}

// FindActiveByJob returns the open assignment of a job or nil
func (r *AssignmentRepository) FindActiveByJob(ctx context.Context, jobID string) (*domain.JobAssignment, error) {
	var assignment domain.JobAssignment
	err := r.observer.Do(ctx, assignmentsCollection, "findActiveByJob", func(ctx context.Context) error {
		filter := bson.M{"jobId": jobID, "status": bson.M{"$in": activeAssignmentStatuses}}
		opts := options.FindOne().SetSort(bson.D{{Key: "assignedAt", Value: -1}})
		return r.collection.FindOne(ctx, filter, opts).Decode(&assignment)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	return &assignment, nil
}

// CountActiveByWorkers returns the open assignment count per worker.
// Workers without open assignments are absent from the map.
func (r *AssignmentRepository) CountActiveByWorkers(ctx context.Context, workerIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(workerIDs))
	if len(workerIDs) == 0 {
		return counts, nil
	}

	err := r.observer.Do(ctx, assignmentsCollection, "countActive", func(ctx context.Context) error {
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{
				"workerId": bson.M{"$in": workerIDs},
				"status":   bson.M{"$in": activeAssignmentStatuses},
			}}},
			{{Key: "$group", Value: bson.M{"_id": "$workerId", "count": bson.M{"$sum": 1}}}},
		}
		cursor, err := r.collection.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		var rows []struct {
			WorkerID string `bson:"_id"`
			Count    int    `bson:"count"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			counts[row.WorkerID] = row.Count
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count active assignments: %w", err)
	}
	return counts, nil
}
