package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/fulfillment-service/pkg/outbox/mongodb"
)

// Repositories bundles every MongoDB store of the service
type Repositories struct {
	Jobs          *JobRepository
	Ledger        *StockLedger
	Catalog       *ProductCatalog
	Approvals     *ApprovalQueue
	Discrepancies *DiscrepancyRepository
	Workers       *WorkerRepository
	Assignments   *AssignmentRepository
	Zones         *ZoneLockRepository
	Proposals     *ProposalRepository
	Scans         *idempotency.MongoRepository
	Outbox        *outboxMongo.OutboxRepository
}

// NewRepositories wires all stores on db. m may be nil.
func NewRepositories(db *mongo.Database, eventFactory *cloudevents.EventFactory, m *metrics.Metrics) *Repositories {
	observer := pkgmongo.NewObserver(db, m)
	return &Repositories{
		Jobs:          NewJobRepository(db, eventFactory, observer),
		Ledger:        NewStockLedger(db, observer),
		Catalog:       NewProductCatalog(db, observer),
		Approvals:     NewApprovalQueue(db, eventFactory, observer),
		Discrepancies: NewDiscrepancyRepository(db, eventFactory, observer),
		Workers:       NewWorkerRepository(db, observer),
		Assignments:   NewAssignmentRepository(db, observer),
		Zones:         NewZoneLockRepository(db, observer),
		Proposals:     NewProposalRepository(db, observer),
		Scans:         idempotency.NewMongoRepository(db),
		Outbox:        outboxMongo.NewOutboxRepository(db),
	}
}

// EnsureIndexes creates the indexes of every store
func (r *Repositories) EnsureIndexes(ctx context.Context) error {
	steps := []func(context.Context) error{
		r.Jobs.EnsureIndexes,
		r.Ledger.EnsureIndexes,
		r.Catalog.EnsureIndexes,
		r.Approvals.EnsureIndexes,
		r.Discrepancies.EnsureIndexes,
		r.Workers.EnsureIndexes,
		r.Assignments.EnsureIndexes,
		r.Proposals.EnsureIndexes,
		r.Scans.EnsureIndexes,
		r.Outbox.EnsureIndexes,
	}
	for _, ensure := range steps {
		if err := ensure(ctx); err != nil {
			return err
		}
	}
	return nil
}
