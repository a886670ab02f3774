package domain

import "context"

// JobRepository is the job store. Update enforces the optimistic version and
// returns ErrConcurrentModification on a stale write. Finders return nil, nil when absent.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	FindByID(ctx context.Context, jobID string) (*Job, error)
	FindByOrderRef(ctx context.Context, orderRef string) ([]*Job, error)
	FindPending(ctx context.Context, siteID string) ([]*Job, error)
	GetDiscrepancies(ctx context.Context, siteID string) ([]*Job, error)
}

// StockLedger applies stock movements. Adjustments with an already-applied
// idempotency key return the original movement without a second effect.
type StockLedger interface {
	AdjustStock(ctx context.Context, adj StockAdjustment) (*StockMovement, error)
}

// ProductCatalog manages products per site
type ProductCatalog interface {
	FindByID(ctx context.Context, productID string) (*Product, error)
	FindBySKUAtSite(ctx context.Context, sku, siteID string) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) error
	ArchiveProduct(ctx context.Context, productID string) error
}

// ApprovalQueue stores pending inventory changes
type ApprovalQueue interface {
	Create(ctx context.Context, change *PendingInventoryChange) error
	FindByID(ctx context.Context, changeID string) (*PendingInventoryChange, error)
	FindPending(ctx context.Context, siteID string) ([]*PendingInventoryChange, error)
	FindPendingForJobItem(ctx context.Context, jobID string, lineItemIndex int) (*PendingInventoryChange, error)
	Update(ctx context.Context, change *PendingInventoryChange) error
}

// DiscrepancyRepository stores discrepancy resolutions, one per transfer line
type DiscrepancyRepository interface {
	Save(ctx context.Context, d *DiscrepancyResolution) error
	FindByID(ctx context.Context, id string) (*DiscrepancyResolution, error)
	FindByLine(ctx context.Context, transferID string, lineItemIndex int) (*DiscrepancyResolution, error)
	FindByTransfer(ctx context.Context, transferID string) ([]*DiscrepancyResolution, error)
	FindPendingBySite(ctx context.Context, siteID string) ([]*DiscrepancyResolution, error)
}

// WorkerRepository stores the worker roster
type WorkerRepository interface {
	Save(ctx context.Context, worker *Worker) error
	FindByID(ctx context.Context, workerID string) (*Worker, error)
	FindBySite(ctx context.Context, siteID string) ([]*Worker, error)
}

// AssignmentRepository stores job assignments
type AssignmentRepository interface {
	Save(ctx context.Context, a *JobAssignment) error
	FindActiveByJob(ctx context.Context, jobID string) (*JobAssignment, error)
	CountActiveByWorkers(ctx context.Context, workerIDs []string) (map[string]int, error)
}

// ZoneLockRepository stores maintenance locks
type ZoneLockRepository interface {
	Lock(ctx context.Context, lock *ZoneLock) error
	Unlock(ctx context.Context, siteID, zone string) error
	Find(ctx context.Context, siteID, zone string) (*ZoneLock, error)
}

// ProposalRepository stores propose/confirm commands
type ProposalRepository interface {
	Save(ctx context.Context, p *Proposal) error
	FindByID(ctx context.Context, id string) (*Proposal, error)
}

// JobLocker serialises mutations of one job across processes.
// Acquire fails with ErrLockNotAcquired while another holder owns the lock.
type JobLocker interface {
	Acquire(ctx context.Context, jobID, holder string) (release func(context.Context) error, err error)
}
