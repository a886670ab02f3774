package application

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("fulfillment-service-test")
	cfg.Level = logging.LevelError
	return logging.New(cfg)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("fulfillment-service-test"))
}

func cloneJob(job *domain.Job) *domain.Job {
	cp := *job
	cp.LineItems = append([]domain.LineItem(nil), job.LineItems...)
	cp.DomainEvents = nil
	return &cp
}

// memJobs stores copies and enforces the optimistic version like the Mongo store
type memJobs struct {
	mu         sync.Mutex
	jobs       map[string]*domain.Job
	updateFn   func(*domain.Job) error
	beforeFind func(jobID string)
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*domain.Job)}
}

func (m *memJobs) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Version = 1
	job.ClearDomainEvents()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memJobs) Update(_ context.Context, job *domain.Job) error {
	if m.updateFn != nil {
		if err := m.updateFn(job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok || stored.Version != job.Version {
		return domain.ErrConcurrentModification
	}
	job.Version++
	job.ClearDomainEvents()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memJobs) FindByID(_ context.Context, jobID string) (*domain.Job, error) {
	if m.beforeFind != nil {
		m.beforeFind(jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		return cloneJob(job), nil
	}
	return nil, nil
}

func (m *memJobs) FindByOrderRef(_ context.Context, orderRef string) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if job.OrderRef == orderRef {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (m *memJobs) FindPending(_ context.Context, siteID string) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if job.SiteID == siteID && job.Status == domain.JobStatusPending {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (m *memJobs) GetDiscrepancies(_ context.Context, siteID string) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if job.DestSiteID != siteID && job.SiteID != siteID {
			continue
		}
		if job.DiscrepancyCount() > 0 {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

// mutate edits the stored job as a concurrent writer would
func (m *memJobs) mutate(jobID string, fn func(*domain.Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[jobID]
	fn(job)
	job.Version++
}

func (m *memJobs) byType(t domain.JobType) []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if job.Type == t {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// memCatalog doubles as the ledger's stock holder
type memCatalog struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newMemCatalog() *memCatalog {
	return &memCatalog{products: make(map[string]*domain.Product)}
}

func (c *memCatalog) add(p *domain.Product) *domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
	return p
}

func (c *memCatalog) FindByID(_ context.Context, productID string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[productID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (c *memCatalog) FindBySKUAtSite(_ context.Context, sku, siteID string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.SKU == sku && p.SiteID == siteID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *memCatalog) CreateProduct(_ context.Context, product *domain.Product) error {
	c.add(product)
	return nil
}

func (c *memCatalog) ArchiveProduct(_ context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[productID]; ok {
		p.Status = domain.ProductArchived
		p.Stock = 0
	}
	return nil
}

func (c *memCatalog) stock(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[productID].Stock
}

type memLedger struct {
	mu        sync.Mutex
	catalog   *memCatalog
	movements []*domain.StockMovement
	byKey     map[string]*domain.StockMovement
	failWith  error
}

func newMemLedger(catalog *memCatalog) *memLedger {
	return &memLedger{catalog: catalog, byKey: make(map[string]*domain.StockMovement)}
}

func (l *memLedger) AdjustStock(_ context.Context, adj domain.StockAdjustment) (*domain.StockMovement, error) {
	if err := adj.Validate(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	if m, ok := l.byKey[adj.IdempotencyKey]; ok && adj.IdempotencyKey != "" {
		return m, nil
	}
	m := domain.NewStockMovement(uuid.NewString(), adj)
	l.movements = append(l.movements, m)
	if adj.IdempotencyKey != "" {
		l.byKey[adj.IdempotencyKey] = m
	}
	l.catalog.mu.Lock()
	if p, ok := l.catalog.products[adj.ProductID]; ok {
		p.Stock += adj.Direction.Signed(adj.Quantity)
	}
	l.catalog.mu.Unlock()
	return m, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.movements)
}

func (l *memLedger) all() []*domain.StockMovement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*domain.StockMovement(nil), l.movements...)
}

type memApprovals struct {
	mu      sync.Mutex
	changes map[string]*domain.PendingInventoryChange
}

func newMemApprovals() *memApprovals {
	return &memApprovals{changes: make(map[string]*domain.PendingInventoryChange)}
}

func (a *memApprovals) Create(_ context.Context, c *domain.PendingInventoryChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *c
	a.changes[c.ID] = &cp
	return nil
}

func (a *memApprovals) FindByID(_ context.Context, id string) (*domain.PendingInventoryChange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.changes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (a *memApprovals) FindPending(_ context.Context, siteID string) ([]*domain.PendingInventoryChange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.PendingInventoryChange
	for _, c := range a.changes {
		if c.SiteID == siteID && c.Status == domain.ChangePending {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (a *memApprovals) FindPendingForJobItem(_ context.Context, jobID string, idx int) (*domain.PendingInventoryChange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.changes {
		if c.JobID == jobID && c.LineItemIndex != nil && *c.LineItemIndex == idx && c.Status == domain.ChangePending {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (a *memApprovals) Update(ctx context.Context, c *domain.PendingInventoryChange) error {
	return a.Create(ctx, c)
}

type memDiscrepancies struct {
	mu      sync.Mutex
	records map[string]*domain.DiscrepancyResolution
}

func newMemDiscrepancies() *memDiscrepancies {
	return &memDiscrepancies{records: make(map[string]*domain.DiscrepancyResolution)}
}

func (d *memDiscrepancies) Save(_ context.Context, r *domain.DiscrepancyResolution) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *r
	cp.DomainEvents = nil
	d.records[r.ID] = &cp
	return nil
}

func (d *memDiscrepancies) FindByID(_ context.Context, id string) (*domain.DiscrepancyResolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (d *memDiscrepancies) FindByLine(_ context.Context, transferID string, idx int) (*domain.DiscrepancyResolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.records {
		if r.TransferID == transferID && r.LineItemIndex == idx {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (d *memDiscrepancies) FindByTransfer(_ context.Context, transferID string) ([]*domain.DiscrepancyResolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*domain.DiscrepancyResolution
	for _, r := range d.records {
		if r.TransferID == transferID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineItemIndex < out[j].LineItemIndex })
	return out, nil
}

func (d *memDiscrepancies) FindPendingBySite(_ context.Context, siteID string) ([]*domain.DiscrepancyResolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*domain.DiscrepancyResolution
	for _, r := range d.records {
		if r.SiteID == siteID && !r.IsClosed() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memWorkers struct {
	workers map[string]*domain.Worker
}

func (w *memWorkers) Save(_ context.Context, worker *domain.Worker) error {
	cp := *worker
	w.workers[worker.ID] = &cp
	return nil
}

func (w *memWorkers) FindByID(_ context.Context, id string) (*domain.Worker, error) {
	return w.workers[id], nil
}

func (w *memWorkers) FindBySite(_ context.Context, siteID string) ([]*domain.Worker, error) {
	var out []*domain.Worker
	for _, worker := range w.workers {
		if worker.SiteID == siteID {
			out = append(out, worker)
		}
	}
	return out, nil
}

type memAssignments struct {
	mu          sync.Mutex
	assignments map[string]*domain.JobAssignment
}

func newMemAssignments() *memAssignments {
	return &memAssignments{assignments: make(map[string]*domain.JobAssignment)}
}

func (a *memAssignments) Save(_ context.Context, as *domain.JobAssignment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *as
	a.assignments[as.ID] = &cp
	return nil
}

func (a *memAssignments) FindActiveByJob(_ context.Context, jobID string) (*domain.JobAssignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, as := range a.assignments {
		if as.JobID == jobID && as.Status.IsActive() {
			cp := *as
			return &cp, nil
		}
	}
	return nil, nil
}

func (a *memAssignments) CountActiveByWorkers(_ context.Context, ids []string) (map[string]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		for _, as := range a.assignments {
			if as.WorkerID == id && as.Status.IsActive() {
				counts[id]++
			}
		}
	}
	return counts, nil
}

func (a *memAssignments) forJob(jobID string) []*domain.JobAssignment {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.JobAssignment
	for _, as := range a.assignments {
		if as.JobID == jobID {
			cp := *as
			out = append(out, &cp)
		}
	}
	return out
}

type memZones struct {
	locks map[string]*domain.ZoneLock
}

func (z *memZones) Lock(_ context.Context, l *domain.ZoneLock) error {
	z.locks[l.ID] = l
	return nil
}

func (z *memZones) Unlock(_ context.Context, siteID, zone string) error {
	delete(z.locks, domain.ZoneLockID(siteID, zone))
	return nil
}

func (z *memZones) Find(_ context.Context, siteID, zone string) (*domain.ZoneLock, error) {
	return z.locks[domain.ZoneLockID(siteID, zone)], nil
}

type memProposals struct {
	mu        sync.Mutex
	proposals map[string]*domain.Proposal
}

func (p *memProposals) Save(_ context.Context, pr *domain.Proposal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *pr
	p.proposals[pr.ID] = &cp
	return nil
}

func (p *memProposals) FindByID(_ context.Context, id string) (*domain.Proposal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr, ok := p.proposals[id]; ok {
		cp := *pr
		return &cp, nil
	}
	return nil, nil
}

// memLocker rejects a second holder while the first is active
type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func (l *memLocker) Acquire(_ context.Context, jobID, holder string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[jobID]; ok {
		return nil, domain.ErrLockNotAcquired
	}
	l.held[jobID] = holder
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, jobID)
		return nil
	}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []domain.TransferStatus
}

func (n *recordingNotifier) NotifyTransferStatus(_ context.Context, t *domain.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, t.TransferStatus)
	return nil
}

// testEnv wires every service against shared in-memory stores
type testEnv struct {
	jobs          *memJobs
	catalog       *memCatalog
	ledger        *memLedger
	approvals     *memApprovals
	discrepancies *memDiscrepancies
	workers       *memWorkers
	assignments   *memAssignments
	zones         *memZones
	proposals     *memProposals
	locker        *memLocker
	scans         *idempotency.MemoryRepository
	notifier      *recordingNotifier

	engine       *FulfillmentEngine
	orchestrator *TransferOrchestrator
	resolver     *DiscrepancyResolver
	scheduler    *AssignmentScheduler
	changes      *InventoryChangeService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		jobs:          newMemJobs(),
		catalog:       newMemCatalog(),
		approvals:     newMemApprovals(),
		discrepancies: newMemDiscrepancies(),
		workers:       &memWorkers{workers: make(map[string]*domain.Worker)},
		assignments:   newMemAssignments(),
		zones:         &memZones{locks: make(map[string]*domain.ZoneLock)},
		proposals:     &memProposals{proposals: make(map[string]*domain.Proposal)},
		locker:        &memLocker{held: make(map[string]string)},
		scans:         idempotency.NewMemoryRepository(),
		notifier:      &recordingNotifier{},
	}
	env.ledger = newMemLedger(env.catalog)
	for _, id := range []string{picker.UserID, picker2.UserID} {
		env.workers.workers[id] = &domain.Worker{ID: id, Name: "Worker " + id, Role: domain.RolePicker, SiteID: siteA, Status: domain.WorkerAvailable}
	}

	logger := testLogger()
	m := testMetrics()
	hub := NewCompletionHub(logger, m)

	env.scheduler = NewAssignmentScheduler(env.jobs, env.workers, env.assignments, env.zones, logger, m)
	env.engine = NewFulfillmentEngine(env.jobs, env.ledger, env.catalog, env.approvals, env.proposals,
		env.locker, env.scans, hub, env.scheduler, logger, m, DefaultEngineConfig())
	env.orchestrator = NewTransferOrchestrator(env.jobs, env.ledger, env.catalog, env.discrepancies,
		env.locker, env.notifier, hub, logger, m)
	env.resolver = NewDiscrepancyResolver(env.jobs, env.discrepancies, env.ledger, env.catalog,
		env.notifier, hub, logger, m)
	env.changes = NewInventoryChangeService(env.approvals, env.catalog, env.ledger, env.jobs, logger, m)

	hub.Register(env.orchestrator)
	hub.Register(env.scheduler)
	return env
}
