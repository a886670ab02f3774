package application

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/actor"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// EngineConfig tunes the fulfillment engine
type EngineConfig struct {
	ProposalTTL time.Duration
	ScanKeyTTL  time.Duration
}

// DefaultEngineConfig returns production defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ProposalTTL: 5 * time.Minute,
		ScanKeyTTL:  24 * time.Hour,
	}
}

// JobClaimer records the worker that starts a job
type JobClaimer interface {
	ClaimJob(ctx context.Context, job *domain.Job, workerID, claimedBy string) (*JobClaim, error)
}

// FulfillmentEngine drives a job through its line items
type FulfillmentEngine struct {
	jobs      domain.JobRepository
	ledger    domain.StockLedger
	catalog   domain.ProductCatalog
	approvals domain.ApprovalQueue
	proposals domain.ProposalRepository
	locker    domain.JobLocker
	scans     idempotency.Repository
	hub       *CompletionHub
	claims    JobClaimer
	logger    *logging.Logger
	metrics   *metrics.Metrics
	config    EngineConfig
}

// NewFulfillmentEngine creates a new FulfillmentEngine
func NewFulfillmentEngine(
	jobs domain.JobRepository,
	ledger domain.StockLedger,
	catalog domain.ProductCatalog,
	approvals domain.ApprovalQueue,
	proposals domain.ProposalRepository,
	locker domain.JobLocker,
	scans idempotency.Repository,
	hub *CompletionHub,
	claims JobClaimer,
	logger *logging.Logger,
	m *metrics.Metrics,
	config EngineConfig,
) *FulfillmentEngine {
	return &FulfillmentEngine{
		jobs:      jobs,
		ledger:    ledger,
		catalog:   catalog,
		approvals: approvals,
		proposals: proposals,
		locker:    locker,
		scans:     scans,
		hub:       hub,
		claims:    claims,
		logger:    logger.WithComponent("fulfillment-engine"),
		metrics:   m,
		config:    config,
	}
}

// CreateJob creates a manual job
func (e *FulfillmentEngine) CreateJob(ctx context.Context, cmd CreateJobCommand) (*JobDTO, error) {
	jobType := domain.JobType(strings.ToUpper(cmd.Type))
	if jobType == domain.JobTypeTransfer {
		return nil, errors.ErrValidation("transfers are created through the transfer endpoint")
	}
	if strings.TrimSpace(cmd.SiteID) == "" {
		return nil, errors.ErrValidation("siteId is required")
	}

	job, err := domain.NewJob(uuid.NewString(), jobType, cmd.SiteID, domain.Priority(cmd.Priority), cmd.LineItems, cmd.Actor.UserID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	job.Zone = cmd.Zone
	job.OrderRef = cmd.OrderRef

	if err := e.jobs.Create(ctx, job); err != nil {
		e.logger.WithError(err).Error("Failed to create job", "siteId", cmd.SiteID)
		return nil, persistenceError("create job", err)
	}

	e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "job.created",
		EntityType: "job",
		EntityID:   job.ID,
		Action:     "created",
		RelatedIDs: map[string]string{"siteId": job.SiteID},
		Data:       map[string]any{"type": job.Type, "items": len(job.LineItems)},
	})

	return ToJobDTO(job), nil
}

// GetJob retrieves a job by ID
func (e *FulfillmentEngine) GetJob(ctx context.Context, query GetJobQuery) (*JobDTO, error) {
	job, err := e.loadJob(ctx, query.JobID)
	if err != nil {
		return nil, err
	}
	return ToJobDTO(job), nil
}

// ListPendingJobs returns the open jobs of a site
func (e *FulfillmentEngine) ListPendingJobs(ctx context.Context, siteID string) ([]JobDTO, error) {
	jobs, err := e.jobs.FindPending(ctx, siteID)
	if err != nil {
		return nil, persistenceError("list pending jobs", err)
	}
	return ToJobDTOs(jobs), nil
}

// StartJob moves a job to In-Progress for a worker and returns it with its pick path
func (e *FulfillmentEngine) StartJob(ctx context.Context, cmd StartJobCommand) (*JobDTO, error) {
	if cmd.WorkerID == "" {
		return nil, errors.ErrValidation("workerId is required")
	}
	if cmd.ManagerOverride && !cmd.Actor.IsManagerClass() {
		return nil, errors.ErrPermissionDenied("override job lock", cmd.Actor.Role)
	}

	release, err := e.lock(ctx, cmd.JobID, cmd.WorkerID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := e.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}

	previous := job.AssignedTo
	if err := job.Start(cmd.WorkerID, cmd.ManagerOverride); err != nil {
		return nil, mapDomainError(err)
	}
	claim, err := e.claims.ClaimJob(ctx, job, cmd.WorkerID, cmd.Actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := e.jobs.Update(ctx, job); err != nil {
		claim.Abandon(context.WithoutCancel(ctx))
		e.logger.WithError(err).Error("Failed to start job", "jobId", job.ID)
		return nil, persistenceError("start job", err)
	}
	claim.Confirm(ctx)

	if cmd.ManagerOverride && previous != "" && previous != cmd.WorkerID {
		e.logger.Audit(ctx, "override_job_lock", "job", job.ID, cmd.Actor.UserID, map[string]any{
			"previousHolder": previous,
			"newHolder":      cmd.WorkerID,
		})
	}
	e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "job.started",
		EntityType: "job",
		EntityID:   job.ID,
		Action:     "started",
		RelatedIDs: map[string]string{"workerId": cmd.WorkerID},
	})

	return ToJobDTO(job), nil
}

// ScanItem applies one scan to the next pending line item.
// A replayed (job, line, attempt) returns the recorded result with Duplicate set.
func (e *FulfillmentEngine) ScanItem(ctx context.Context, cmd ScanItemCommand) (*ScanResultDTO, error) {
	if cmd.JobID == "" {
		return nil, errors.ErrValidation("jobId is required")
	}
	if cmd.Attempt <= 0 {
		cmd.Attempt = 1
	}

	release, err := e.lock(ctx, cmd.JobID, holderOf(cmd.WorkerID, cmd.Actor))
	if err != nil {
		return nil, err
	}
	defer release()

	key := idempotency.ScanKey(cmd.JobID, cmd.LineItemIndex, cmd.Attempt)
	record, created, err := e.scans.AcquireLock(ctx, idempotency.ScopeScan, key, e.config.ScanKeyTTL)
	if err != nil {
		return nil, errors.ErrInternal("failed to check scan idempotency").Wrap(err)
	}
	if !created {
		return e.replayScan(record)
	}

	result, err := e.applyScan(ctx, cmd, key)
	if err != nil {
		if releaseErr := e.scans.ReleaseLock(context.WithoutCancel(ctx), idempotency.ScopeScan, key); releaseErr != nil {
			e.logger.WithError(releaseErr).Warn("Failed to release scan key", "key", key)
		}
		e.metrics.RecordScan(jobTypeOf(result), "rejected")
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err == nil {
		err = e.scans.StoreResponse(ctx, idempotency.ScopeScan, key, payload)
	}
	if err != nil {
		e.logger.WithError(err).Warn("Failed to record scan result", "key", key)
	}

	outcome := result.ItemStatus
	if result.AwaitingApproval {
		outcome = "awaiting_approval"
	}
	e.metrics.RecordScan(result.Job.Type, outcome)
	return result, nil
}

func (e *FulfillmentEngine) replayScan(record *idempotency.Record) (*ScanResultDTO, error) {
	if !record.IsCompleted() {
		return nil, errors.ErrConflict("scan is already being processed").Wrap(idempotency.ErrConcurrentRequest)
	}
	var result ScanResultDTO
	if err := json.Unmarshal(record.Response, &result); err != nil {
		return nil, errors.ErrInternal("stored scan result is unreadable").Wrap(err)
	}
	result.Duplicate = true
	e.metrics.RecordScan(jobTypeOf(&result), "duplicate")
	return &result, nil
}

func (e *FulfillmentEngine) applyScan(ctx context.Context, cmd ScanItemCommand, key string) (*ScanResultDTO, error) {
	job, err := e.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if job.IsTransfer() {
		return nil, mapDomainError(domain.ErrTransferScan)
	}
	switch job.Status {
	case domain.JobStatusCancelled:
		return nil, mapDomainError(domain.ErrJobCancelled)
	case domain.JobStatusInProgress:
	default:
		return nil, mapDomainError(domain.ErrJobNotInProgress)
	}
	if cmd.WorkerID != "" && job.AssignedTo != "" && job.AssignedTo != cmd.WorkerID && !cmd.Actor.IsManagerClass() {
		return nil, mapDomainError(&domain.LockedError{JobID: job.ID, Holder: job.AssignedTo})
	}

	if _, err := job.Item(cmd.LineItemIndex); err != nil {
		return nil, mapDomainError(err)
	}
	item, ok := job.NextPending()
	if !ok {
		return nil, mapDomainError(domain.ErrNoPendingItems)
	}
	if item.OriginalIndex != cmd.LineItemIndex {
		return nil, errors.ErrConflict(domain.ErrStaleLineItem.Error()).
			Wrap(domain.ErrStaleLineItem).
			WithDetail("nextLineItemIndex", strconv.Itoa(item.OriginalIndex))
	}

	if cmd.ScannedSKU != "" && !strings.EqualFold(strings.TrimSpace(cmd.ScannedSKU), item.SKU) {
		return nil, mapDomainError(domain.ErrSKUMismatch)
	}
	qty := item.ExpectedQty
	if cmd.Quantity != nil {
		qty = *cmd.Quantity
	}
	if err := job.ValidateScanQuantity(item, qty); err != nil {
		return nil, mapDomainError(err)
	}
	forced := domain.LineItemStatus(cmd.ForcedStatus)
	if !validForcedStatus(forced) {
		return nil, mapDomainError(domain.ErrInvalidForcedStatus)
	}

	worker := holderOf(cmd.WorkerID, cmd.Actor)
	direction := ledgerDirection(job.Type)
	var movementID string

	if direction != "" && qty > 0 {
		productID, err := e.resolveProduct(ctx, job, item)
		if err != nil {
			return nil, err
		}
		if productID == "" {
			return e.haltForApproval(ctx, job, item, qty, worker)
		}

		if err := e.ensureNotCancelled(ctx, job.ID); err != nil {
			return nil, err
		}

		movement, err := e.ledger.AdjustStock(ctx, domain.StockAdjustment{
			ProductID:      productID,
			SiteID:         job.SiteID,
			Quantity:       qty,
			Direction:      direction,
			Reason:         domain.JobReason(job.ID),
			Reference:      ledgerReference(job, item),
			Actor:          worker,
			IdempotencyKey: key,
		})
		e.metrics.RecordLedgerWrite(string(direction), qty, err == nil)
		if err != nil {
			e.logger.WithError(err).Error("Ledger write failed, scan aborted",
				"jobId", job.ID, "lineItemIndex", item.OriginalIndex, "productId", productID)
			return nil, errors.ErrLedgerWriteFailure(productID, err)
		}
		movementID = movement.ID
	} else if err := e.ensureNotCancelled(ctx, job.ID); err != nil {
		return nil, err
	}

	if err := job.RecordScan(item.OriginalIndex, qty, forced); err != nil {
		return nil, mapDomainError(err)
	}
	completed := job.TryComplete()

	if err := e.jobs.Update(ctx, job); err != nil {
		e.logger.WithError(err).Error("Failed to persist scan", "jobId", job.ID, "lineItemIndex", item.OriginalIndex)
		return nil, persistenceError("persist scan", err)
	}

	e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "job.item_scanned",
		EntityType: "job",
		EntityID:   job.ID,
		Action:     "scanned",
		RelatedIDs: map[string]string{"workerId": worker, "sku": item.SKU},
		Data: map[string]any{
			"lineItemIndex": item.OriginalIndex,
			"quantity":      qty,
			"status":        item.Status,
		},
	})

	if completed {
		e.hub.Publish(ctx, job)
	}

	result := &ScanResultDTO{
		Job:           ToJobDTO(job),
		LineItemIndex: item.OriginalIndex,
		ItemStatus:    string(item.Status),
		Quantity:      qty,
		MovementID:    movementID,
		JobCompleted:  completed,
	}
	if next, ok := job.NextPending(); ok {
		idx := next.OriginalIndex
		result.NextItemIndex = &idx
	}
	return result, nil
}

// resolveProduct returns the catalog product for an item, linking it when found
// by SKU. An empty id means the product does not exist at the job's site.
func (e *FulfillmentEngine) resolveProduct(ctx context.Context, job *domain.Job, item *domain.LineItem) (string, error) {
	if item.ProductID != "" {
		return item.ProductID, nil
	}
	product, err := e.catalog.FindBySKUAtSite(ctx, item.SKU, job.SiteID)
	if err != nil {
		return "", errors.ErrInternal("failed to look up product").Wrap(err)
	}
	if product == nil {
		if job.Type == domain.JobTypePutaway {
			return "", nil
		}
		return "", errors.ErrNotFoundWithID("product", item.SKU)
	}
	if err := job.LinkProduct(item.OriginalIndex, product.ID); err != nil {
		return "", mapDomainError(err)
	}
	return product.ID, nil
}

// haltForApproval queues product creation for an unknown putaway SKU without touching stock
func (e *FulfillmentEngine) haltForApproval(ctx context.Context, job *domain.Job, item *domain.LineItem, qty int, worker string) (*ScanResultDTO, error) {
	change, err := e.approvals.FindPendingForJobItem(ctx, job.ID, item.OriginalIndex)
	if err != nil {
		return nil, persistenceError("look up pending change", err)
	}
	if change == nil {
		change = domain.NewProductCreationRequest(uuid.NewString(), job, item, qty, worker)
		if err := e.approvals.Create(ctx, change); err != nil {
			e.logger.WithError(err).Error("Failed to queue product creation", "jobId", job.ID, "sku", item.SKU)
			return nil, persistenceError("queue product creation", err)
		}
		e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
			EventType:  "inventory.change_requested",
			EntityType: "inventory_change",
			EntityID:   change.ID,
			Action:     "requested",
			RelatedIDs: map[string]string{"jobId": job.ID, "sku": item.SKU},
			Data:       map[string]any{"changeType": change.ChangeType, "quantity": qty},
		})
	}

	return &ScanResultDTO{
		Job:              ToJobDTO(job),
		LineItemIndex:    item.OriginalIndex,
		ItemStatus:       string(item.Status),
		Quantity:         qty,
		PendingChangeID:  change.ID,
		AwaitingApproval: true,
	}, nil
}

// ensureNotCancelled re-reads the job right before a side effect
func (e *FulfillmentEngine) ensureNotCancelled(ctx context.Context, jobID string) error {
	current, err := e.jobs.FindByID(ctx, jobID)
	if err != nil {
		return persistenceError("re-read job", err)
	}
	if current == nil {
		return errors.ErrNotFoundWithID("job", jobID)
	}
	if current.Status == domain.JobStatusCancelled {
		return mapDomainError(domain.ErrJobCancelled)
	}
	return nil
}

// ResolveShort finishes a short line either as a forced Short scan or by discontinuing the product
func (e *FulfillmentEngine) ResolveShort(ctx context.Context, cmd ResolveShortCommand) (*ScanResultDTO, error) {
	switch cmd.Resolution {
	case ShortStandard, "":
		qty := cmd.ActualQty
		return e.ScanItem(ctx, ScanItemCommand{
			JobID:         cmd.JobID,
			WorkerID:      cmd.WorkerID,
			LineItemIndex: cmd.LineItemIndex,
			Attempt:       cmd.Attempt,
			Quantity:      &qty,
			ForcedStatus:  string(domain.LineItemShort),
			Actor:         cmd.Actor,
		})
	case ShortDiscontinue:
		return e.discontinue(ctx, cmd)
	}
	return nil, errors.ErrValidation("resolution must be standard or discontinue")
}

func (e *FulfillmentEngine) discontinue(ctx context.Context, cmd ResolveShortCommand) (*ScanResultDTO, error) {
	if cmd.ProposalID == "" {
		return nil, errors.ErrValidation("discontinue requires a confirmed proposal")
	}

	release, err := e.lock(ctx, cmd.JobID, holderOf(cmd.WorkerID, cmd.Actor))
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := e.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		if job.Status == domain.JobStatusCancelled {
			return nil, mapDomainError(domain.ErrJobCancelled)
		}
		return nil, mapDomainError(domain.ErrJobAlreadyCompleted)
	}
	item, err := job.Item(cmd.LineItemIndex)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if item.Status != domain.LineItemPending && item.Status != domain.LineItemShort {
		return nil, mapDomainError(domain.ErrLineItemNotPending)
	}

	proposal, err := e.confirmProposal(ctx, cmd.ProposalID, domain.ProposalDiscontinueProduct, job.ID, item.OriginalIndex, cmd.Actor)
	if err != nil {
		return nil, err
	}

	var movementID string
	product, err := e.findProduct(ctx, job, item)
	if err != nil {
		return nil, err
	}
	if product != nil {
		if product.Stock > 0 {
			movement, err := e.ledger.AdjustStock(ctx, domain.StockAdjustment{
				ProductID:      product.ID,
				SiteID:         product.SiteID,
				Quantity:       product.Stock,
				Direction:      domain.DirectionOut,
				Reason:         domain.JobReason(job.ID),
				Reference:      "discontinue:" + item.SKU,
				Actor:          cmd.Actor.UserID,
				IdempotencyKey: "discontinue:" + cmd.ProposalID,
			})
			e.metrics.RecordLedgerWrite(string(domain.DirectionOut), product.Stock, err == nil)
			if err != nil {
				e.logger.WithError(err).Error("Compensating ledger write failed", "jobId", job.ID, "productId", product.ID)
				return nil, errors.ErrLedgerWriteFailure(product.ID, err)
			}
			movementID = movement.ID
		}
		if err := e.catalog.ArchiveProduct(ctx, product.ID); err != nil {
			e.logger.WithError(err).Error("Failed to archive product", "productId", product.ID)
			return nil, persistenceError("archive product", err)
		}
	}

	if err := job.DiscontinueItem(item.OriginalIndex); err != nil {
		return nil, mapDomainError(err)
	}
	completed := job.TryComplete()
	if err := e.jobs.Update(ctx, job); err != nil {
		e.logger.WithError(err).Error("Failed to persist discontinued item", "jobId", job.ID)
		return nil, persistenceError("persist discontinued item", err)
	}
	e.recordProposal(ctx, proposal)

	e.logger.Audit(ctx, "discontinue_product", "job", job.ID, cmd.Actor.UserID, map[string]any{
		"lineItemIndex": item.OriginalIndex,
		"sku":           item.SKU,
		"proposalId":    cmd.ProposalID,
	})
	if completed {
		e.hub.Publish(ctx, job)
	}

	result := &ScanResultDTO{
		Job:           ToJobDTO(job),
		LineItemIndex: item.OriginalIndex,
		ItemStatus:    string(item.Status),
		MovementID:    movementID,
		JobCompleted:  completed,
	}
	if next, ok := job.NextPending(); ok {
		idx := next.OriginalIndex
		result.NextItemIndex = &idx
	}
	return result, nil
}

func (e *FulfillmentEngine) findProduct(ctx context.Context, job *domain.Job, item *domain.LineItem) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if item.ProductID != "" {
		product, err = e.catalog.FindByID(ctx, item.ProductID)
	} else {
		product, err = e.catalog.FindBySKUAtSite(ctx, item.SKU, job.SiteID)
	}
	if err != nil {
		return nil, errors.ErrInternal("failed to look up product").Wrap(err)
	}
	return product, nil
}

// CompleteJob completes a job whose items are all terminal
func (e *FulfillmentEngine) CompleteJob(ctx context.Context, cmd CompleteJobCommand) (*JobDTO, error) {
	release, err := e.lock(ctx, cmd.JobID, cmd.Actor.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := e.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if err := job.Complete(); err != nil {
		return nil, mapDomainError(err)
	}
	if err := e.jobs.Update(ctx, job); err != nil {
		e.logger.WithError(err).Error("Failed to complete job", "jobId", job.ID)
		return nil, persistenceError("complete job", err)
	}

	e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "job.completed",
		EntityType: "job",
		EntityID:   job.ID,
		Action:     "completed",
		Data:       map[string]any{"units": job.ProcessedUnits()},
	})
	e.hub.Publish(ctx, job)

	return ToJobDTO(job), nil
}

// Propose opens the first step of a destructive command
func (e *FulfillmentEngine) Propose(ctx context.Context, cmd ProposeCommand) (*ProposalDTO, error) {
	job, err := e.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	kind := domain.ProposalKind(cmd.Kind)
	if kind == domain.ProposalDiscontinueProduct {
		if _, err := job.Item(cmd.LineItemIndex); err != nil {
			return nil, mapDomainError(err)
		}
	}

	proposal, err := domain.NewProposal(uuid.NewString(), kind, job.ID, cmd.LineItemIndex, cmd.Reason, cmd.Actor.UserID, e.config.ProposalTTL)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if err := e.proposals.Save(ctx, proposal); err != nil {
		return nil, persistenceError("save proposal", err)
	}

	e.logger.Audit(ctx, "propose_"+string(kind), "job", job.ID, cmd.Actor.UserID, map[string]any{
		"proposalId":    proposal.ID,
		"lineItemIndex": cmd.LineItemIndex,
	})
	return ToProposalDTO(proposal), nil
}

// CancelJob confirms a cancel_job proposal and cancels the job
func (e *FulfillmentEngine) CancelJob(ctx context.Context, cmd CancelJobCommand) (*JobDTO, error) {
	if cmd.ProposalID == "" {
		return nil, errors.ErrValidation("cancel requires a confirmed proposal")
	}

	release, err := e.lock(ctx, cmd.JobID, cmd.Actor.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := e.loadJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if job.IsTransfer() {
		return nil, errors.ErrConflict("transfers are cancelled through the transfer endpoint")
	}
	if job.Status.IsTerminal() {
		return nil, mapDomainError(job.Cancel(cmd.Reason))
	}

	proposal, err := e.confirmProposal(ctx, cmd.ProposalID, domain.ProposalCancelJob, job.ID, 0, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if err := job.Cancel(cmd.Reason); err != nil {
		return nil, mapDomainError(err)
	}
	if err := e.jobs.Update(ctx, job); err != nil {
		e.logger.WithError(err).Error("Failed to cancel job", "jobId", job.ID)
		return nil, persistenceError("cancel job", err)
	}
	e.recordProposal(ctx, proposal)
	e.hub.PublishCancelled(ctx, job)

	e.logger.Audit(ctx, "cancel_job", "job", job.ID, cmd.Actor.UserID, map[string]any{
		"reason":     cmd.Reason,
		"proposalId": cmd.ProposalID,
	})
	return ToJobDTO(job), nil
}

// confirmProposal confirms the proposal in memory. The caller persists it with
// recordProposal once the command's effects are saved; an expiry is stored at once.
func (e *FulfillmentEngine) confirmProposal(ctx context.Context, proposalID string, kind domain.ProposalKind, jobID string, idx int, a actor.Actor) (*domain.Proposal, error) {
	proposal, err := e.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, persistenceError("load proposal", err)
	}
	if proposal == nil {
		return nil, errors.ErrNotFoundWithID("proposal", proposalID)
	}

	if err := proposal.Confirm(kind, jobID, idx, a.UserID, time.Now().UTC()); err != nil {
		if proposal.Status == domain.ProposalExpired {
			if saveErr := e.proposals.Save(ctx, proposal); saveErr != nil {
				return nil, persistenceError("save proposal", saveErr)
			}
		}
		return nil, mapDomainError(err)
	}
	return proposal, nil
}

func (e *FulfillmentEngine) recordProposal(ctx context.Context, proposal *domain.Proposal) {
	if err := e.proposals.Save(ctx, proposal); err != nil {
		e.logger.WithError(err).Error("Failed to record confirmed proposal", "proposalId", proposal.ID)
	}
}

func (e *FulfillmentEngine) loadJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, errors.ErrValidation("jobId is required")
	}
	job, err := e.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, persistenceError("get job", err)
	}
	if job == nil {
		return nil, errors.ErrNotFoundWithID("job", jobID)
	}
	return job, nil
}

// lock takes the per-job lock; the returned func releases it
func (e *FulfillmentEngine) lock(ctx context.Context, jobID, holder string) (func(), error) {
	if jobID == "" {
		return nil, errors.ErrValidation("jobId is required")
	}
	releaseFn, err := e.locker.Acquire(ctx, jobID, holder)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return func() {
		if err := releaseFn(context.WithoutCancel(ctx)); err != nil {
			e.logger.WithError(err).Warn("Failed to release job lock", "jobId", jobID)
		}
	}, nil
}

func ledgerDirection(t domain.JobType) domain.Direction {
	switch t {
	case domain.JobTypePutaway:
		return domain.DirectionIn
	case domain.JobTypePick:
		return domain.DirectionOut
	}
	return ""
}

func ledgerReference(job *domain.Job, item *domain.LineItem) string {
	if job.OrderRef != "" {
		return job.OrderRef
	}
	return item.Location
}

func validForcedStatus(s domain.LineItemStatus) bool {
	switch s {
	case "", domain.LineItemPicked, domain.LineItemShort, domain.LineItemCompleted:
		return true
	}
	return false
}

func holderOf(workerID string, a actor.Actor) string {
	if workerID != "" {
		return workerID
	}
	return a.UserID
}

func jobTypeOf(result *ScanResultDTO) string {
	if result == nil || result.Job == nil {
		return "unknown"
	}
	return result.Job.Type
}
