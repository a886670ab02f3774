package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/actor"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
)

// TransferOrchestrator runs the shipment pipeline of TRANSFER jobs
type TransferOrchestrator struct {
	jobs          domain.JobRepository
	ledger        domain.StockLedger
	catalog       domain.ProductCatalog
	discrepancies domain.DiscrepancyRepository
	locker        domain.JobLocker
	notifier      TransferNotifier
	hub           *CompletionHub
	logger        *logging.Logger
	metrics       *metrics.Metrics
	retry         *resilience.RetryConfig
	lockRetry     *resilience.RetryConfig
}

// NewTransferOrchestrator creates a new TransferOrchestrator
func NewTransferOrchestrator(
	jobs domain.JobRepository,
	ledger domain.StockLedger,
	catalog domain.ProductCatalog,
	discrepancies domain.DiscrepancyRepository,
	locker domain.JobLocker,
	notifier TransferNotifier,
	hub *CompletionHub,
	logger *logging.Logger,
	m *metrics.Metrics,
) *TransferOrchestrator {
	if notifier == nil {
		notifier = NoopTransferNotifier{}
	}
	retry := resilience.DefaultRetryConfig()
	retry.InitialDelay = 10 * time.Millisecond
	retry.RetryableErrors = func(err error) bool {
		return stderrors.Is(err, domain.ErrConcurrentModification)
	}
	lockRetry := resilience.DefaultRetryConfig()
	lockRetry.MaxAttempts = 5
	lockRetry.InitialDelay = 20 * time.Millisecond
	lockRetry.RetryableErrors = func(err error) bool {
		return stderrors.Is(err, domain.ErrLockNotAcquired)
	}
	return &TransferOrchestrator{
		jobs:          jobs,
		ledger:        ledger,
		catalog:       catalog,
		discrepancies: discrepancies,
		locker:        locker,
		notifier:      notifier,
		hub:           hub,
		logger:        logger.WithComponent("transfer-orchestrator"),
		metrics:       m,
		retry:         retry,
		lockRetry:     lockRetry,
	}
}

// RequestTransfer creates a TRANSFER job awaiting approval
func (o *TransferOrchestrator) RequestTransfer(ctx context.Context, cmd RequestTransferCommand) (*JobDTO, error) {
	transfer, err := domain.NewTransferJob(uuid.NewString(), cmd.SourceSiteID, cmd.DestSiteID,
		domain.Priority(cmd.Priority), cmd.LineItems, cmd.Actor.UserID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if len(transfer.LineItems) == 0 {
		return nil, mapDomainError(domain.ErrNoLineItems)
	}
	transfer.Zone = cmd.Zone

	if err := o.jobs.Create(ctx, transfer); err != nil {
		o.logger.WithError(err).Error("Failed to create transfer")
		return nil, persistenceError("create transfer", err)
	}

	o.metrics.RecordTransferTransition(string(domain.TransferRequested))
	o.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "transfer.requested",
		EntityType: "transfer",
		EntityID:   transfer.ID,
		Action:     "requested",
		RelatedIDs: map[string]string{
			"sourceSiteId": transfer.SourceSiteID,
			"destSiteId":   transfer.DestSiteID,
		},
	})
	o.notify(ctx, transfer)

	return ToJobDTO(transfer), nil
}

// ApproveTransfer moves a requested transfer to Picking and spawns its companion PICK job
func (o *TransferOrchestrator) ApproveTransfer(ctx context.Context, cmd TransferCommand) (*JobDTO, error) {
	if !cmd.Actor.IsManagerClass() {
		return nil, errors.ErrPermissionDenied("approve transfer", cmd.Actor.Role)
	}

	transfer, err := o.loadTransfer(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	if err := transfer.Approve(cmd.Actor.UserID); err != nil {
		return nil, mapDomainError(err)
	}

	// The companion is created first under a derived id so a retried approval
	// finds it instead of spawning a second one.
	pick, err := o.ensureCompanionPick(ctx, transfer)
	if err != nil {
		return nil, err
	}
	if err := o.jobs.Update(ctx, transfer); err != nil {
		o.logger.WithError(err).Error("Failed to approve transfer", "transferId", transfer.ID)
		return nil, persistenceError("approve transfer", err)
	}

	o.metrics.RecordTransferTransition(string(domain.TransferPicking))
	o.logger.Audit(ctx, "approve_transfer", "transfer", transfer.ID, cmd.Actor.UserID, map[string]any{
		"companionJobId": pick.ID,
	})
	o.notify(ctx, transfer)

	return ToJobDTO(transfer), nil
}

func (o *TransferOrchestrator) ensureCompanionPick(ctx context.Context, transfer *domain.Job) (*domain.Job, error) {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("companion-pick:"+transfer.ID)).String()
	existing, err := o.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError("look up companion job", err)
	}
	if existing != nil {
		return existing, nil
	}

	pick, err := domain.NewJob(id, domain.JobTypePick, transfer.SourceSiteID, transfer.Priority,
		mirrorItems(transfer.LineItems, func(item domain.LineItem) int { return item.ExpectedQty }),
		transfer.ApprovedBy)
	if err != nil {
		return nil, mapDomainError(err)
	}
	pick.OrderRef = transfer.ID
	pick.Zone = transfer.Zone

	if err := o.jobs.Create(ctx, pick); err != nil {
		o.logger.WithError(err).Error("Failed to create companion pick job", "transferId", transfer.ID)
		return nil, persistenceError("create companion pick job", err)
	}
	return pick, nil
}

// OnJobCompleted advances the transfer a companion job belongs to.
// A completed order PICK that is not part of a transfer chains a PACK job.
func (o *TransferOrchestrator) OnJobCompleted(ctx context.Context, job *domain.Job) error {
	if job.IsTransfer() || job.OrderRef == "" {
		return nil
	}

	transfer, err := o.jobs.FindByID(ctx, job.OrderRef)
	if err != nil {
		return fmt.Errorf("failed to look up transfer %s: %w", job.OrderRef, err)
	}
	if transfer == nil || !transfer.IsTransfer() {
		if job.Type == domain.JobTypePick {
			return o.chainPack(ctx, job)
		}
		return nil
	}

	var target domain.TransferStatus
	switch job.Type {
	case domain.JobTypePick:
		target = domain.TransferPicked
	case domain.JobTypePack:
		target = domain.TransferPacked
	case domain.JobTypeDispatch:
		target = domain.TransferInTransit
	default:
		return nil
	}

	_, err = resilience.RetryWithResult(ctx, o.retry, func() (bool, error) {
		current, err := o.loadTransfer(ctx, transfer.ID)
		if err != nil {
			return false, err
		}
		if !current.TransferStatus.CanTransitionTo(target) {
			o.logger.Warn("Companion completion does not advance transfer",
				"transferId", current.ID, "jobId", job.ID, "transferStatus", current.TransferStatus, "target", target)
			return false, nil
		}
		if err := current.TransitionTransfer(target, actor.System.UserID); err != nil {
			return false, err
		}
		if err := o.jobs.Update(ctx, current); err != nil {
			return false, err
		}
		o.metrics.RecordTransferTransition(string(target))
		o.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
			EventType:  "transfer.status_changed",
			EntityType: "transfer",
			EntityID:   current.ID,
			Action:     string(target),
			RelatedIDs: map[string]string{"companionJobId": job.ID},
		})
		o.notify(ctx, current)
		return true, nil
	})
	return err
}

func (o *TransferOrchestrator) chainPack(ctx context.Context, pick *domain.Job) error {
	siblings, err := o.jobs.FindByOrderRef(ctx, pick.OrderRef)
	if err != nil {
		return fmt.Errorf("failed to look up jobs for order %s: %w", pick.OrderRef, err)
	}
	for _, sibling := range siblings {
		if sibling.Type == domain.JobTypePack && sibling.Status != domain.JobStatusCancelled {
			return nil
		}
	}

	items := mirrorItems(pick.LineItems, func(item domain.LineItem) int { return item.PickedQty })
	if len(items) == 0 {
		o.logger.Info("Nothing picked, no pack job chained", "jobId", pick.ID, "orderRef", pick.OrderRef)
		return nil
	}

	pack, err := domain.NewJob(uuid.NewString(), domain.JobTypePack, pick.SiteID, pick.Priority, items, actor.System.UserID)
	if err != nil {
		return err
	}
	pack.OrderRef = pick.OrderRef
	pack.Zone = pick.Zone
	if err := o.jobs.Create(ctx, pack); err != nil {
		return fmt.Errorf("failed to create pack job: %w", err)
	}

	o.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "job.created",
		EntityType: "job",
		EntityID:   pack.ID,
		Action:     "chained",
		RelatedIDs: map[string]string{"pickJobId": pick.ID, "orderRef": pick.OrderRef},
	})
	return nil
}

// mirrorItems copies line items keeping only those with a positive quantity
func mirrorItems(items []domain.LineItem, qty func(domain.LineItem) int) []domain.LineItem {
	mirrored := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		q := qty(item)
		if q <= 0 {
			continue
		}
		mirrored = append(mirrored, domain.LineItem{
			ProductID:   item.ProductID,
			SKU:         item.SKU,
			Name:        item.Name,
			Location:    item.Location,
			ExpectedQty: q,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
		})
	}
	return mirrored
}

// PackTransfer moves a picked transfer to Packed
func (o *TransferOrchestrator) PackTransfer(ctx context.Context, cmd TransferCommand) (*JobDTO, error) {
	return o.transition(ctx, cmd.TransferID, cmd.Actor, func(t *domain.Job) error {
		return t.TransitionTransfer(domain.TransferPacked, cmd.Actor.UserID)
	})
}

// ShipTransfer moves a packed transfer to In-Transit
func (o *TransferOrchestrator) ShipTransfer(ctx context.Context, cmd ShipTransferCommand) (*JobDTO, error) {
	return o.transition(ctx, cmd.TransferID, cmd.Actor, func(t *domain.Job) error {
		return t.Ship(strings.TrimSpace(cmd.TrackingNumber), cmd.Actor.UserID)
	})
}

// MarkDelivered records arrival at the destination dock
func (o *TransferOrchestrator) MarkDelivered(ctx context.Context, cmd TransferCommand) (*JobDTO, error) {
	return o.transition(ctx, cmd.TransferID, cmd.Actor, func(t *domain.Job) error {
		return t.TransitionTransfer(domain.TransferDelivered, cmd.Actor.UserID)
	})
}

func (o *TransferOrchestrator) transition(ctx context.Context, transferID string, a actor.Actor, apply func(*domain.Job) error) (*JobDTO, error) {
	transfer, err := o.loadTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	from := transfer.TransferStatus
	if err := apply(transfer); err != nil {
		return nil, mapDomainError(err)
	}
	if err := o.jobs.Update(ctx, transfer); err != nil {
		o.logger.WithError(err).Error("Failed to update transfer", "transferId", transfer.ID)
		return nil, persistenceError("update transfer", err)
	}

	o.metrics.RecordTransferTransition(string(transfer.TransferStatus))
	o.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "transfer.status_changed",
		EntityType: "transfer",
		EntityID:   transfer.ID,
		Action:     string(transfer.TransferStatus),
		RelatedIDs: map[string]string{"actorId": a.UserID},
		Data:       map[string]any{"from": from},
	})
	o.notify(ctx, transfer)

	return ToJobDTO(transfer), nil
}

// FinalizeReceive records the destination receipt. The transfer becomes Received
// regardless of quantities; every mismatching line opens one pending resolution.
func (o *TransferOrchestrator) FinalizeReceive(ctx context.Context, cmd FinalizeReceiveCommand) (*ReceiveResultDTO, error) {
	transfer, err := o.loadTransfer(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	outcomes, err := transfer.PlanReceipt(cmd.Lines)
	if err != nil {
		return nil, mapDomainError(err)
	}

	destProducts := make(map[int]string)
	for _, outcome := range outcomes {
		if outcome.ReceivedQty <= 0 {
			continue
		}
		item := transfer.LineItems[outcome.LineItemIndex]
		product, err := o.findOrCreateProduct(ctx, item, transfer.DestSiteID)
		if err != nil {
			return nil, err
		}
		destProducts[outcome.LineItemIndex] = product.ID

		_, err = o.ledger.AdjustStock(ctx, domain.StockAdjustment{
			ProductID:      product.ID,
			SiteID:         transfer.DestSiteID,
			Quantity:       outcome.ReceivedQty,
			Direction:      domain.DirectionIn,
			Reason:         domain.JobReason(transfer.ID),
			Reference:      transfer.OrderRef,
			Actor:          cmd.Actor.UserID,
			IdempotencyKey: fmt.Sprintf("receive:%s:%d", transfer.ID, outcome.LineItemIndex),
		})
		o.metrics.RecordLedgerWrite(string(domain.DirectionIn), outcome.ReceivedQty, err == nil)
		if err != nil {
			o.logger.WithError(err).Error("Ledger write failed, receipt aborted",
				"transferId", transfer.ID, "lineItemIndex", outcome.LineItemIndex)
			return nil, errors.ErrLedgerWriteFailure(product.ID, err)
		}
	}

	if err := transfer.ApplyReceipt(outcomes, cmd.Actor.UserID); err != nil {
		return nil, mapDomainError(err)
	}
	if err := o.jobs.Update(ctx, transfer); err != nil {
		o.logger.WithError(err).Error("Failed to record receipt", "transferId", transfer.ID)
		return nil, persistenceError("record receipt", err)
	}
	o.metrics.RecordTransferTransition(string(domain.TransferReceived))

	records := make([]*domain.DiscrepancyResolution, 0)
	for _, outcome := range outcomes {
		if outcome.Matched() {
			continue
		}
		record, err := o.openDiscrepancy(ctx, transfer, outcome, destProducts[outcome.LineItemIndex], cmd.Actor.UserID)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	o.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "transfer.received",
		EntityType: "transfer",
		EntityID:   transfer.ID,
		Action:     "received",
		RelatedIDs: map[string]string{"receivedBy": cmd.Actor.UserID},
		Data:       map[string]any{"discrepancies": len(records), "jobStatus": transfer.Status},
	})
	if transfer.Status == domain.JobStatusCompleted {
		o.hub.Publish(ctx, transfer)
	}
	o.notify(ctx, transfer)

	return &ReceiveResultDTO{
		Transfer:      ToJobDTO(transfer),
		Discrepancies: ToDiscrepancyDTOs(records),
	}, nil
}

func (o *TransferOrchestrator) openDiscrepancy(ctx context.Context, transfer *domain.Job, outcome domain.ReceiptOutcome, destProductID, reportedBy string) (*domain.DiscrepancyResolution, error) {
	existing, err := o.discrepancies.FindByLine(ctx, transfer.ID, outcome.LineItemIndex)
	if err != nil {
		return nil, persistenceError("look up discrepancy", err)
	}
	if existing != nil {
		return existing, nil
	}

	var dtype domain.DiscrepancyType
	if !outcome.Listed {
		dtype = domain.DiscrepancyMissing
	}
	record, err := domain.NewDiscrepancyResolution(uuid.NewString(), transfer, outcome.LineItemIndex, outcome.ReceivedQty, dtype, reportedBy)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if destProductID != "" {
		record.ProductID = destProductID
	}
	if err := o.discrepancies.Save(ctx, record); err != nil {
		o.logger.WithError(err).Error("Failed to save discrepancy", "transferId", transfer.ID, "lineItemIndex", outcome.LineItemIndex)
		return nil, persistenceError("save discrepancy", err)
	}

	o.metrics.RecordDiscrepancy(string(record.DiscrepancyType))
	o.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "discrepancy.raised",
		EntityType: "discrepancy",
		EntityID:   record.ID,
		Action:     "raised",
		RelatedIDs: map[string]string{"transferId": transfer.ID, "sku": record.SKU},
		Data:       map[string]any{"variance": record.Variance, "type": record.DiscrepancyType},
	})
	return record, nil
}

func (o *TransferOrchestrator) findOrCreateProduct(ctx context.Context, item domain.LineItem, siteID string) (*domain.Product, error) {
	product, err := o.catalog.FindBySKUAtSite(ctx, item.SKU, siteID)
	if err != nil {
		return nil, errors.ErrInternal("failed to look up destination product").Wrap(err)
	}
	if product != nil {
		return product, nil
	}

	product = domain.NewProduct(uuid.NewString(), item.SKU, item.Name, siteID, "")
	if err := o.catalog.CreateProduct(ctx, product); err != nil {
		o.logger.WithError(err).Error("Failed to create destination product", "sku", item.SKU, "siteId", siteID)
		return nil, persistenceError("create destination product", err)
	}
	o.logger.Info("Created destination product for transfer receipt", "sku", item.SKU, "siteId", siteID, "productId", product.ID)
	return product, nil
}

// CancelTransfer cancels a transfer that has not shipped, with its open companion jobs
func (o *TransferOrchestrator) CancelTransfer(ctx context.Context, cmd CancelTransferCommand) (*JobDTO, error) {
	transfer, err := o.loadTransfer(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	if !cmd.Actor.IsManagerClass() && cmd.Actor.UserID != transfer.RequestedBy {
		return nil, errors.ErrPermissionDenied("cancel transfer", cmd.Actor.Role)
	}

	if err := o.cancel(ctx, transfer, cmd.Reason, cmd.Actor.UserID); err != nil {
		return nil, err
	}
	o.logger.Audit(ctx, "cancel_transfer", "transfer", transfer.ID, cmd.Actor.UserID, map[string]any{
		"reason": cmd.Reason,
	})
	return ToJobDTO(transfer), nil
}

// cancel cancels the transfer and its open companion jobs. Every open companion
// is locked first so no scan can write to the ledger for a job being cancelled.
func (o *TransferOrchestrator) cancel(ctx context.Context, transfer *domain.Job, reason, actorID string) error {
	if err := transfer.CancelTransfer(reason, actorID); err != nil {
		return mapDomainError(err)
	}

	companions, err := o.jobs.FindByOrderRef(ctx, transfer.ID)
	if err != nil {
		o.logger.WithError(err).Error("Failed to look up companion jobs", "transferId", transfer.ID)
		return persistenceError("look up companion jobs", err)
	}
	var open []string
	for _, companion := range companions {
		if !companion.Status.IsTerminal() {
			open = append(open, companion.ID)
		}
	}
	release, err := o.lockJobs(ctx, open, actorID)
	if err != nil {
		return err
	}
	defer release()

	if err := o.jobs.Update(ctx, transfer); err != nil {
		o.logger.WithError(err).Error("Failed to cancel transfer", "transferId", transfer.ID)
		return persistenceError("cancel transfer", err)
	}
	o.metrics.RecordTransferTransition(string(domain.TransferCancelled))
	o.hub.PublishCancelled(ctx, transfer)

	for _, id := range open {
		companion, err := o.jobs.FindByID(ctx, id)
		if err != nil || companion == nil || companion.Status.IsTerminal() {
			continue
		}
		if err := companion.Cancel("transfer cancelled: " + reason); err != nil {
			continue
		}
		if err := o.jobs.Update(ctx, companion); err != nil {
			o.logger.WithError(err).Error("Failed to cancel companion job", "transferId", transfer.ID, "jobId", companion.ID)
			continue
		}
		o.hub.PublishCancelled(ctx, companion)
	}

	o.notify(ctx, transfer)
	return nil
}

// lockJobs takes the per-job lock on every id, waiting briefly for a scan in
// flight. On failure the locks already taken are released.
func (o *TransferOrchestrator) lockJobs(ctx context.Context, jobIDs []string, holder string) (func(), error) {
	releases := make([]func(context.Context) error, 0, len(jobIDs))
	releaseAll := func() {
		for _, release := range releases {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logger.WithError(err).Warn("Failed to release job lock")
			}
		}
	}

	for _, id := range jobIDs {
		release, err := resilience.RetryWithResult(ctx, o.lockRetry, func() (func(context.Context) error, error) {
			return o.locker.Acquire(ctx, id, holder)
		})
		if err != nil {
			releaseAll()
			o.logger.WithError(err).Warn("Companion job is busy, cancel refused", "jobId", id)
			return nil, mapDomainError(err)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// ExpireStaleTransfer cancels a transfer still waiting for approval.
// It reports false when the transfer already moved on.
func (o *TransferOrchestrator) ExpireStaleTransfer(ctx context.Context, transferID string) (bool, error) {
	transfer, err := o.loadTransfer(ctx, transferID)
	if err != nil {
		return false, err
	}
	if transfer.TransferStatus != domain.TransferRequested {
		return false, nil
	}
	if err := o.cancel(ctx, transfer, "approval timeout", actor.System.UserID); err != nil {
		return false, err
	}
	o.logger.Audit(ctx, "expire_transfer", "transfer", transfer.ID, actor.System.UserID, nil)
	return true, nil
}

// FlagTransitDelay raises an exception for a transfer that stayed In-Transit too long
func (o *TransferOrchestrator) FlagTransitDelay(ctx context.Context, transferID string) (bool, error) {
	transfer, err := o.loadTransfer(ctx, transferID)
	if err != nil {
		return false, err
	}
	if transfer.TransferStatus != domain.TransferInTransit {
		return false, nil
	}

	o.metrics.RecordTransitDelay()
	o.logger.WithContext(ctx).Warn("Transfer delayed in transit",
		"transferId", transfer.ID,
		"sourceSiteId", transfer.SourceSiteID,
		"destSiteId", transfer.DestSiteID,
		"trackingNumber", transfer.TrackingNumber,
		"shippedAt", transfer.ShippedAt,
	)
	return true, nil
}

func (o *TransferOrchestrator) loadTransfer(ctx context.Context, transferID string) (*domain.Job, error) {
	if transferID == "" {
		return nil, errors.ErrValidation("transferId is required")
	}
	transfer, err := o.jobs.FindByID(ctx, transferID)
	if err != nil {
		return nil, persistenceError("get transfer", err)
	}
	if transfer == nil {
		return nil, errors.ErrNotFoundWithID("transfer", transferID)
	}
	if !transfer.IsTransfer() {
		return nil, mapDomainError(domain.ErrNotTransfer)
	}
	return transfer, nil
}

func (o *TransferOrchestrator) notify(ctx context.Context, transfer *domain.Job) {
	if err := o.notifier.NotifyTransferStatus(ctx, transfer); err != nil {
		o.logger.WithError(err).Warn("Failed to notify transfer workflow",
			"transferId", transfer.ID, "transferStatus", transfer.TransferStatus)
	}
}
