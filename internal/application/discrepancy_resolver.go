package application

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// DiscrepancyResolver classifies transfer variances and applies resolutions
type DiscrepancyResolver struct {
	jobs          domain.JobRepository
	discrepancies domain.DiscrepancyRepository
	ledger        domain.StockLedger
	catalog       domain.ProductCatalog
	notifier      TransferNotifier
	hub           *CompletionHub
	logger        *logging.Logger
	metrics       *metrics.Metrics
}

// NewDiscrepancyResolver creates a new DiscrepancyResolver
func NewDiscrepancyResolver(
	jobs domain.JobRepository,
	discrepancies domain.DiscrepancyRepository,
	ledger domain.StockLedger,
	catalog domain.ProductCatalog,
	notifier TransferNotifier,
	hub *CompletionHub,
	logger *logging.Logger,
	m *metrics.Metrics,
) *DiscrepancyResolver {
	if notifier == nil {
		notifier = NoopTransferNotifier{}
	}
	return &DiscrepancyResolver{
		jobs:          jobs,
		discrepancies: discrepancies,
		ledger:        ledger,
		catalog:       catalog,
		notifier:      notifier,
		hub:           hub,
		logger:        logger.WithComponent("discrepancy-resolver"),
		metrics:       m,
	}
}

// ClassifyAndResolve applies a resolution to the discrepancy of one transfer line.
// Resolving a closed record returns it unchanged.
func (r *DiscrepancyResolver) ClassifyAndResolve(ctx context.Context, cmd ClassifyAndResolveCommand) (*ResolutionResultDTO, error) {
	transfer, err := r.loadTransfer(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	rt := domain.ResolutionType(strings.ToLower(strings.TrimSpace(cmd.ResolutionType)))
	if !rt.IsValid() {
		return nil, mapDomainError(domain.ErrInvalidResolutionType)
	}
	dtype := domain.DiscrepancyType(strings.ToLower(strings.TrimSpace(cmd.DiscrepancyType)))

	record, err := r.discrepancies.FindByLine(ctx, transfer.ID, cmd.LineItemIndex)
	if err != nil {
		return nil, persistenceError("look up discrepancy", err)
	}
	if record != nil && record.IsClosed() {
		// a replay still finishes a transfer update that failed after the record was closed
		if err := r.reevaluateTransfer(ctx, transfer, record); err != nil {
			return nil, err
		}
		return resolutionResult(record, transfer, nil, "", true), nil
	}
	if record == nil {
		record, err = r.openReport(transfer, cmd, dtype)
		if err != nil {
			return nil, err
		}
		r.metrics.RecordDiscrepancy(string(record.DiscrepancyType))
	} else if dtype != "" && dtype != record.DiscrepancyType {
		if err := record.Reclassify(dtype); err != nil {
			return nil, mapDomainError(err)
		}
	}

	if rt == domain.ResolutionClaim && !cmd.Actor.CanFileClaims() {
		return nil, errors.ErrPermissionDenied("file claim", cmd.Actor.Role)
	}
	details := domain.ResolutionDetails{
		Notes:       strings.TrimSpace(cmd.Notes),
		ReasonCode:  cmd.ReasonCode,
		ClaimAmount: cmd.ClaimAmount,
		Quantity:    cmd.Quantity,
	}
	if err := record.ValidateResolution(rt, details); err != nil {
		return nil, mapDomainError(err)
	}

	var (
		movementID  string
		replacement *domain.Job
	)
	switch rt {
	case domain.ResolutionAdjust:
		qty := details.Quantity
		if qty == 0 {
			qty = record.Shortfall()
		}
		if qty == 0 {
			return nil, errors.ErrValidation("nothing to adjust")
		}
		movementID, err = r.applyLedger(ctx, record, domain.DirectionIn, qty, cmd.Actor.UserID, true)
	case domain.ResolutionReject, domain.ResolutionDispose:
		qty := record.AffectedQuantity(details)
		if qty == 0 {
			return nil, errors.ErrValidation("quantity is required to " + string(rt))
		}
		movementID, err = r.applyLedger(ctx, record, domain.DirectionOut, qty, cmd.Actor.UserID, false)
	case domain.ResolutionReplace:
		replacement, err = r.ensureReplacement(ctx, transfer, record, details, cmd.Actor.UserID)
	}
	if err != nil {
		return nil, err
	}

	if err := record.Resolve(rt, details, cmd.Actor.UserID); err != nil {
		return nil, mapDomainError(err)
	}
	if err := r.discrepancies.Save(ctx, record); err != nil {
		r.logger.WithError(err).Error("Failed to save resolution", "resolutionId", record.ID)
		return nil, persistenceError("save resolution", err)
	}
	r.metrics.RecordResolution(string(rt), string(record.ResolutionStatus))

	if err := r.reevaluateTransfer(ctx, transfer, record); err != nil {
		return nil, err
	}

	r.logger.Audit(ctx, "resolve_discrepancy", "discrepancy", record.ID, cmd.Actor.UserID, map[string]any{
		"transferId":     transfer.ID,
		"lineItemIndex":  record.LineItemIndex,
		"resolutionType": rt,
		"status":         record.ResolutionStatus,
		"reasonCode":     record.ReasonCode,
	})

	return resolutionResult(record, transfer, replacement, movementID, false), nil
}

// openReport creates the record for a line that had no variance at receipt,
// such as damaged goods found on inspection
func (r *DiscrepancyResolver) openReport(transfer *domain.Job, cmd ClassifyAndResolveCommand, dtype domain.DiscrepancyType) (*domain.DiscrepancyResolution, error) {
	if transfer.TransferStatus != domain.TransferReceived {
		return nil, errors.ErrConflict("discrepancies are reported on received transfers")
	}
	if dtype == "" {
		return nil, errors.ErrValidation("discrepancyType is required for a line without a recorded discrepancy")
	}
	item, err := transfer.Item(cmd.LineItemIndex)
	if err != nil {
		return nil, mapDomainError(err)
	}
	record, err := domain.NewDiscrepancyResolution(uuid.NewString(), transfer, item.OriginalIndex, item.ReceivedQty, dtype, cmd.Actor.UserID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return record, nil
}

// applyLedger writes the resolution's stock effect at the destination product
func (r *DiscrepancyResolver) applyLedger(ctx context.Context, record *domain.DiscrepancyResolution, direction domain.Direction, qty int, actorID string, createMissing bool) (string, error) {
	product, err := r.catalog.FindBySKUAtSite(ctx, record.SKU, record.SiteID)
	if err != nil {
		return "", errors.ErrInternal("failed to look up product").Wrap(err)
	}
	if product == nil {
		if !createMissing {
			return "", errors.ErrNotFoundWithID("product", record.SKU)
		}
		product = domain.NewProduct(uuid.NewString(), record.SKU, record.SKU, record.SiteID, "")
		if err := r.catalog.CreateProduct(ctx, product); err != nil {
			return "", persistenceError("create product", err)
		}
	}

	movement, err := r.ledger.AdjustStock(ctx, domain.StockAdjustment{
		ProductID:      product.ID,
		SiteID:         record.SiteID,
		Quantity:       qty,
		Direction:      direction,
		Reason:         domain.ResolutionReason(record.ID),
		Reference:      record.TransferID,
		Actor:          actorID,
		IdempotencyKey: domain.ResolutionReason(record.ID),
	})
	r.metrics.RecordLedgerWrite(string(direction), qty, err == nil)
	if err != nil {
		r.logger.WithError(err).Error("Ledger write failed, resolution aborted", "resolutionId", record.ID)
		return "", errors.ErrLedgerWriteFailure(product.ID, err)
	}
	return movement.ID, nil
}

// ensureReplacement creates the replacement transfer for the missing quantity.
// Its id derives from the resolution so a retry finds the same job.
func (r *DiscrepancyResolver) ensureReplacement(ctx context.Context, transfer *domain.Job, record *domain.DiscrepancyResolution, details domain.ResolutionDetails, actorID string) (*domain.Job, error) {
	missing := details.Quantity
	if missing == 0 {
		missing = record.Shortfall()
	}
	if missing == 0 {
		return nil, errors.ErrValidation("nothing to replace")
	}

	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("replace:"+record.ID)).String()
	existing, err := r.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError("look up replacement transfer", err)
	}
	if existing != nil {
		record.ReplacementJobID = existing.ID
		return existing, nil
	}

	item, err := transfer.Item(record.LineItemIndex)
	if err != nil {
		return nil, mapDomainError(err)
	}
	replacement, err := domain.NewTransferJob(id, transfer.SourceSiteID, transfer.DestSiteID, transfer.Priority,
		[]domain.LineItem{{
			ProductID:   item.ProductID,
			SKU:         item.SKU,
			Name:        item.Name,
			Location:    item.Location,
			ExpectedQty: missing,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
		}}, actorID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	replacement.Zone = transfer.Zone

	if err := r.jobs.Create(ctx, replacement); err != nil {
		r.logger.WithError(err).Error("Failed to create replacement transfer", "resolutionId", record.ID)
		return nil, persistenceError("create replacement transfer", err)
	}
	r.metrics.RecordTransferTransition(string(domain.TransferRequested))
	if err := r.notifier.NotifyTransferStatus(ctx, replacement); err != nil {
		r.logger.WithError(err).Warn("Failed to notify transfer workflow", "transferId", replacement.ID)
	}

	record.ReplacementJobID = replacement.ID
	return replacement, nil
}

// reevaluateTransfer mirrors the record onto its line item and completes the
// transfer job once nothing is left unresolved. Terminal jobs stay untouched.
func (r *DiscrepancyResolver) reevaluateTransfer(ctx context.Context, transfer *domain.Job, record *domain.DiscrepancyResolution) error {
	if transfer.Status.IsTerminal() {
		return nil
	}
	item, err := transfer.Item(record.LineItemIndex)
	if err != nil {
		return mapDomainError(err)
	}
	before := item.Status

	if record.IsClosed() {
		err = transfer.ResolveItem(record.LineItemIndex)
	} else {
		err = transfer.FlagDiscrepancy(record.LineItemIndex)
	}
	if err != nil {
		return mapDomainError(err)
	}
	completed := transfer.TryComplete()
	if !completed && item.Status == before {
		return nil
	}

	if err := r.jobs.Update(ctx, transfer); err != nil {
		r.logger.WithError(err).Error("Failed to update transfer after resolution", "transferId", transfer.ID)
		return persistenceError("update transfer", err)
	}
	if completed {
		r.hub.Publish(ctx, transfer)
	}
	return nil
}

// ListExceptions returns the pending resolutions of a site
func (r *DiscrepancyResolver) ListExceptions(ctx context.Context, siteID string) ([]DiscrepancyDTO, error) {
	records, err := r.discrepancies.FindPendingBySite(ctx, siteID)
	if err != nil {
		return nil, persistenceError("list exceptions", err)
	}
	return ToDiscrepancyDTOs(records), nil
}

// ListTransferDiscrepancies returns every resolution recorded for a transfer
func (r *DiscrepancyResolver) ListTransferDiscrepancies(ctx context.Context, transferID string) ([]DiscrepancyDTO, error) {
	records, err := r.discrepancies.FindByTransfer(ctx, transferID)
	if err != nil {
		return nil, persistenceError("list transfer discrepancies", err)
	}
	return ToDiscrepancyDTOs(records), nil
}

// ListDiscrepancies returns the jobs of a site with Discrepancy items, restricted to those items
func (r *DiscrepancyResolver) ListDiscrepancies(ctx context.Context, siteID string) ([]JobDTO, error) {
	jobs, err := r.jobs.GetDiscrepancies(ctx, siteID)
	if err != nil {
		return nil, persistenceError("list discrepancies", err)
	}

	dtos := ToJobDTOs(jobs)
	for i := range dtos {
		items := dtos[i].LineItems[:0]
		for _, item := range dtos[i].LineItems {
			if item.Status == string(domain.LineItemDiscrepancy) {
				items = append(items, item)
			}
		}
		dtos[i].LineItems = items
	}
	return dtos, nil
}

func (r *DiscrepancyResolver) loadTransfer(ctx context.Context, transferID string) (*domain.Job, error) {
	if transferID == "" {
		return nil, errors.ErrValidation("transferId is required")
	}
	transfer, err := r.jobs.FindByID(ctx, transferID)
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

func resolutionResult(record *domain.DiscrepancyResolution, transfer, replacement *domain.Job, movementID string, already bool) *ResolutionResultDTO {
	return &ResolutionResultDTO{
		Resolution:      ToDiscrepancyDTO(record),
		ReplacementJob:  ToJobDTO(replacement),
		MovementID:      movementID,
		TransferStatus:  string(transfer.TransferStatus),
		JobStatus:       string(transfer.Status),
		AlreadyResolved: already,
	}
}
