package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// InventoryChangeService reviews the approval queue
type InventoryChangeService struct {
	approvals domain.ApprovalQueue
	catalog   domain.ProductCatalog
	ledger    domain.StockLedger
	jobs      domain.JobRepository
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewInventoryChangeService creates a new InventoryChangeService
func NewInventoryChangeService(
	approvals domain.ApprovalQueue,
	catalog domain.ProductCatalog,
	ledger domain.StockLedger,
	jobs domain.JobRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *InventoryChangeService {
	return &InventoryChangeService{
		approvals: approvals,
		catalog:   catalog,
		ledger:    ledger,
		jobs:      jobs,
		logger:    logger.WithComponent("inventory-changes"),
		metrics:   m,
	}
}

// ListPending returns the pending changes of a site
func (s *InventoryChangeService) ListPending(ctx context.Context, siteID string) ([]InventoryChangeDTO, error) {
	changes, err := s.approvals.FindPending(ctx, siteID)
	if err != nil {
		return nil, persistenceError("list pending changes", err)
	}
	dtos := make([]InventoryChangeDTO, 0, len(changes))
	for _, c := range changes {
		dtos = append(dtos, *ToInventoryChangeDTO(c))
	}
	return dtos, nil
}

// RequestAdjustment queues a manual stock adjustment for approval
func (s *InventoryChangeService) RequestAdjustment(ctx context.Context, cmd RequestAdjustmentCommand) (*InventoryChangeDTO, error) {
	product, err := s.catalog.FindByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, errors.ErrInternal("failed to look up product").Wrap(err)
	}
	if product == nil {
		return nil, errors.ErrNotFoundWithID("product", cmd.ProductID)
	}
	if product.IsArchived() {
		return nil, errors.ErrConflict("product is archived")
	}

	change, err := domain.NewStockAdjustmentRequest(uuid.NewString(), product,
		domain.Direction(strings.ToUpper(cmd.Direction)), cmd.Quantity, cmd.Reason, cmd.Actor.UserID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if err := s.approvals.Create(ctx, change); err != nil {
		return nil, persistenceError("queue stock adjustment", err)
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "inventory.change_requested",
		EntityType: "inventory_change",
		EntityID:   change.ID,
		Action:     "requested",
		RelatedIDs: map[string]string{"productId": product.ID},
		Data:       map[string]any{"direction": change.AdjustmentType, "quantity": change.AdjustmentQty},
	})
	return ToInventoryChangeDTO(change), nil
}

// Approve applies a pending change. A create change raised by a putaway links the
// new product to the job line so the next scan books the stock exactly once.
func (s *InventoryChangeService) Approve(ctx context.Context, cmd DecideChangeCommand) (*InventoryChangeDTO, error) {
	if !cmd.Actor.IsManagerClass() {
		return nil, errors.ErrPermissionDenied("approve inventory change", cmd.Actor.Role)
	}
	change, err := s.load(ctx, cmd.ChangeID)
	if err != nil {
		return nil, err
	}
	if change.Status != domain.ChangePending {
		return nil, mapDomainError(domain.ErrChangeNotPending)
	}

	switch change.ChangeType {
	case domain.ChangeCreate:
		if err := s.applyCreate(ctx, change); err != nil {
			return nil, err
		}
	case domain.ChangeStockAdjustment:
		_, err := s.ledger.AdjustStock(ctx, domain.StockAdjustment{
			ProductID:      change.ProductID,
			SiteID:         change.SiteID,
			Quantity:       change.AdjustmentQty,
			Direction:      change.AdjustmentType,
			Reason:         domain.ChangeReason(change.ID),
			Reference:      change.AdjustmentReason,
			Actor:          cmd.Actor.UserID,
			IdempotencyKey: domain.ChangeReason(change.ID),
		})
		s.metrics.RecordLedgerWrite(string(change.AdjustmentType), change.AdjustmentQty, err == nil)
		if err != nil {
			s.logger.WithError(err).Error("Ledger write failed, approval aborted", "changeId", change.ID)
			return nil, errors.ErrLedgerWriteFailure(change.ProductID, err)
		}
	}

	if err := change.Approve(cmd.Actor.UserID); err != nil {
		return nil, mapDomainError(err)
	}
	if err := s.approvals.Update(ctx, change); err != nil {
		return nil, persistenceError("approve change", err)
	}

	s.logger.Audit(ctx, "approve_inventory_change", "inventory_change", change.ID, cmd.Actor.UserID, map[string]any{
		"changeType": change.ChangeType,
		"productId":  change.ProductID,
	})
	return ToInventoryChangeDTO(change), nil
}

func (s *InventoryChangeService) applyCreate(ctx context.Context, change *domain.PendingInventoryChange) error {
	product, err := s.catalog.FindBySKUAtSite(ctx, change.ProductSKU, change.SiteID)
	if err != nil {
		return errors.ErrInternal("failed to look up product").Wrap(err)
	}
	if product == nil {
		product = domain.NewProduct(uuid.NewString(), change.ProductSKU, change.ProductName, change.SiteID, change.Location)
		if err := s.catalog.CreateProduct(ctx, product); err != nil {
			return persistenceError("create product", err)
		}
	}
	change.ProductID = product.ID

	if change.JobID == "" || change.LineItemIndex == nil {
		return nil
	}
	job, err := s.jobs.FindByID(ctx, change.JobID)
	if err != nil {
		return persistenceError("get job", err)
	}
	if job == nil || job.Status.IsTerminal() {
		return nil
	}
	if err := job.LinkProduct(*change.LineItemIndex, product.ID); err != nil {
		return mapDomainError(err)
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return persistenceError(fmt.Sprintf("link product to job %s", job.ID), err)
	}
	return nil
}

// Reject declines a pending change
func (s *InventoryChangeService) Reject(ctx context.Context, cmd DecideChangeCommand) (*InventoryChangeDTO, error) {
	if !cmd.Actor.IsManagerClass() {
		return nil, errors.ErrPermissionDenied("reject inventory change", cmd.Actor.Role)
	}
	change, err := s.load(ctx, cmd.ChangeID)
	if err != nil {
		return nil, err
	}
	if err := change.Reject(cmd.Actor.UserID, cmd.Reason); err != nil {
		return nil, mapDomainError(err)
	}
	if err := s.approvals.Update(ctx, change); err != nil {
		return nil, persistenceError("reject change", err)
	}

	s.logger.Audit(ctx, "reject_inventory_change", "inventory_change", change.ID, cmd.Actor.UserID, map[string]any{
		"reason": cmd.Reason,
	})
	return ToInventoryChangeDTO(change), nil
}

func (s *InventoryChangeService) load(ctx context.Context, changeID string) (*domain.PendingInventoryChange, error) {
	change, err := s.approvals.FindByID(ctx, changeID)
	if err != nil {
		return nil, persistenceError("get inventory change", err)
	}
	if change == nil {
		return nil, errors.ErrNotFoundWithID("inventory change", changeID)
	}
	return change, nil
}
