package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// Services bundles the application services behind the HTTP API
type Services struct {
	Engine    *application.FulfillmentEngine
	Transfers *application.TransferOrchestrator
	Resolver  *application.DiscrepancyResolver
	Scheduler *application.AssignmentScheduler
	Inventory *application.InventoryChangeService
}

// registerRoutes mounts every fulfillment endpoint on api
func registerRoutes(api *gin.RouterGroup, s *Services, logger *logging.Logger) {
	jobs := api.Group("/jobs")
	{
		jobs.POST("", createJobHandler(s.Engine, logger))
		jobs.GET("/:jobId", getJobHandler(s.Engine, logger))
		jobs.POST("/:jobId/start", startJobHandler(s.Engine, logger))
		jobs.POST("/:jobId/scan", scanItemHandler(s.Engine, logger))
		jobs.POST("/:jobId/short", resolveShortHandler(s.Engine, logger))
		jobs.POST("/:jobId/complete", completeJobHandler(s.Engine, logger))
		jobs.POST("/:jobId/cancel", cancelJobHandler(s.Engine, logger))
		jobs.POST("/:jobId/assign", assignHandler(s.Scheduler, logger))
		jobs.GET("/:jobId/suggested-worker", suggestWorkerHandler(s.Scheduler, logger))
	}

	api.POST("/proposals", proposeHandler(s.Engine, logger))

	transfers := api.Group("/transfers")
	{
		transfers.POST("", requestTransferHandler(s.Transfers, logger))
		transfers.POST("/:transferId/approve", transferStepHandler(s.Transfers.ApproveTransfer, logger))
		transfers.POST("/:transferId/pack", transferStepHandler(s.Transfers.PackTransfer, logger))
		transfers.POST("/:transferId/ship", shipTransferHandler(s.Transfers, logger))
		transfers.POST("/:transferId/deliver", transferStepHandler(s.Transfers.MarkDelivered, logger))
		transfers.POST("/:transferId/receive", finalizeReceiveHandler(s.Transfers, logger))
		transfers.POST("/:transferId/cancel", cancelTransferHandler(s.Transfers, logger))
		transfers.GET("/:transferId/discrepancies", listTransferDiscrepanciesHandler(s.Resolver, logger))
		transfers.POST("/:transferId/discrepancies/:lineItemIndex/resolve", resolveDiscrepancyHandler(s.Resolver, logger))
	}

	sites := api.Group("/sites/:siteId")
	{
		sites.GET("/jobs/pending", listPendingJobsHandler(s.Engine, logger))
		sites.GET("/discrepancies", listDiscrepanciesHandler(s.Resolver, logger))
		sites.GET("/exceptions", listExceptionsHandler(s.Resolver, logger))
		sites.GET("/inventory-changes", listPendingChangesHandler(s.Inventory, logger))
		sites.POST("/zones/:zone/lock", lockZoneHandler(s.Scheduler, logger))
		sites.DELETE("/zones/:zone/lock", unlockZoneHandler(s.Scheduler, logger))
	}

	changes := api.Group("/inventory-changes")
	{
		changes.POST("", requestAdjustmentHandler(s.Inventory, logger))
		changes.POST("/:changeId/approve", decideChangeHandler(s.Inventory.Approve, logger))
		changes.POST("/:changeId/reject", decideChangeHandler(s.Inventory.Reject, logger))
	}

	api.PUT("/workers/:workerId", registerWorkerHandler(s.Scheduler, logger))
}

// bindJSON decodes the body into req and answers 400 on failure
func bindJSON(c *gin.Context, responder *middleware.ErrorResponder, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		responder.RespondWithAppError(errors.ErrValidation(err.Error()))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body
func bindOptionalJSON(c *gin.Context, responder *middleware.ErrorResponder, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, responder, req)
}

type lineItemRequest struct {
	ProductID   string     `json:"productId"`
	SKU         string     `json:"sku" binding:"required,sku"`
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	ExpectedQty int        `json:"expectedQty" binding:"required,gte=1"`
	BatchNumber string     `json:"batchNumber"`
	ExpiryDate  *time.Time `json:"expiryDate"`
}

func toLineItems(items []lineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = domain.LineItem{
			ProductID:   item.ProductID,
			SKU:         item.SKU,
			Name:        item.Name,
			Location:    item.Location,
			ExpectedQty: item.ExpectedQty,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
		}
	}
	return out
}

func createJobHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Type      string            `json:"type" binding:"required"`
			SiteID    string            `json:"siteId" binding:"required"`
			Priority  string            `json:"priority"`
			Zone      string            `json:"zone"`
			OrderRef  string            `json:"orderRef"`
			LineItems []lineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		job, err := engine.CreateJob(c.Request.Context(), application.CreateJobCommand{
			Type:      req.Type,
			SiteID:    req.SiteID,
			Priority:  req.Priority,
			Zone:      req.Zone,
			OrderRef:  req.OrderRef,
			LineItems: toLineItems(req.LineItems),
			Actor:     middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, job)
	}
}

func getJobHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		jobID := c.Param("jobId")
		middleware.AddSpanAttributes(c, attribute.String("job.id", jobID))

		job, err := engine.GetJob(c.Request.Context(), application.GetJobQuery{JobID: jobID})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func listPendingJobsHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		jobs, err := engine.ListPendingJobs(c.Request.Context(), c.Param("siteId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, jobs)
	}
}

func startJobHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			WorkerID        string `json:"workerId"`
			ManagerOverride bool   `json:"managerOverride"`
		}
		if !bindOptionalJSON(c, responder, &req) {
			return
		}

		a := middleware.CurrentActor(c)
		if req.WorkerID == "" {
			req.WorkerID = a.UserID
		}

		job, err := engine.StartJob(c.Request.Context(), application.StartJobCommand{
			JobID:           c.Param("jobId"),
			WorkerID:        req.WorkerID,
			ManagerOverride: req.ManagerOverride,
			Actor:           a,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func scanItemHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			WorkerID      string `json:"workerId"`
			LineItemIndex *int   `json:"lineItemIndex" binding:"required,gte=0"`
			Attempt       int    `json:"attempt" binding:"gte=0"`
			ScannedSKU    string `json:"scannedSku"`
			Quantity      *int   `json:"quantity"`
			ForcedStatus  string `json:"forcedStatus"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		a := middleware.CurrentActor(c)
		if req.WorkerID == "" {
			req.WorkerID = a.UserID
		}
		jobID := c.Param("jobId")
		middleware.AddSpanAttributes(c,
			attribute.String("job.id", jobID),
			attribute.Int("job.line_item", *req.LineItemIndex),
			attribute.Int("job.scan_attempt", req.Attempt),
		)

		result, err := engine.ScanItem(c.Request.Context(), application.ScanItemCommand{
			JobID:         jobID,
			WorkerID:      req.WorkerID,
			LineItemIndex: *req.LineItemIndex,
			Attempt:       req.Attempt,
			ScannedSKU:    req.ScannedSKU,
			Quantity:      req.Quantity,
			ForcedStatus:  req.ForcedStatus,
			Actor:         a,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		status := http.StatusOK
		if result.AwaitingApproval {
			status = http.StatusAccepted
		}
		c.JSON(status, result)
	}
}

func resolveShortHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			WorkerID      string `json:"workerId"`
			LineItemIndex *int   `json:"lineItemIndex" binding:"required,gte=0"`
			Attempt       int    `json:"attempt" binding:"gte=0"`
			ActualQty     int    `json:"actualQty" binding:"gte=0"`
			Resolution    string `json:"resolution" binding:"required,oneof=standard discontinue"`
			ProposalID    string `json:"proposalId"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		a := middleware.CurrentActor(c)
		if req.WorkerID == "" {
			req.WorkerID = a.UserID
		}

		result, err := engine.ResolveShort(c.Request.Context(), application.ResolveShortCommand{
			JobID:         c.Param("jobId"),
			WorkerID:      req.WorkerID,
			LineItemIndex: *req.LineItemIndex,
			Attempt:       req.Attempt,
			ActualQty:     req.ActualQty,
			Resolution:    application.ShortResolution(req.Resolution),
			ProposalID:    req.ProposalID,
			Actor:         a,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func completeJobHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		job, err := engine.CompleteJob(c.Request.Context(), application.CompleteJobCommand{
			JobID: c.Param("jobId"),
			Actor: middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func proposeHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Kind          string `json:"kind" binding:"required,oneof=discontinue_product cancel_job"`
			JobID         string `json:"jobId" binding:"required"`
			LineItemIndex int    `json:"lineItemIndex" binding:"gte=0"`
			Reason        string `json:"reason"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		proposal, err := engine.Propose(c.Request.Context(), application.ProposeCommand{
			Kind:          req.Kind,
			JobID:         req.JobID,
			LineItemIndex: req.LineItemIndex,
			Reason:        req.Reason,
			Actor:         middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, proposal)
	}
}

func cancelJobHandler(engine *application.FulfillmentEngine, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ProposalID string `json:"proposalId" binding:"required"`
			Reason     string `json:"reason"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		job, err := engine.CancelJob(c.Request.Context(), application.CancelJobCommand{
			JobID:      c.Param("jobId"),
			ProposalID: req.ProposalID,
			Reason:     req.Reason,
			Actor:      middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func assignHandler(scheduler *application.AssignmentScheduler, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			WorkerID string `json:"workerId" binding:"required"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		assignment, err := scheduler.Assign(c.Request.Context(), application.AssignCommand{
			JobID:    c.Param("jobId"),
			WorkerID: req.WorkerID,
			Actor:    middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, assignment)
	}
}

func suggestWorkerHandler(scheduler *application.AssignmentScheduler, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		suggestion, err := scheduler.SuggestWorker(c.Request.Context(), c.Param("jobId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, suggestion)
	}
}

func registerWorkerHandler(scheduler *application.AssignmentScheduler, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Name   string `json:"name" binding:"required"`
			Role   string `json:"role" binding:"required"`
			SiteID string `json:"siteId" binding:"required"`
			Status string `json:"status"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		worker, err := scheduler.RegisterWorker(c.Request.Context(), application.RegisterWorkerCommand{
			WorkerID: c.Param("workerId"),
			Name:     req.Name,
			Role:     req.Role,
			SiteID:   req.SiteID,
			Status:   req.Status,
			Actor:    middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, worker)
	}
}

func lockZoneHandler(scheduler *application.AssignmentScheduler, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason"`
		}
		if !bindOptionalJSON(c, responder, &req) {
			return
		}

		lock, err := scheduler.LockZone(c.Request.Context(), application.ZoneLockCommand{
			SiteID: c.Param("siteId"),
			Zone:   c.Param("zone"),
			Reason: req.Reason,
			Actor:  middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, lock)
	}
}

func unlockZoneHandler(scheduler *application.AssignmentScheduler, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		err := scheduler.UnlockZone(c.Request.Context(), application.ZoneLockCommand{
			SiteID: c.Param("siteId"),
			Zone:   c.Param("zone"),
			Actor:  middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func requestTransferHandler(transfers *application.TransferOrchestrator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			SourceSiteID string            `json:"sourceSiteId" binding:"required"`
			DestSiteID   string            `json:"destSiteId" binding:"required,nefield=SourceSiteID"`
			Priority     string            `json:"priority"`
			Zone         string            `json:"zone"`
			LineItems    []lineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		transfer, err := transfers.RequestTransfer(c.Request.Context(), application.RequestTransferCommand{
			SourceSiteID: req.SourceSiteID,
			DestSiteID:   req.DestSiteID,
			Priority:     req.Priority,
			Zone:         req.Zone,
			LineItems:    toLineItems(req.LineItems),
			Actor:        middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, transfer)
	}
}

// transferStepHandler serves the pipeline edges that need nothing but the actor
func transferStepHandler(step func(ctx context.Context, cmd application.TransferCommand) (*application.JobDTO, error), logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		transferID := c.Param("transferId")
		middleware.AddSpanAttributes(c, attribute.String("transfer.id", transferID))

		transfer, err := step(c.Request.Context(), application.TransferCommand{
			TransferID: transferID,
			Actor:      middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, transfer)
	}
}

func shipTransferHandler(transfers *application.TransferOrchestrator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TrackingNumber string `json:"trackingNumber"`
		}
		if !bindOptionalJSON(c, responder, &req) {
			return
		}

		transfer, err := transfers.ShipTransfer(c.Request.Context(), application.ShipTransferCommand{
			TransferID:     c.Param("transferId"),
			TrackingNumber: req.TrackingNumber,
			Actor:          middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, transfer)
	}
}

func finalizeReceiveHandler(transfers *application.TransferOrchestrator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Lines []struct {
				LineItemIndex *int `json:"lineItemIndex" binding:"required,gte=0"`
				ReceivedQty   int  `json:"receivedQty" binding:"gte=0"`
			} `json:"lines" binding:"dive"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		lines := make([]domain.ReceivedLine, len(req.Lines))
		for i, line := range req.Lines {
			lines[i] = domain.ReceivedLine{LineItemIndex: *line.LineItemIndex, ReceivedQty: line.ReceivedQty}
		}

		result, err := transfers.FinalizeReceive(c.Request.Context(), application.FinalizeReceiveCommand{
			TransferID: c.Param("transferId"),
			Lines:      lines,
			Actor:      middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func cancelTransferHandler(transfers *application.TransferOrchestrator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason"`
		}
		if !bindOptionalJSON(c, responder, &req) {
			return
		}

		transfer, err := transfers.CancelTransfer(c.Request.Context(), application.CancelTransferCommand{
			TransferID: c.Param("transferId"),
			Reason:     req.Reason,
			Actor:      middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, transfer)
	}
}

func resolveDiscrepancyHandler(resolver *application.DiscrepancyResolver, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		lineItemIndex, err := strconv.Atoi(c.Param("lineItemIndex"))
		if err != nil || lineItemIndex < 0 {
			responder.RespondWithAppError(errors.ErrValidation("lineItemIndex must be a non-negative integer"))
			return
		}

		var req struct {
			DiscrepancyType string           `json:"discrepancyType"`
			ResolutionType  string           `json:"resolutionType" binding:"required"`
			Notes           string           `json:"notes"`
			ReasonCode      string           `json:"reasonCode"`
			ClaimAmount     *decimal.Decimal `json:"claimAmount"`
			Quantity        int              `json:"quantity" binding:"gte=0"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		cmd := application.ClassifyAndResolveCommand{
			TransferID:      c.Param("transferId"),
			LineItemIndex:   lineItemIndex,
			DiscrepancyType: req.DiscrepancyType,
			ResolutionType:  req.ResolutionType,
			Notes:           req.Notes,
			ReasonCode:      req.ReasonCode,
			Quantity:        req.Quantity,
			Actor:           middleware.CurrentActor(c),
		}
		if req.ClaimAmount != nil {
			cmd.ClaimAmount = decimal.NewNullDecimal(*req.ClaimAmount)
		}

		result, err := resolver.ClassifyAndResolve(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func listTransferDiscrepanciesHandler(resolver *application.DiscrepancyResolver, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		records, err := resolver.ListTransferDiscrepancies(c.Request.Context(), c.Param("transferId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, records)
	}
}

func listDiscrepanciesHandler(resolver *application.DiscrepancyResolver, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		jobs, err := resolver.ListDiscrepancies(c.Request.Context(), c.Param("siteId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, jobs)
	}
}

func listExceptionsHandler(resolver *application.DiscrepancyResolver, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		records, err := resolver.ListExceptions(c.Request.Context(), c.Param("siteId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, records)
	}
}

func listPendingChangesHandler(inventory *application.InventoryChangeService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		changes, err := inventory.ListPending(c.Request.Context(), c.Param("siteId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, changes)
	}
}

func requestAdjustmentHandler(inventory *application.InventoryChangeService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ProductID string `json:"productId" binding:"required"`
			Direction string `json:"direction" binding:"required,oneof=IN OUT"`
			Quantity  int    `json:"quantity" binding:"required,gte=1"`
			Reason    string `json:"reason" binding:"required"`
		}
		if !bindJSON(c, responder, &req) {
			return
		}

		change, err := inventory.RequestAdjustment(c.Request.Context(), application.RequestAdjustmentCommand{
			ProductID: req.ProductID,
			Direction: req.Direction,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
			Actor:     middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, change)
	}
}

// decideChangeHandler serves approve and reject, which share one command
func decideChangeHandler(decide func(ctx context.Context, cmd application.DecideChangeCommand) (*application.InventoryChangeDTO, error), logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason"`
		}
		if !bindOptionalJSON(c, responder, &req) {
			return
		}

		change, err := decide(c.Request.Context(), application.DecideChangeCommand{
			ChangeID: c.Param("changeId"),
			Reason:   req.Reason,
			Actor:    middleware.CurrentActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, change)
	}
}
