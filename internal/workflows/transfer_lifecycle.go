// Package workflows holds the durable timers that watch transfer jobs.
package workflows

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/temporal"
)

// Activity names registered by the worker
const (
	ExpireStaleTransferActivity = "ExpireStaleTransfer"
	FlagTransitDelayActivity    = "FlagTransitDelay"
)

// Lifecycle timeouts used when the input leaves them unset
const (
	DefaultApprovalTimeout = 72 * time.Hour
	DefaultTransitTimeout  = 7 * 24 * time.Hour
)

// TransferLifecycleInput starts the lifecycle workflow of one transfer
type TransferLifecycleInput struct {
	TransferID      string        `json:"transferId"`
	ApprovalTimeout time.Duration `json:"approvalTimeout"`
	TransitTimeout  time.Duration `json:"transitTimeout"`
}

// TransferStatusSignal reports a pipeline change of the transfer
type TransferStatusSignal struct {
	TransferID string    `json:"transferId"`
	Status     string    `json:"status"`
	ChangedAt  time.Time `json:"changedAt"`
}

// TransferLifecycleResult summarises how the transfer ended
type TransferLifecycleResult struct {
	TransferID     string `json:"transferId"`
	FinalStatus    string `json:"finalStatus"`
	Expired        bool   `json:"expired"`
	TransitDelay   bool   `json:"transitDelay"`
	SignalsHandled int    `json:"signalsHandled"`
}

// TransferLifecycleWorkflow follows a transfer from request to receipt.
// A transfer left Requested past the approval timeout is cancelled.
// A transfer left In-Transit past the transit timeout is flagged once.
// The workflow ends when the transfer is Received or Cancelled.
func TransferLifecycleWorkflow(ctx workflow.Context, input TransferLifecycleInput) (*TransferLifecycleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting transfer lifecycle workflow", "transferId", input.TransferID)

	if input.ApprovalTimeout <= 0 {
		input.ApprovalTimeout = DefaultApprovalTimeout
	}
	if input.TransitTimeout <= 0 {
		input.TransitTimeout = DefaultTransitTimeout
	}

	ctx = workflow.WithActivityOptions(ctx, transferActivityOptions())
	statusCh := workflow.GetSignalChannel(ctx, temporal.Signals.TransferStatus)

	result := &TransferLifecycleResult{TransferID: input.TransferID}
	status := domain.TransferRequested
	approvalDeadline := workflow.Now(ctx).Add(input.ApprovalTimeout)
	var transitDeadline time.Time
	flagged := false

	for status != domain.TransferReceived && status != domain.TransferCancelled {
		var timeout time.Duration
		watching := false
		switch {
		case status == domain.TransferRequested:
			watching = true
			timeout = approvalDeadline.Sub(workflow.Now(ctx))
		case status == domain.TransferInTransit && !flagged:
			if transitDeadline.IsZero() {
				transitDeadline = workflow.Now(ctx).Add(input.TransitTimeout)
			}
			watching = true
			timeout = transitDeadline.Sub(workflow.Now(ctx))
		}

		timedOut := watching && timeout <= 0
		if !timedOut {
			timerCtx, cancelTimer := workflow.WithCancel(ctx)
			selector := workflow.NewSelector(ctx)
			selector.AddReceive(statusCh, func(c workflow.ReceiveChannel, more bool) {
				var sig TransferStatusSignal
				c.Receive(ctx, &sig)
				result.SignalsHandled++
				if sig.Status != "" {
					status = domain.TransferStatus(sig.Status)
				}
			})
			if watching {
				selector.AddFuture(workflow.NewTimer(timerCtx, timeout), func(f workflow.Future) {
					timedOut = f.Get(timerCtx, nil) == nil
				})
			}
			selector.Select(ctx)
			cancelTimer()
		}
		if !timedOut {
			continue
		}

		if status == domain.TransferRequested {
			var expired bool
			if err := workflow.ExecuteActivity(ctx, ExpireStaleTransferActivity, input.TransferID).Get(ctx, &expired); err != nil {
				logger.Error("Failed to expire stale transfer", "transferId", input.TransferID, "error", err)
				return nil, err
			}
			if expired {
				result.Expired = true
				status = domain.TransferCancelled
			} else {
				// approved concurrently, the next signal carries the new status
				status = ""
			}
			continue
		}

		flagged = true
		var delayed bool
		if err := workflow.ExecuteActivity(ctx, FlagTransitDelayActivity, input.TransferID).Get(ctx, &delayed); err != nil {
			logger.Warn("Failed to flag transit delay", "transferId", input.TransferID, "error", err)
			continue
		}
		result.TransitDelay = delayed
	}

	result.FinalStatus = string(status)
	logger.Info("Transfer lifecycle completed", "transferId", input.TransferID, "finalStatus", result.FinalStatus)
	return result, nil
}
