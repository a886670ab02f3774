// Package temporal forwards transfer pipeline changes to the lifecycle workflow.
package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/workflows"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	pkgtemporal "github.com/wms-platform/fulfillment-service/pkg/temporal"
)

// Signaler delivers a signal and starts the workflow when it is not running
type Signaler interface {
	SignalWithStart(
		ctx context.Context,
		workflowID string,
		taskQueue string,
		signalName string,
		signalArg interface{},
		workflowName string,
		args ...interface{},
	) error
}

// TransferNotifier signals the lifecycle workflow of a transfer on every pipeline change
type TransferNotifier struct {
	signaler        Signaler
	approvalTimeout time.Duration
	transitTimeout  time.Duration
	logger          *logging.Logger
	metrics         *metrics.Metrics
}

// NewTransferNotifier creates a new TransferNotifier. m may be nil.
func NewTransferNotifier(signaler Signaler, approvalTimeout, transitTimeout time.Duration, logger *logging.Logger, m *metrics.Metrics) *TransferNotifier {
	return &TransferNotifier{
		signaler:        signaler,
		approvalTimeout: approvalTimeout,
		transitTimeout:  transitTimeout,
		logger:          logger.WithComponent("transfer-notifier"),
		metrics:         m,
	}
}

// NotifyTransferStatus implements application.TransferNotifier
func (n *TransferNotifier) NotifyTransferStatus(ctx context.Context, transfer *domain.Job) error {
	if !transfer.IsTransfer() {
		return nil
	}

	signal := workflows.TransferStatusSignal{
		TransferID: transfer.ID,
		Status:     string(transfer.TransferStatus),
		ChangedAt:  transfer.UpdatedAt,
	}
	input := workflows.TransferLifecycleInput{
		TransferID:      transfer.ID,
		ApprovalTimeout: n.approvalTimeout,
		TransitTimeout:  n.transitTimeout,
	}

	err := n.signaler.SignalWithStart(
		ctx,
		pkgtemporal.TransferWorkflowID(transfer.ID),
		pkgtemporal.TaskQueues.Transfers,
		pkgtemporal.Signals.TransferStatus,
		signal,
		pkgtemporal.WorkflowNames.TransferLifecycle,
		input,
	)
	if n.metrics != nil {
		n.metrics.RecordWorkflowSignal(pkgtemporal.WorkflowNames.TransferLifecycle, err == nil)
	}
	if err != nil {
		return fmt.Errorf("failed to signal transfer workflow: %w", err)
	}

	n.logger.Debug("Signalled transfer workflow", "transferId", transfer.ID, "transferStatus", transfer.TransferStatus)
	return nil
}
