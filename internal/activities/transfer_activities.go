// Package activities exposes the transfer orchestrator to the lifecycle workflow.
package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// TransferLifecycle is the part of the orchestrator the workflow drives
type TransferLifecycle interface {
	ExpireStaleTransfer(ctx context.Context, transferID string) (bool, error)
	FlagTransitDelay(ctx context.Context, transferID string) (bool, error)
}

// TransferActivities contains activities related to transfer timers
type TransferActivities struct {
	transfers TransferLifecycle
	metrics   *metrics.Metrics
}

// NewTransferActivities creates a new TransferActivities instance. m may be nil.
func NewTransferActivities(transfers TransferLifecycle, m *metrics.Metrics) *TransferActivities {
	return &TransferActivities{transfers: transfers, metrics: m}
}

// ExpireStaleTransfer cancels a transfer that was never approved
func (a *TransferActivities) ExpireStaleTransfer(ctx context.Context, transferID string) (bool, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Expiring stale transfer", "transferId", transferID)

	expired, err := a.transfers.ExpireStaleTransfer(ctx, transferID)
	a.record("ExpireStaleTransfer", err)
	if err != nil {
		logger.Error("Failed to expire transfer", "transferId", transferID, "error", err)
		return false, toApplicationError(err)
	}
	if !expired {
		logger.Info("Transfer left approval before expiry", "transferId", transferID)
	}
	return expired, nil
}

// FlagTransitDelay raises a delay exception for a transfer still in transit
func (a *TransferActivities) FlagTransitDelay(ctx context.Context, transferID string) (bool, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Checking transit delay", "transferId", transferID)

	delayed, err := a.transfers.FlagTransitDelay(ctx, transferID)
	a.record("FlagTransitDelay", err)
	if err != nil {
		logger.Error("Failed to flag transit delay", "transferId", transferID, "error", err)
		return false, toApplicationError(err)
	}
	return delayed, nil
}

func (a *TransferActivities) record(name string, err error) {
	if a.metrics != nil {
		a.metrics.RecordActivityCompleted(name, err == nil)
	}
}

// toApplicationError tags err with its kind so the retry policy can skip permanent failures
func toApplicationError(err error) error {
	appErr := errors.FromError(err)
	return temporal.NewApplicationErrorWithCause(appErr.Message, string(appErr.Kind()), err)
}
