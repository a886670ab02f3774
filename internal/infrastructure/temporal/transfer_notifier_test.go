package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/workflows"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

type MockSignaler struct {
	mock.Mock
}

func (m *MockSignaler) SignalWithStart(ctx context.Context, workflowID, taskQueue, signalName string, signalArg interface{}, workflowName string, args ...interface{}) error {
	called := m.Called(ctx, workflowID, taskQueue, signalName, signalArg, workflowName, args)
	return called.Error(0)
}

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("notifier-test")
	cfg.Level = logging.LevelError
	return logging.New(cfg)
}

func TestNotifyTransferStatus(t *testing.T) {
	signaler := new(MockSignaler)
	notifier := NewTransferNotifier(signaler, time.Hour, 48*time.Hour, testLogger(), nil)

	transfer := &domain.Job{ID: "TRF-001", Type: domain.JobTypeTransfer, TransferStatus: domain.TransferApproved}
	expectedInput := []interface{}{workflows.TransferLifecycleInput{
		TransferID:      "TRF-001",
		ApprovalTimeout: time.Hour,
		TransitTimeout:  48 * time.Hour,
	}}

	signaler.On("SignalWithStart", mock.Anything, "transfer-TRF-001", "transfer-lifecycle-queue", "transfer-status",
		mock.MatchedBy(func(sig workflows.TransferStatusSignal) bool {
			return sig.TransferID == "TRF-001" && sig.Status == "Approved"
		}),
		"TransferLifecycleWorkflow", expectedInput).Return(nil)

	require.NoError(t, notifier.NotifyTransferStatus(context.Background(), transfer))
	signaler.AssertExpectations(t)
}

func TestNotifyTransferStatus_IgnoresOtherJobs(t *testing.T) {
	signaler := new(MockSignaler)
	notifier := NewTransferNotifier(signaler, time.Hour, time.Hour, testLogger(), nil)

	require.NoError(t, notifier.NotifyTransferStatus(context.Background(), &domain.Job{ID: "PICK-1", Type: domain.JobTypePick}))
	signaler.AssertNotCalled(t, "SignalWithStart")
}

func TestNotifyTransferStatus_WrapsError(t *testing.T) {
	signaler := new(MockSignaler)
	notifier := NewTransferNotifier(signaler, time.Hour, time.Hour, testLogger(), nil)
	signaler.On("SignalWithStart", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("frontend unavailable"))

	err := notifier.NotifyTransferStatus(context.Background(), &domain.Job{ID: "TRF-2", Type: domain.JobTypeTransfer})
	assert.ErrorContains(t, err, "frontend unavailable")
}
