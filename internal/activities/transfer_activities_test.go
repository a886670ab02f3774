package activities

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

// MockTransferLifecycle is a mock implementation of the orchestrator
type MockTransferLifecycle struct {
	mock.Mock
}

func (m *MockTransferLifecycle) ExpireStaleTransfer(ctx context.Context, transferID string) (bool, error) {
	args := m.Called(ctx, transferID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferLifecycle) FlagTransitDelay(ctx context.Context, transferID string) (bool, error) {
	args := m.Called(ctx, transferID)
	return args.Bool(0), args.Error(1)
}

func TestExpireStaleTransfer_Success(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	orchestrator := new(MockTransferLifecycle)
	orchestrator.On("ExpireStaleTransfer", mock.Anything, "TRF-001").Return(true, nil)

	activities := NewTransferActivities(orchestrator, nil)
	env.RegisterActivity(activities.ExpireStaleTransfer)

	val, err := env.ExecuteActivity(activities.ExpireStaleTransfer, "TRF-001")
	require.NoError(t, err)

	var expired bool
	require.NoError(t, val.Get(&expired))
	require.True(t, expired)
	orchestrator.AssertExpectations(t)
}

func TestExpireStaleTransfer_NotFoundIsTyped(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	orchestrator := new(MockTransferLifecycle)
	orchestrator.On("ExpireStaleTransfer", mock.Anything, "TRF-404").
		Return(false, errors.ErrNotFoundWithID("transfer", "TRF-404"))

	activities := NewTransferActivities(orchestrator, nil)
	env.RegisterActivity(activities.ExpireStaleTransfer)

	_, err := env.ExecuteActivity(activities.ExpireStaleTransfer, "TRF-404")
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, stderrors.As(err, &appErr))
	require.Equal(t, string(errors.KindNotFound), appErr.Type())
}

func TestFlagTransitDelay_InternalFailure(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	orchestrator := new(MockTransferLifecycle)
	orchestrator.On("FlagTransitDelay", mock.Anything, "TRF-002").Return(false, stderrors.New("mongo unavailable"))

	activities := NewTransferActivities(orchestrator, nil)
	env.RegisterActivity(activities.FlagTransitDelay)

	_, err := env.ExecuteActivity(activities.FlagTransitDelay, "TRF-002")
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, stderrors.As(err, &appErr))
	require.Equal(t, string(errors.KindInternal), appErr.Type())
}
