package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

// nonRetryableErrorTypes are the error kinds a retry cannot fix
var nonRetryableErrorTypes = []string{
	string(errors.KindValidation),
	string(errors.KindNotFound),
	string(errors.KindConflict),
	string(errors.KindPermission),
}

// transferActivityOptions returns the options for the lifecycle activities
func transferActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: nonRetryableErrorTypes,
		},
	}
}
