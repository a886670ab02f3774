// Package temporal connects to Temporal and names the transfer lifecycle workflow.
package temporal

import (
	"context"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Config holds Temporal client configuration
type Config struct {
	HostPort  string
	Namespace string
	Identity  string
}

// TaskQueues contains the fulfillment task queue names
var TaskQueues = struct {
	Transfers string
}{
	Transfers: "transfer-lifecycle-queue",
}

// WorkflowNames contains the fulfillment workflow names
var WorkflowNames = struct {
	TransferLifecycle string
}{
	TransferLifecycle: "TransferLifecycleWorkflow",
}

// Signals contains the signal names workflows listen on
var Signals = struct {
	TransferStatus string
}{
	TransferStatus: "transfer-status",
}

// lifecycleExecutionTimeout outlives the approval and transit deadlines combined
const lifecycleExecutionTimeout = 30 * 24 * time.Hour

// TransferWorkflowID derives the lifecycle workflow ID for a transfer job
func TransferWorkflowID(transferID string) string {
	return "transfer-" + transferID
}

// Client wraps the Temporal SDK client
type Client struct {
	client client.Client
}

// NewClient dials the Temporal frontend
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	c, err := client.DialContext(ctx, client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
		Identity:  config.Identity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial Temporal at %s: %w", config.HostPort, err)
	}
	return &Client{client: c}, nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}

// SignalWithStart delivers a signal to workflowID, starting the workflow first if it is not running.
// A closed lifecycle may be started again so a late status change is never dropped.
func (c *Client) SignalWithStart(
	ctx context.Context,
	workflowID string,
	taskQueue string,
	signalName string,
	signalArg interface{},
	workflowName string,
	args ...interface{},
) error {
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                taskQueue,
		WorkflowExecutionTimeout: lifecycleExecutionTimeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	if _, err := c.client.SignalWithStartWorkflow(ctx, workflowID, signalName, signalArg, options, workflowName, args...); err != nil {
		return fmt.Errorf("failed to signal %s: %w", workflowID, err)
	}
	return nil
}

// WorkerOptions sizes a worker
type WorkerOptions struct {
	TaskQueue                    string
	MaxConcurrentActivityPollers int
	MaxConcurrentWorkflowPollers int
	MaxConcurrentActivities      int
	MaxConcurrentWorkflows       int
}

// DefaultWorkerOptions sizes a worker for timer-driven lifecycles, which are mostly idle
func DefaultWorkerOptions(taskQueue string) *WorkerOptions {
	return &WorkerOptions{
		TaskQueue:                    taskQueue,
		MaxConcurrentActivityPollers: 2,
		MaxConcurrentWorkflowPollers: 2,
		MaxConcurrentActivities:      20,
		MaxConcurrentWorkflows:       200,
	}
}

// NewWorker creates a worker polling opts.TaskQueue
func (c *Client) NewWorker(opts *WorkerOptions) worker.Worker {
	return worker.New(c.client, opts.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     opts.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: opts.MaxConcurrentWorkflows,
		MaxConcurrentActivityTaskPollers:       opts.MaxConcurrentActivityPollers,
		MaxConcurrentWorkflowTaskPollers:       opts.MaxConcurrentWorkflowPollers,
	})
}
