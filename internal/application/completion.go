package application

import (
	"context"
	"sync"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// JobCompletionListener reacts to a job reaching Completed
type JobCompletionListener interface {
	OnJobCompleted(ctx context.Context, job *domain.Job) error
}

// JobCancellationListener reacts to a job reaching Cancelled
type JobCancellationListener interface {
	OnJobCancelled(ctx context.Context, job *domain.Job) error
}

// CompletionHub fans job completions and cancellations out to registered listeners.
// A failing listener is logged and does not undo the transition.
type CompletionHub struct {
	mu         sync.RWMutex
	listeners  []JobCompletionListener
	cancellers []JobCancellationListener
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewCompletionHub creates an empty hub
func NewCompletionHub(logger *logging.Logger, m *metrics.Metrics) *CompletionHub {
	return &CompletionHub{logger: logger, metrics: m}
}

// Register adds a listener. Listeners that also implement
// JobCancellationListener receive cancellations too.
func (h *CompletionHub) Register(l JobCompletionListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
	if c, ok := l.(JobCancellationListener); ok {
		h.cancellers = append(h.cancellers, c)
	}
}

// Publish notifies every listener of a completed job
func (h *CompletionHub) Publish(ctx context.Context, job *domain.Job) {
	h.metrics.RecordJobCompleted(string(job.Type))

	h.mu.RLock()
	listeners := append([]JobCompletionListener(nil), h.listeners...)
	h.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnJobCompleted(ctx, job); err != nil {
			h.logger.WithError(err).Error("Completion listener failed", "jobId", job.ID, "jobType", job.Type)
		}
	}
}

// PublishCancelled notifies every cancellation listener of a cancelled job
func (h *CompletionHub) PublishCancelled(ctx context.Context, job *domain.Job) {
	h.mu.RLock()
	cancellers := append([]JobCancellationListener(nil), h.cancellers...)
	h.mu.RUnlock()

	for _, c := range cancellers {
		if err := c.OnJobCancelled(ctx, job); err != nil {
			h.logger.WithError(err).Error("Cancellation listener failed", "jobId", job.ID, "jobType", job.Type)
		}
	}
}

// TransferNotifier receives every transfer pipeline change
type TransferNotifier interface {
	NotifyTransferStatus(ctx context.Context, transfer *domain.Job) error
}

// NoopTransferNotifier drops notifications
type NoopTransferNotifier struct{}

// NotifyTransferStatus implements TransferNotifier
func (NoopTransferNotifier) NotifyTransferStatus(context.Context, *domain.Job) error { return nil }
