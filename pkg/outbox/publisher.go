package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// PublisherConfig holds configuration for the outbox publisher
type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Publisher polls the outbox and relays events to the broker.
// Events of one aggregate are delivered in creation order: after a failure the
// rest of that aggregate's batch waits for the next poll.
type Publisher struct {
	repo     Repository
	producer EventPublisher
	logger   *logging.Logger
	metrics  *metrics.Metrics
	config   PublisherConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPublisher creates a new outbox publisher. m may be nil.
func NewPublisher(repo Repository, producer EventPublisher, logger *logging.Logger, m *metrics.Metrics, config *PublisherConfig) *Publisher {
	cfg := PublisherConfig{PollInterval: time.Second, BatchSize: 100}
	if config != nil {
		if config.PollInterval > 0 {
			cfg.PollInterval = config.PollInterval
		}
		if config.BatchSize > 0 {
			cfg.BatchSize = config.BatchSize
		}
	}
	return &Publisher{
		repo:     repo,
		producer: producer,
		logger:   logger.WithComponent("outbox-publisher"),
		metrics:  m,
		config:   cfg,
	}
}

// Start launches the polling loop; it runs until Stop or until ctx ends
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return fmt.Errorf("outbox publisher already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("Starting outbox publisher", "interval", p.config.PollInterval, "batchSize", p.config.BatchSize)
	go p.loop(ctx, p.done)
	return nil
}

// Stop ends the polling loop and waits for the batch in flight
func (p *Publisher) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("outbox publisher not running")
	}
	cancel()
	<-done
	p.logger.Info("Outbox publisher stopped")
	return nil
}

func (p *Publisher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch relays one batch and returns how many events were delivered
func (p *Publisher) ProcessBatch(ctx context.Context) int {
	events, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load pending outbox events")
		return 0
	}
	if p.metrics != nil {
		p.metrics.SetOutboxPending(len(events))
	}

	blocked := make(map[string]bool)
	delivered := 0
	for _, event := range events {
		if blocked[event.AggregateID] {
			continue
		}
		if err := p.deliver(ctx, event); err != nil {
			blocked[event.AggregateID] = true
			p.fail(ctx, event, err)
			continue
		}
		delivered++
		if err := p.repo.MarkPublished(ctx, event.ID); err != nil {
			// the event goes out again on the next poll; consumers dedupe by id
			p.logger.WithError(err).Error("Failed to mark outbox event published", "eventId", event.ID)
		}
	}
	return delivered
}

func (p *Publisher) deliver(ctx context.Context, event *Event) error {
	ce, err := event.Decode()
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, event.Topic, ce)
}

func (p *Publisher) fail(ctx context.Context, event *Event, cause error) {
	log := p.logger.WithError(cause).WithFields(map[string]any{
		"eventId":     event.ID,
		"eventType":   event.EventType,
		"aggregateId": event.AggregateID,
	})

	updated, err := p.repo.RecordFailure(ctx, event.ID, cause.Error())
	if err != nil {
		log.Error("Failed to record outbox delivery failure", "recordError", err)
		return
	}
	if updated.Exhausted() {
		log.Error("Outbox event exhausted its delivery attempts", "attempts", updated.Attempts)
		return
	}
	log.Warn("Outbox delivery failed", "attempts", updated.Attempts)
}
