package outbox

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

type memRepo struct {
	mu     sync.Mutex
	events []*Event
}

func (r *memRepo) SaveAll(_ context.Context, events []*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *memRepo) FindPending(_ context.Context, limit int) ([]*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, e := range r.events {
		if e.PublishedAt == nil && !e.Exhausted() {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) find(id string) *Event {
	for _, e := range r.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r *memRepo) MarkPublished(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.find(id).PublishedAt = &now
	return nil
}

func (r *memRepo) RecordFailure(_ context.Context, id, reason string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(id)
	e.Attempts++
	e.LastError = reason
	copied := *e
	return &copied, nil
}

type flakyProducer struct {
	mu       sync.Mutex
	failFor  map[string]bool
	received []string
}

func (p *flakyProducer) PublishEvent(_ context.Context, _ string, ce *cloudevents.WMSCloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[ce.Subject] {
		return errors.New("broker unavailable")
	}
	p.received = append(p.received, ce.ID)
	return nil
}

func newTestPublisher(repo Repository, producer EventPublisher) *Publisher {
	cfg := logging.DefaultConfig("outbox-test")
	cfg.Output = io.Discard
	return NewPublisher(repo, producer, logging.New(cfg), nil, &PublisherConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10})
}

func seed(t *testing.T, repo *memRepo, aggregateID, id string, at time.Time) {
	t.Helper()
	ce := &cloudevents.WMSCloudEvent{ID: id, Type: cloudevents.ItemScanned, Subject: aggregateID, Time: at}
	event, err := NewEvent(aggregateID, "job", "wms.fulfillment.jobs", ce)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(context.Background(), []*Event{event}))
}

func TestProcessBatch_KeepsAggregateOrderAfterFailure(t *testing.T) {
	repo := &memRepo{}
	base := time.Now()
	seed(t, repo, "JOB-1", "e1", base)
	seed(t, repo, "JOB-2", "e2", base.Add(time.Millisecond))
	seed(t, repo, "JOB-1", "e3", base.Add(2*time.Millisecond))

	producer := &flakyProducer{failFor: map[string]bool{"JOB-1": true}}
	p := newTestPublisher(repo, producer)

	delivered := p.ProcessBatch(context.Background())

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"e2"}, producer.received)
	assert.Equal(t, 1, repo.find("e1").Attempts)
	assert.Equal(t, 0, repo.find("e3").Attempts, "later events of a failed aggregate wait")

	producer.failFor = nil
	delivered = p.ProcessBatch(context.Background())
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"e2", "e1", "e3"}, producer.received)
}

func TestProcessBatch_StopsAfterMaxAttempts(t *testing.T) {
	repo := &memRepo{}
	seed(t, repo, "JOB-1", "e1", time.Now())
	repo.find("e1").MaxAttempts = 2

	producer := &flakyProducer{failFor: map[string]bool{"JOB-1": true}}
	p := newTestPublisher(repo, producer)

	p.ProcessBatch(context.Background())
	p.ProcessBatch(context.Background())
	p.ProcessBatch(context.Background())

	event := repo.find("e1")
	assert.Equal(t, 2, event.Attempts)
	assert.True(t, event.Exhausted())
	assert.Equal(t, "broker unavailable", event.LastError)
}

func TestPublisher_StartStop(t *testing.T) {
	repo := &memRepo{}
	seed(t, repo, "JOB-1", "e1", time.Now())
	producer := &flakyProducer{}
	p := newTestPublisher(repo, producer)

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	assert.Eventually(t, func() bool {
		producer.mu.Lock()
		defer producer.mu.Unlock()
		return len(producer.received) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop())
}
