package outbox

import (
	"context"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
)

// Repository persists outbox events
type Repository interface {
	// SaveAll runs inside the transaction that stores the aggregate
	SaveAll(ctx context.Context, events []*Event) error

	// FindPending returns undelivered events with attempts left, oldest first
	FindPending(ctx context.Context, limit int) ([]*Event, error)

	MarkPublished(ctx context.Context, eventID string) error

	// RecordFailure counts a failed attempt and keeps the error text
	RecordFailure(ctx context.Context, eventID, reason string) (*Event, error)
}

// EventPublisher delivers CloudEvents to a broker topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error
}
