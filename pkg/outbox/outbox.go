// Package outbox stores domain events next to their aggregate and relays them to Kafka.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
)

// MaxAttempts bounds how often the publisher tries a single event
const MaxAttempts = 10

// Event is a CloudEvent waiting in the outbox for delivery
type Event struct {
	// ID equals the CloudEvent id so consumers can drop redeliveries
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	Attempts      int             `bson:"attempts" json:"attempts"`
	MaxAttempts   int             `bson:"maxAttempts" json:"maxAttempts"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
}

// NewEvent serialises ce for the outbox of aggregateID
func NewEvent(aggregateID, aggregateType, topic string, ce *cloudevents.WMSCloudEvent) (*Event, error) {
	payload, err := json.Marshal(ce)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ce.Type, err)
	}
	return &Event{
		ID:            ce.ID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     ce.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     ce.Time.UTC(),
		MaxAttempts:   MaxAttempts,
	}, nil
}

// Exhausted reports whether the publisher gave up on the event
func (e *Event) Exhausted() bool {
	return e.PublishedAt == nil && e.Attempts >= e.MaxAttempts
}

// Decode restores the stored CloudEvent
func (e *Event) Decode() (*cloudevents.WMSCloudEvent, error) {
	var ce cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		return nil, fmt.Errorf("failed to decode outbox event %s: %w", e.ID, err)
	}
	return &ce, nil
}
