// Package cloudevents builds the CloudEvents v1.0 envelopes the service publishes.
package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// EventFactory stamps events with this service as source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent wraps data in an envelope for the aggregate named by subject.
// siteID is the site owning the aggregate; when empty the caller's site from ctx is used.
// The correlation id always comes from ctx.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject, siteID string, data interface{}) *WMSCloudEvent {
	if siteID == "" {
		siteID, _ = ctx.Value(logging.SiteIDKey).(string)
	}
	correlationID, _ := ctx.Value(logging.CorrelationIDKey).(string)

	return &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   correlationID,
		SiteID:          siteID,
	}
}
