package mongodb

import (
	"context"
	"fmt"
	"strings"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// topicFor routes an event type to its Kafka topic
func topicFor(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "wms.transfer."):
		return kafka.Topics.TransferEvents
	case strings.HasPrefix(eventType, "wms.discrepancy."):
		return kafka.Topics.DiscrepancyEvents
	case strings.HasPrefix(eventType, "wms.inventory."):
		return kafka.Topics.InventoryEvents
	default:
		return kafka.Topics.JobEvents
	}
}

// saveEvents converts domain events to CloudEvents and stores them in the outbox.
// It must run inside the transaction that persists the aggregate.
func saveEvents(
	ctx context.Context,
	repo outbox.Repository,
	factory *cloudevents.EventFactory,
	aggregateID, aggregateType, subject, siteID string,
	events []domain.DomainEvent,
) error {
	if len(events) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.Event, 0, len(events))
	for _, event := range events {
		cloudEvent := factory.CreateEvent(ctx, event.EventType(), subject, siteID, event)
		outboxEvent, err := outbox.NewEvent(aggregateID, aggregateType, topicFor(event.EventType()), cloudEvent)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if err := repo.SaveAll(ctx, outboxEvents); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}
