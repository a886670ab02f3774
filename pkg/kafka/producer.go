// Package kafka publishes CloudEvents to Kafka in binary content mode.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// Producer writes to every fulfillment topic through a single writer.
// Messages are keyed by the event subject, the job or transfer id, so
// one aggregate's events land on one partition in order.
type Producer struct {
	writer  *kafka.Writer
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewProducer creates a new Kafka producer. m may be nil.
func NewProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchSize:              config.BatchSize,
			BatchTimeout:           config.BatchTimeout,
			RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
			AllowAutoTopicCreation: true,
			Transport:              &kafka.Transport{ClientID: config.ClientID},
		},
		metrics: m,
		logger:  logger.WithComponent("kafka-producer"),
	}
}

func toMessage(topic string, event *cloudevents.WMSCloudEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s: %w", event.ID, err)
	}

	headers := []kafka.Header{}
	for _, h := range [][2]string{
		{"ce_specversion", event.SpecVersion},
		{"ce_type", event.Type},
		{"ce_source", event.Source},
		{"ce_id", event.ID},
		{"ce_time", event.Time.Format(time.RFC3339Nano)},
		{"ce_subject", event.Subject},
		{"ce_wmscorrelationid", event.CorrelationID},
		{"ce_wmssiteid", event.SiteID},
		{"ce_wmsworkflowid", event.WorkflowID},
		{"content-type", event.DataContentType},
	} {
		if h[1] != "" {
			headers = append(headers, kafka.Header{Key: h[0], Value: []byte(h[1])})
		}
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(event.Subject),
		Value:   value,
		Headers: headers,
		Time:    event.Time,
	}, nil
}

// PublishEvent writes event to topic and waits for the configured acks
func (p *Producer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	start := time.Now()
	msg, err := toMessage(topic, event)
	if err == nil {
		err = p.writer.WriteMessages(ctx, msg)
	}
	elapsed := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, elapsed)
	}
	p.logger.KafkaPublish(ctx, topic, event.Type, err == nil, elapsed)
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event.Type, topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
