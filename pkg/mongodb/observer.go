package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// Observer records metrics and a span around repository operations
type Observer struct {
	database string
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewObserver creates an Observer for db. m may be nil.
func NewObserver(db *mongo.Database, m *metrics.Metrics) *Observer {
	return &Observer{
		database: db.Name(),
		metrics:  m,
		tracer:   otel.Tracer("mongodb"),
	}
}

// Do runs fn as the named operation on collection
func (o *Observer) Do(ctx context.Context, collection, operation string, fn func(ctx context.Context) error) error {
	if o == nil {
		return fn(ctx)
	}

	ctx, span := o.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(o.database),
			attribute.String("db.mongodb.collection", collection),
			semconv.DBOperationKey.String(operation),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	// a missing document is a normal lookup result
	failed := err != nil && !errors.Is(err, mongo.ErrNoDocuments)
	if failed {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if o.metrics != nil {
		o.metrics.RecordMongoDBOperation(collection, operation, !failed, time.Since(start))
	}
	return err
}
