// Package ledger guards the stock ledger with retries and a circuit breaker.
package ledger

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// ResilientLedger retries transient ledger failures and stops calling the ledger while it keeps failing.
// Retries are safe because every adjustment carries an idempotency key.
type ResilientLedger struct {
	inner   domain.StockLedger
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	logger  *logging.Logger
}

// NewResilientLedger wraps inner. isTransient selects the errors that are retried and that count against the breaker.
func NewResilientLedger(
	inner domain.StockLedger,
	breaker *resilience.CircuitBreaker,
	retry *resilience.RetryConfig,
	isTransient func(error) bool,
	logger *logging.Logger,
) *ResilientLedger {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	cfg := *retry
	cfg.RetryableErrors = isTransient
	return &ResilientLedger{
		inner:   inner,
		breaker: breaker,
		retry:   &cfg,
		logger:  logger.WithComponent("resilient-ledger"),
	}
}

// NewLedgerBreaker builds the breaker used by NewResilientLedger
func NewLedgerBreaker(cfg *resilience.CircuitBreakerConfig, isTransient func(error) bool, logger *logging.Logger, m *metrics.Metrics) *resilience.CircuitBreaker {
	if cfg == nil {
		cfg = resilience.DefaultCircuitBreakerConfig("stock-ledger")
	}
	cfg.IsFailure = isTransient
	return resilience.NewCircuitBreaker(cfg, logger.Logger, m)
}

// AdjustStock books adj through the breaker
func (l *ResilientLedger) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (movement *domain.StockMovement, err error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.AdjustStock",
		attribute.String("product.id", adj.ProductID),
		attribute.String("ledger.direction", string(adj.Direction)),
		attribute.Int("ledger.quantity", adj.Quantity),
	)
	defer func() { tracing.End(span, err) }()

	return resilience.RetryWithResult(ctx, l.retry, func() (*domain.StockMovement, error) {
		var movement *domain.StockMovement
		err := l.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			movement, err = l.inner.AdjustStock(ctx, adj)
			return err
		})
		if err != nil && l.retry.RetryableErrors != nil && l.retry.RetryableErrors(err) {
			l.logger.Warn("Transient ledger failure", "productId", adj.ProductID, "key", adj.IdempotencyKey, "error", err)
		}
		return movement, err
	})
}
