package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32        // requests allowed in half-open state
	Interval              time.Duration // window after which closed-state counts reset
	Timeout               time.Duration // open to half-open delay
	FailureThreshold      uint32        // consecutive failures that trip the breaker
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32

	// IsFailure decides which errors count against the breaker. Nil counts every error.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           3,
		Interval:              60 * time.Second,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}
}

// CircuitBreaker wraps gobreaker with logging and metrics
type CircuitBreaker struct {
	cb      *gobreaker.CircuitBreaker
	name    string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCircuitBreaker creates a new circuit breaker. m may be nil.
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *slog.Logger, m *metrics.Metrics) *CircuitBreaker {
	c := &CircuitBreaker{name: config.Name, logger: logger, metrics: m}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= config.FailureThreshold {
				return true
			}
			if counts.Requests >= config.MinRequestsToTrip {
				return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if c.metrics != nil {
				c.metrics.SetCircuitBreakerState(name, int(to))
				if to == gobreaker.StateOpen {
					c.metrics.RecordCircuitBreakerTrip(name)
				}
			}
		},
	}
	if config.IsFailure != nil {
		isFailure := config.IsFailure
		settings.IsSuccessful = func(err error) bool { return err == nil || !isFailure(err) }
	}

	c.cb = gobreaker.NewCircuitBreaker(settings)
	return c
}

// Execute runs fn through the circuit breaker
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("Circuit breaker rejected call", "name", c.name, "reason", err.Error())
		return ErrCircuitOpen
	}
	return err
}
