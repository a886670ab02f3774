package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// MetricsMiddleware records request count, latency and concurrency per route pattern.
// Unmatched paths share one label so scanners probing ids cannot explode cardinality.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		m.IncrementHTTPRequestsInFlight()
		start := time.Now()
		defer func() {
			m.DecrementHTTPRequestsInFlight()
			m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()

		c.Next()
	}
}

// MetricsEndpoint serves the service registry in Prometheus or OpenMetrics format
func MetricsEndpoint(m *metrics.Metrics) gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
