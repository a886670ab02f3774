package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// Gin context keys
const (
	ContextKeyRequestID     = "requestId"
	ContextKeyCorrelationID = "correlationId"
)

// HTTP header names
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// RequestContext assigns the request id and the correlation id, echoing both
// back. The correlation id defaults to the request id so a scan can be traced
// from the handheld through emitted events.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = requestID
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Set(ContextKeyCorrelationID, correlationID)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderCorrelationID, correlationID)

		ctx := logging.ContextWithRequestID(c.Request.Context(), requestID)
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// AccessLog writes one line per request keyed by route pattern.
// quiet paths such as probes are not logged.
func AccessLog(logger *slog.Logger, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latencyMs", time.Since(start).Milliseconds(),
			"requestId", GetRequestID(c),
			"correlationId", c.GetString(ContextKeyCorrelationID),
			"userId", c.GetHeader(HeaderUserID),
			"siteId", c.GetHeader(HeaderSiteID),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", attrs...)
		default:
			logger.Info("HTTP request", attrs...)
		}
	}
}

// Recovery turns a handler panic into a 500 with the standard error body
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("Panic recovered",
					"panic", recovered,
					"route", c.FullPath(),
					"requestId", GetRequestID(c),
				)
				AbortWithAppError(c, errors.NewAppError(errors.CodeInternalError, "An unexpected error occurred", http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestContext
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
