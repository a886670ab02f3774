// Package middleware holds the gin middleware chain and operational endpoints.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Config holds middleware configuration
type Config struct {
	Logger         *slog.Logger
	ServiceName    string
	AllowedOrigins []string
	TrustedProxies []string
	QuietPaths     []string
}

// DefaultConfig returns the chain used by the service binaries
func DefaultConfig(serviceName string, logger *slog.Logger) *Config {
	return &Config{
		Logger:      logger,
		ServiceName: serviceName,
		QuietPaths:  []string{"/health", "/ready", "/metrics"},
	}
}

// Setup installs recovery, request ids, actor identity, access logs, CORS and error rendering
func Setup(router *gin.Engine, config *Config) {
	InitValidator()

	if len(config.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(config.TrustedProxies)
	}

	router.Use(
		Recovery(config.Logger),
		RequestContext(),
		ActorContext(),
		AccessLog(config.Logger, config.QuietPaths...),
	)
	if len(config.AllowedOrigins) > 0 {
		router.Use(CORS(config.AllowedOrigins))
	}
	router.Use(ErrorHandler(config.Logger))
}

// CORS answers preflight requests for the configured scanner and console origins
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", HeaderRequestID, HeaderCorrelationID,
			HeaderUserID, HeaderUserRole, HeaderSiteID,
		},
		ExposeHeaders: []string{"Content-Length", HeaderRequestID, HeaderCorrelationID},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// HealthCheck answers liveness probes
func HealthCheck(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	}
}

// ReadinessCheck runs every dependency check and reports each one.
// A single failing dependency makes the service not ready.
func ReadinessCheck(serviceName string, checks map[string]func(context.Context) error) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		status, code := "ready", http.StatusOK
		deps := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](c.Request.Context()); err != nil {
				deps[name] = err.Error()
				status, code = "not ready", http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "service": serviceName, "dependencies": deps})
	}
}

// NoRoute renders unknown paths with the standard error body
func NoRoute() gin.HandlerFunc {
	return unhandled(http.StatusNotFound, "ROUTE_NOT_FOUND", "The requested resource was not found")
}

// NoMethod renders unsupported methods with the standard error body
func NoMethod() gin.HandlerFunc {
	return unhandled(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The request method is not supported for this resource")
}

func unhandled(status int, code, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(status, APIErrorResponse{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(c),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Path:      c.Request.URL.Path,
		})
	}
}
