package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ParseLevel maps a configuration string onto a LogLevel, defaulting to info
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(s)) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logger configuration
type Config struct {
	Level       LogLevel
	ServiceName string
	Environment string
	Version     string
	Output      io.Writer
	AddSource   bool
}

// DefaultConfig returns a default logger configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: serviceName,
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("VERSION", "unknown"),
		Output:      os.Stdout,
	}
}

// Logger wraps slog.Logger with fulfillment-specific helpers
type Logger struct {
	*slog.Logger
	serviceName string
}

// New creates a new Logger instance
func New(config *Config) *Logger {
	level := slog.LevelInfo
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler).With(
			"service", config.ServiceName,
			"environment", config.Environment,
			"version", config.Version,
		),
		serviceName: config.ServiceName,
	}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), serviceName: l.serviceName}
}

// WithContext creates a logger carrying request-scoped attributes from ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := extractContextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	return l.with(attrs...)
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]any) *Logger {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return l.with(attrs...)
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with("error", err.Error())
}

// WithComponent adds a component name to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// BusinessEvent describes a state change worth keeping in the operational log
type BusinessEvent struct {
	EventType  string
	EntityType string
	EntityID   string
	Action     string
	RelatedIDs map[string]string
	Data       map[string]any
}

// LogBusinessEvent logs a domain state change with its related identifiers
func (l *Logger) LogBusinessEvent(ctx context.Context, event BusinessEvent) {
	attrs := []any{
		"eventType", event.EventType,
		"entityType", event.EntityType,
		"entityId", event.EntityID,
		"action", event.Action,
	}
	for k, v := range event.RelatedIDs {
		attrs = append(attrs, k, v)
	}
	for k, v := range event.Data {
		attrs = append(attrs, k, v)
	}
	l.WithContext(ctx).Info("Business event", attrs...)
}

// Audit logs an audit event for a destructive or permission-gated action
func (l *Logger) Audit(ctx context.Context, action, resource, resourceID, userID string, details map[string]any) {
	attrs := []any{
		"auditAction", action,
		"resource", resource,
		"resourceId", resourceID,
		"userId", userID,
	}
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	l.WithContext(ctx).Info("Audit event", attrs...)
}

// KafkaPublish logs a Kafka publish attempt
func (l *Logger) KafkaPublish(ctx context.Context, topic, eventType string, success bool, duration time.Duration) {
	level := slog.LevelDebug
	if !success {
		level = slog.LevelError
	}
	l.WithContext(ctx).Log(ctx, level, "Kafka publish",
		"topic", topic,
		"eventType", eventType,
		"success", success,
		"durationMs", duration.Milliseconds(),
	)
}

// SetDefault sets this logger as the default slog logger
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

type contextKey string

const (
	RequestIDKey     contextKey = "requestId"
	CorrelationIDKey contextKey = "correlationId"
	UserIDKey        contextKey = "userId"
	SiteIDKey        contextKey = "siteId"
)

var contextKeys = []contextKey{RequestIDKey, CorrelationIDKey, UserIDKey, SiteIDKey}

// extractContextAttrs collects request identity plus the ids of the active span,
// so a log line can be opened straight from its trace
func extractContextAttrs(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var attrs []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, string(key), v)
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs, "traceId", sc.TraceID().String(), "spanId", sc.SpanID().String())
	}
	return attrs
}

// ContextWithRequestID adds request ID to context
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithCorrelationID adds correlation ID to context
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// ContextWithUserID adds the acting worker or manager to context
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// ContextWithSiteID adds the operating site to context
func ContextWithSiteID(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, SiteIDKey, siteID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
