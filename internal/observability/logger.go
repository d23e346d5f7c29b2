package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex
)

// ParseLevel maps debug, info, warn and error to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a colored structured logger tagged with the service name
func NewLogger(w io.Writer, serviceName string, level slog.Level) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		AddSource:  level <= slog.LevelDebug,
	})
	return slog.New(handler).With("service", serviceName)
}

// Setup installs the process-wide logger and returns it
func Setup(serviceName, level string) *slog.Logger {
	logger := NewLogger(os.Stderr, serviceName, ParseLevel(level))
	SetLogger(logger)
	return logger
}

// SetLogger replaces the process-wide logger
func SetLogger(logger *slog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
	slog.SetDefault(logger)
}

// GetLogger returns the process-wide logger, creating one from
// SERVICE_NAME and LOG_LEVEL on first use
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	logger := defaultLogger
	loggerMu.RUnlock()
	if logger != nil {
		return logger
	}

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "selectphoto-server"
	}
	return Setup(serviceName, os.Getenv("LOG_LEVEL"))
}

// WithContext returns the logger annotated with the span in ctx, if any
func WithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return logger.With(
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
		)
	}
	return logger
}

// Span attribute helpers for common fields

func UserID(id string) attribute.KeyValue {
	return attribute.String("user_id", id)
}

func ProjectID(id string) attribute.KeyValue {
	return attribute.String("project_id", id)
}

func PhotoID(id string) attribute.KeyValue {
	return attribute.String("photo_id", id)
}
