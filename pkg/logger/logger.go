// Package logger provides the structured logger used across the service.
package logger

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer

	// Sampling thins out repeated messages in busy deployments.
	Sampling SamplingConfig
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a new Logger instance.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = NewSamplingHandler(handler, cfg.Sampling)

	return &Logger{Logger: slog.New(handler)}
}

// sensitiveKeys are attribute keys whose values never reach the output.
// Matching is case-insensitive and also applies to keys containing them.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"api-key",
	"credential",
	"cookie",
	"redis_password",
}

const redacted = "[REDACTED]"

func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if key == "key" {
		return slog.String(a.Key, redacted)
	}
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, redacted)
		}
	}
	if key == "url" || strings.HasSuffix(key, "_url") {
		if s, ok := a.Value.Any().(string); ok {
			return slog.String(a.Key, RedactURL(s))
		}
	}
	return a
}

// RedactURL masks credential query parameters in a URL. Providers that take
// the API key as a query parameter would otherwise leak it into logs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for name := range q {
		lower := strings.ToLower(name)
		if lower == "key" || lower == "api_key" || lower == "apikey" || lower == "token" {
			q.Set(name, redacted)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewDefault creates a new Logger with default configuration.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewDevelopment creates a logger configured for development.
func NewDevelopment() *Logger {
	return New(Config{
		Level:  "debug",
		Format: "text",
		Output: os.Stdout,
	})
}

// NewProduction creates a JSON logger with sampling enabled.
func NewProduction() *Logger {
	sampling := DefaultSamplingConfig()
	sampling.Enabled = true
	return New(Config{
		Level:    "info",
		Format:   "json",
		Output:   os.Stdout,
		Sampling: sampling,
	})
}

// NewNop creates a logger that discards all output.
func NewNop() *Logger {
	return New(Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ContextKey is the type of context keys shared with the HTTP middleware.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyRunID     ContextKey = "run_id"
)

// WithContext returns a new Logger carrying request and run ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok && runID != "" {
		logger = logger.With(slog.String("run_id", runID))
	}

	return &Logger{Logger: logger}
}

// WithError returns a new Logger with the error attribute.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Any("error", err))}
}

// WithField returns a new Logger with a single field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Any(key, value))}
}

// WithFields returns a new Logger with multiple fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// SetDefault sets this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

type contextKey string

const loggerKey contextKey = "logger"

// ToContext adds the logger to the context.
func ToContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from the context.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	return NewDefault()
}
