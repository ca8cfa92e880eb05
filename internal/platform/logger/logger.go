package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mirovis/taskcore/internal/config"
)

// contextKey is the private type for logger context values.
type contextKey struct{}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger with the
// appropriate log level, sets it as the default logger for the application,
// and returns it.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout), nil
}

// SetupWithWriter is Setup with an explicit output writer. Tests use it to
// capture log output; the demo UI uses it to keep log lines off the terminal
// the task panel is drawing on.
func SetupWithWriter(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContextOrDefault returns the logger stored in the context, or the
// fallback when the context carries none.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}
