// Package logging builds the process-wide slog logger and moves it through
// contexts.
//
// Construction:
//
//	logger := logging.New("info", "json", os.Stderr)
//
// Context propagation (the logging middleware plants a request-tagged child):
//
//	ctx = logging.WithLogger(ctx, logger)
//	logger = logging.FromContext(ctx)
//
// Error lines name the operation and the entities involved, and carry the
// full error chain:
//
//	logger.ErrorContext(ctx, "failed to allocate port",
//	    slog.String("operation", "Allocate"),
//	    slog.String("pool", pool),
//	    slog.Any("error", err),
//	)
//
// With the logging middleware active, request_id and correlation_id ride
// along on every line automatically.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type contextKey struct{}

// New builds a *slog.Logger. Level is one of "debug", "info", "warn",
// "error" (anything else means info); format "text" selects the text
// handler, everything else JSON. Debug level also turns on source locations.
// All handlers get the masq redaction hook.
func New(level, format string, w io.Writer) *slog.Logger {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl == slog.LevelDebug,
		ReplaceAttr: newRedactAttr(),
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the context's logger, or slog.Default() when none was
// stored.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
