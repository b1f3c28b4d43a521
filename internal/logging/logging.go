// Package logging provides structured logging helpers for the studio service.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a slog.Logger for the given level and format. Unknown values
// fall back to info-level JSON output.
func New(level, format string) *slog.Logger {
	return slog.New(newHandler(format, os.Stderr, ParseLevel(level)))
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// ParseLevel converts a config log level string to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}
