// Package log builds the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config string to a slog level, defaulting to info.
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

// New returns a text logger on stdout tagged with the component name.
func New(level slog.Level, component string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("component", component)
}

// Setup builds the logger and installs it as the slog default.
func Setup(levelStr, component string) *slog.Logger {
	logger := New(ParseLevel(levelStr), component)
	slog.SetDefault(logger)
	return logger
}
