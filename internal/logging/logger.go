// Package logging builds the structured loggers used by the CLI and examples.
// Library packages accept a *slog.Logger and never configure output themselves.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log levels accepted by ParseLevel
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// EnvLevel is the environment variable consulted when no level is given.
const EnvLevel = "BOOKCHAT_LOG_LEVEL"

// ParseLevel converts a level name to slog.Level.
// Defaults to INFO if the name is not recognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a text logger writing to w at the given level. An empty level
// falls back to $BOOKCHAT_LOG_LEVEL, then INFO. A nil writer means stderr.
func New(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
