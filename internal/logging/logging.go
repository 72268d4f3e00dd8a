// Package logging builds slog loggers from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
	// FormatText emits human-readable key=value lines.
	FormatText Format = "text"
)

// New creates a logger writing to w with the given format and level.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewFromStrings creates a stderr logger from string-typed config values.
// Unrecognized values fall back to text/info.
func NewFromStrings(format, level string) *slog.Logger {
	return New(os.Stderr, ParseFormat(format), ParseLevel(level))
}

// NewDiscard creates a logger that drops everything. Used in tests.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}

// ParseLevel converts a string to a slog.Level.
// Supports debug, info, warn, error (case-insensitive); defaults to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}
