// Package logging builds the charmbracelet loggers shared by the services,
// the store query hook and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is printed before every line written by a directory logger.
const Prefix = "directory"

// New creates a logger writing to w (stderr when nil) at the named level.
// An unknown level falls back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    lvl == log.DebugLevel,
		Prefix:          Prefix,
		Level:           lvl,
	})
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel + 1})
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *log.Logger) *log.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// ParseLevel parses debug, info, warn, error or fatal. The empty string is info.
func ParseLevel(level string) (log.Level, error) {
	if strings.TrimSpace(level) == "" {
		return log.InfoLevel, nil
	}
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
}

// Slog adapts l to a *slog.Logger, for APIs such as errors.LogBySeverity.
func Slog(l *log.Logger) *slog.Logger {
	return slog.New(OrNop(l))
}

// With creates a child logger with the key-value pairs added to every entry.
func With(l *log.Logger, kv ...any) *log.Logger {
	return OrNop(l).With(kv...)
}
