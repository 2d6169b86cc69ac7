// Package logging configures the slog loggers used across the CLI and the
// Executive, grounded on the teacher's per-PID file logger
// (internal/daemon.New) plus a colorized console handler for interactive
// use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// NewConsoleLogger returns a human-readable, colorized slog.Logger writing
// to w, suitable for the CLI's own stderr output.
func NewConsoleLogger(w io.Writer, verbosity int) *slog.Logger {
	level := levelForVerbosity(verbosity)
	handler := tint.NewHandler(w, &tint.Options{Level: level})
	return slog.New(handler)
}

// NewExecutiveFileLogger opens (creating if needed) a per-PID JSON log file
// under logDir and returns a slog.Logger writing to it, plus the file so
// the caller can close it on exit. JSON is used here (rather than tint's
// console format) because this log is consumed by tooling, not a human
// terminal — see the "gc stale activations" tool mentioned in the design
// notes.
func NewExecutiveFileLogger(logDir string, pid int, verbosity int) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(logDir, fmt.Sprintf("executive.%d.log", pid))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening executive log file: %w", err)
	}

	level := levelForVerbosity(verbosity)
	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(slog.Int("pid", pid))
	return logger, f, nil
}

func levelForVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelInfo
	case v == 1:
		return slog.LevelDebug
	default:
		return slog.Level(-8) // trace-ish, below Debug
	}
}

// discard is used by tests that don't care about log output.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger { return discard }

// ContextLogger extracts a logger from ctx if present, else returns def.
func ContextLogger(ctx context.Context, def *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return def
}

type loggerKey struct{}

// WithLogger attaches logger to ctx for downstream retrieval.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
