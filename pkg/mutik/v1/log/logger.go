// Package log defines the public logging interface used across mutik packages.
package log

import (
	"context"
	"log/slog"
)

// Logger defines the public interface for logging operations within mutik.
// Stores, the reference render host and the scenario runner all log through
// it, so applications can plug in their own implementation.
type Logger interface {
	// Debugf logs a formatted message at the DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs a formatted message at the INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs a formatted message at the WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs a formatted message at the ERROR level. Implementations
	// should check whether the last arg is an error and log it structurally.
	Errorf(format string, args ...interface{})

	// Log logs a message at the specified slog.Level with additional key-value attributes.
	Log(level slog.Level, msg string, args ...interface{})
	// LogCtx logs a message at the specified slog.Level, including trace IDs
	// from ctx when the implementation supports it.
	LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{})

	// With returns a new Logger with the specified attributes added to all
	// subsequent entries.
	With(args ...interface{}) Logger
	// IsEnabled reports whether the logger outputs logs at the given level.
	// Hot paths use it to skip building messages that would be discarded.
	IsEnabled(level slog.Level) bool
}
