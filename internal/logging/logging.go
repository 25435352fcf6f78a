// Package logging provides structured logging using Go's slog package.
package logging

import (
	"log/slog"
	"os"
	"time"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// PlanBuilt logs the outcome of query planning: how many filters/sort keys
// were compiled, the chosen row-count estimate and the emitted opcode count.
// Called once per PlanQuery, never from the interpreter's per-row loops.
func PlanBuilt(numFilters, numSortKeys, numOpcodes int, estimatedRows int64, args ...any) {
	allArgs := []any{
		"num_filters", numFilters,
		"num_sort_keys", numSortKeys,
		"num_opcodes", numOpcodes,
		"estimated_rows", estimatedRows,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("query_plan_built", allArgs...)
}

// CursorExecuted logs the outcome of a single Cursor.Execute call.
func CursorExecuted(numSteps int64, outputRows int, duration time.Duration, args ...any) {
	allArgs := []any{
		"num_steps", numSteps,
		"output_rows", outputRows,
		"duration_us", duration.Microseconds(),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("cursor_executed", allArgs...)
}

// DegradedPath logs a recoverable degradation: a regex failed to compile, a
// cursor re-initialized stale registers, and similar cases where the
// engine keeps running with reduced performance or coverage rather than
// surfacing a fatal error.
func DegradedPath(reason string, args ...any) {
	allArgs := []any{"reason", reason}
	allArgs = append(allArgs, args...)
	defaultLogger.Warn("degraded_path", allArgs...)
}
