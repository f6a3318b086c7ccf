package pointcount

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/pointcount/geom"
)

// Logger wraps slog.Logger with pointcount-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithID adds an id field to the logger.
func (l *Logger) WithID(id geom.ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, p geom.Point, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"x", p.X,
			"y", p.Y,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", p.ID,
			"x", p.X,
			"y", p.Y,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, id geom.ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"id", id,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, id geom.ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"id", id,
		)
	}
}

// LogCount logs a range count.
func (l *Logger) LogCount(ctx context.Context, q Query, result int, err error) {
	if err != nil {
		l.WarnContext(ctx, "count failed",
			"center", q.Center,
			"radius", q.Radius,
			"mode", q.Mode,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "count completed",
			"center", q.Center,
			"radius", q.Radius,
			"mode", q.Mode,
			"result", result,
		)
	}
}
