package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey contextKey = "requestID"
	runIDKey     contextKey = "runID"
)

// LevelTrace is below Debug and used for per-tick simulation chatter
const LevelTrace = slog.LevelDebug - 4

var logger atomic.Pointer[slog.Logger]

func init() {
	// Compact handler for readable console output; SetJSONOutput for machines
	SetOutput(os.Stdout, slog.LevelInfo)
}

// SetOutput installs a compact handler writing to w at the given level
func SetOutput(w io.Writer, level slog.Level) {
	logger.Store(slog.New(NewCompactHandler(w, &slog.HandlerOptions{Level: level})))
}

// SetLevel changes the logging level, keeping compact stdout output
func SetLevel(level slog.Level) {
	SetOutput(os.Stdout, level)
}

// SetJSONOutput switches to JSON format output
func SetJSONOutput(level slog.Level) {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// Logger returns the current slog logger
func Logger() *slog.Logger {
	return logger.Load()
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRunID tags the context with a simulation run ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID retrieves the simulation run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		return runID
	}
	return ""
}

// contextAttrs prepends request and run IDs to the log arguments when present
func contextAttrs(ctx context.Context, args []any) []any {
	if runID := GetRunID(ctx); runID != "" {
		args = append([]any{"runID", runID}, args...)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		args = append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs at TRACE level (very verbose, debug-time only)
func Trace(msg string, args ...any) {
	Logger().Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at TRACE level with context
func TraceContext(ctx context.Context, msg string, args ...any) {
	Logger().Log(ctx, LevelTrace, msg, contextAttrs(ctx, args)...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, contextAttrs(ctx, args)...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, contextAttrs(ctx, args)...)
}

// Warn logs at WARN level (should be monitored)
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, contextAttrs(ctx, args)...)
}

// Error logs at ERROR level (logical bugs that shouldn't happen)
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, contextAttrs(ctx, args)...)
}

// Fatal logs at ERROR level and exits (unrecoverable startup failures)
func Fatal(msg string, args ...any) {
	Logger().Error(msg, args...)
	os.Exit(1)
}
