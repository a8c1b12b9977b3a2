package cache

import (
	"context"
	"log/slog"
)

// Logger provides structured logging for cache operations. It wraps an
// slog.Logger so the store and its callers never need nil checks: every
// constructor returns a usable logger, and the default discards everything.
type Logger struct {
	l *slog.Logger
}

// NewLogger wraps an slog.Logger. A nil argument yields the nop logger, so
// injection sites can pass user-supplied values straight through.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return &Logger{l: l}
}

// NewNopLogger returns a logger that discards all messages. This is the
// default for every Store and Client: diagnostics stay off until a real
// logger is injected.
func NewNopLogger() *Logger {
	return &Logger{l: slog.New(slog.DiscardHandler)}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.l.DebugContext(ctx, msg, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.l.InfoContext(ctx, msg, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.l.WarnContext(ctx, msg, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.l.ErrorContext(ctx, msg, args...)
}

// With returns a logger carrying additional context fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l: l.l.With(args...)}
}

// WithOperation returns a logger tagged with an operation name.
func (l *Logger) WithOperation(operation string) *Logger {
	return l.With("operation", operation)
}

// LogCacheHit records that a read was served from the cache.
func LogCacheHit(ctx context.Context, logger *Logger, key string, size int64) {
	if logger == nil {
		return
	}
	logger.Debug(ctx, "cache hit", "key", key, "size", size)
}

// LogCacheMiss records that a key was not present in the cache.
func LogCacheMiss(ctx context.Context, logger *Logger, key string) {
	if logger == nil {
		return
	}
	logger.Debug(ctx, "cache miss", "key", key)
}

// LogEviction records that an entry was evicted and why.
func LogEviction(ctx context.Context, logger *Logger, key string, size int64, reason string) {
	if logger == nil {
		return
	}
	logger.Info(ctx, "cache entry evicted", "key", key, "size", size, "reason", reason)
}
