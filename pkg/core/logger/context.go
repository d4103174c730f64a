package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

type contextKey struct{}

var loggerCtxKey = contextKey{}

var defaultLogger atomic.Pointer[zap.Logger]

func init() {
	defaultLogger.Store(zap.NewNop())
}

// SetDefault replaces the logger returned by Get when the context carries none.
func SetDefault(l *zap.Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// Get extracts a logger from the context, falling back to the process default.
// It is safe to call with a nil context.
func Get(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerCtxKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger.Load()
}

// With returns a copy of ctx carrying l.
func With(ctx context.Context, l *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}
