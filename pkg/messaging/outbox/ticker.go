package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// runEvery calls fn on every tick until ctx is done. Errors and panics from fn
// are logged and the loop keeps going.
func runEvery(ctx context.Context, interval time.Duration, immediate bool, log *zap.Logger, name string, fn func(context.Context) error) {
	if immediate {
		safeCall(ctx, log, name, fn)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			safeCall(ctx, log, name, fn)
		}
	}
}

func safeCall(ctx context.Context, log *zap.Logger, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(name+" panicked", zap.String("panic", fmt.Sprint(r)), zap.StackSkip("stack", 2))
		}
	}()
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		log.Error(name+" failed", zap.Error(err))
	}
}
