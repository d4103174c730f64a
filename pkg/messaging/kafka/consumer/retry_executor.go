package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// PanicError is returned when a handler panics.
type PanicError struct {
	Panic any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Panic)
}

// RetryExecutor runs a handler with bounded attempts and exponential backoff.
type RetryExecutor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type retryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	ProcessingTimeout time.Duration
}

type retryExecutor struct {
	policy retryPolicy
	log    *zap.Logger
}

func newRetryExecutor(policy retryPolicy, log *zap.Logger) *retryExecutor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryExecutor{policy: policy, log: log}
}

func (r *retryExecutor) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = r.policy.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}

// Execute stops early on ErrSkipMessage, ErrPermanent and context cancellation.
// Exhausted attempts return the last error wrapped with the attempt count.
func (r *retryExecutor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	var last error

	err := backoff.RetryNotify(func() error {
		attempt++
		err := r.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrSkipMessage) || errors.Is(err, ErrPermanent) {
			return backoff.Permanent(err)
		}
		last = err
		r.logAttempt(err, attempt)
		return err
	}, r.newBackOff(ctx), func(err error, wait time.Duration) {
		r.log.Debug("retrying message", zap.Int("next_attempt", attempt+1), zap.Duration("backoff", wait))
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSkipMessage), errors.Is(err, ErrPermanent):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("max retry attempts reached (%d): %w", attempt, last)
	}
}

func (r *retryExecutor) attempt(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if r.policy.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.ProcessingTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %w", ErrPermanent, &PanicError{Panic: rec, Stack: debug.Stack()})
		}
	}()

	return fn(ctx)
}

func (r *retryExecutor) logAttempt(err error, attempt int) {
	r.log.Warn("failed to process message",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", r.policy.MaxAttempts),
		zap.Error(err))
}
