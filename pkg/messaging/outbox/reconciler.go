package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// reconciler applies delivery results to the store. Results for rows that are
// no longer PROCESSING change nothing.
type reconciler struct {
	store   Store
	cfg     Config
	metrics *metrics
	log     *zap.Logger
	now     func() time.Time
}

func newReconciler(store Store, cfg Config, m *metrics, log *zap.Logger) *reconciler {
	return &reconciler{
		store:   store,
		cfg:     cfg,
		metrics: m,
		log:     log.With(zap.String("component", "outbox")),
		now:     time.Now,
	}
}

func (r *reconciler) published(ctx context.Context, ids []int64) error {
	n, err := r.store.MarkPublished(ctx, ids, r.now())
	if err != nil {
		return err
	}
	r.metrics.published.Add(ctx, n)
	if skipped := int64(len(ids)) - n; skipped > 0 {
		r.log.Debug("delivery confirmations for rows no longer processing ignored", zap.Int64("count", skipped))
	}
	r.log.Debug("outbox events published", zap.Int64("count", n))
	return nil
}

func (r *reconciler) failed(ctx context.Context, id int64, topic string, cause error) {
	out, err := r.store.RecordFailure(ctx, id, cause.Error(), r.cfg.MaxRetries)
	if err != nil {
		r.log.Error("failed to record outbox delivery failure",
			zap.Int64("id", id), zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	if out == nil {
		r.log.Debug("delivery failure for row no longer processing ignored", zap.Int64("id", id))
		return
	}
	r.observe(ctx, *out, topic, cause.Error())
}

func (r *reconciler) observe(ctx context.Context, out Outcome, topic, reason string) {
	r.metrics.recordOutcome(ctx, topic, out.Status)
	fields := []zap.Field{
		zap.Int64("id", out.ID),
		zap.Int("retry_count", out.RetryCount),
		zap.String("reason", reason),
	}
	if out.Status == StatusFailed {
		r.log.Error("outbox event failed permanently after max retries", fields...)
		return
	}
	r.log.Warn("outbox event delivery failed, will retry", fields...)
}
