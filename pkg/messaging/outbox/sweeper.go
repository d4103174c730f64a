package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// sweeper deletes PUBLISHED rows older than the retention period.
type sweeper struct {
	store   Store
	metrics *metrics
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

func newSweeper(store Store, m *metrics, cfg Config, log *zap.Logger) *sweeper {
	return &sweeper{
		store:   store,
		metrics: m,
		cfg:     cfg,
		log:     log.With(zap.String("component", "outbox-sweeper")),
		now:     time.Now,
	}
}

func (s *sweeper) Run(ctx context.Context) error {
	runEvery(ctx, s.cfg.RetentionInterval, true, s.log, "outbox retention sweep", s.sweep)
	return nil
}

func (s *sweeper) sweep(ctx context.Context) error {
	n, err := s.store.DeletePublishedBefore(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		return err
	}
	s.metrics.swept.Add(ctx, n)
	if n > 0 {
		s.log.Info("deleted published outbox events", zap.Int64("count", n), zap.Duration("retention", s.cfg.Retention))
	}
	return nil
}
