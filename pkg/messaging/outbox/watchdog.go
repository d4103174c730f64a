package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const staleReason = "delivery confirmation timed out"

// watchdog releases rows stuck in PROCESSING because their delivery report
// never arrived, counting the lost attempt like any other failure.
type watchdog struct {
	store      Store
	reconciler *reconciler
	cfg        Config
	log        *zap.Logger
	now        func() time.Time
}

func newWatchdog(store Store, reconciler *reconciler, cfg Config, log *zap.Logger) *watchdog {
	return &watchdog{
		store:      store,
		reconciler: reconciler,
		cfg:        cfg,
		log:        log.With(zap.String("component", "outbox-watchdog")),
		now:        time.Now,
	}
}

func (w *watchdog) Run(ctx context.Context) error {
	runEvery(ctx, w.cfg.StaleCheckInterval, false, w.log, "outbox stale check", w.check)
	return nil
}

func (w *watchdog) check(ctx context.Context) error {
	outcomes, err := w.store.ReleaseStale(ctx, w.now().Add(-w.cfg.ProcessingTimeout), staleReason, w.cfg.MaxRetries)
	for _, out := range outcomes {
		w.reconciler.metrics.reclaimed.Add(ctx, 1)
		w.reconciler.observe(ctx, out, "", staleReason)
	}
	if len(outcomes) > 0 {
		w.log.Warn("released stale outbox events", zap.Int("count", len(outcomes)))
	}
	return err
}
