package existence

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by Exists when the subject is known not to exist.
var ErrNotFound = errors.New("subject not found")

type entry struct {
	exists    bool
	writtenAt time.Time
}

func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.writtenAt) <= ttl
}

// Cache fronts a Checker with a TTL cache, a circuit breaker and bounded retries.
//
// When the remote check fails or the circuit is open, an entry up to 2×TTL old is
// served instead. Without one, Exists reports true if fail-open is enabled.
type Cache struct {
	checker  Checker
	cfg      Config
	breaker  *gobreaker.CircuitBreaker
	group    singleflight.Group
	metrics  *cacheMetrics
	log      *zap.Logger
	throttle *logger.LogThrottler
	now      func() time.Time

	mu      sync.RWMutex
	entries map[int64]entry
	// epoch moves on EvictAll and gens[id] on Evict. A remote check only stores
	// its answer if neither moved while it ran.
	epoch uint64
	gens  map[int64]uint64
}

type generation struct {
	epoch uint64
	gen   uint64
}

func NewCache(checker Checker, cfg Config, mp metric.MeterProvider, log *zap.Logger) (*Cache, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m, err := newCacheMetrics(mp)
	if err != nil {
		return nil, err
	}

	log = log.With(zap.String("component", "existence-cache"))
	c := &Cache{
		checker:  checker,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		throttle: logger.NewLogThrottler(log, time.Minute),
		now:      time.Now,
		entries:  make(map[int64]entry),
		gens:     make(map[int64]uint64),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "existence",
		MaxRequests: cfg.Breaker.HalfOpenMaxRequests,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.Is(err, context.Canceled) || (errors.As(err, &se) && !se.Temporary())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c, nil
}

// Exists returns true when id exists and ErrNotFound when it does not.
//
// Concurrent misses for one id share a single remote check. That check runs on
// a detached context bounded by CheckTimeout, so a caller that gives up only
// abandons its own wait.
func (c *Cache) Exists(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	cached, ok := c.lookup(id)
	if ok && cached.fresh(c.now(), c.cfg.TTL) {
		c.metrics.hit(ctx, true)
		c.log.Debug("existence cache hit", zap.Int64("id", id))
		return result(cached.exists)
	}
	c.metrics.hit(ctx, false)

	gen := c.generation(id)
	ch := c.group.DoChan(flightKey(id, gen), func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CheckTimeout)
		defer cancel()

		exists, err := c.checkRemote(checkCtx, id)
		if err != nil {
			return false, err
		}
		c.storeIfCurrent(id, gen, exists)
		return exists, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res = <-ch:
	}
	if res.Err == nil {
		return result(res.Val.(bool))
	}
	return c.fallback(ctx, id, res.Err)
}

func (c *Cache) fallback(ctx context.Context, id int64, cause error) (bool, error) {
	reason := "remote_error"
	if errors.Is(cause, gobreaker.ErrOpenState) || errors.Is(cause, gobreaker.ErrTooManyRequests) {
		reason = "circuit_open"
	}

	if cached, ok := c.lookup(id); ok && cached.fresh(c.now(), 2*c.cfg.TTL) {
		c.metrics.fallback(ctx, reason, "stale")
		c.throttle.Warn("existence-stale", "existence check unavailable, serving stale entry",
			zap.Int64("id", id), zap.String("reason", reason), zap.Error(cause))
		return result(cached.exists)
	}

	if c.cfg.FailOpenEnabled() {
		c.metrics.fallback(ctx, reason, "fail_open")
		c.throttle.Warn("existence-fail-open", "existence check unavailable, assuming subject exists",
			zap.Int64("id", id), zap.String("reason", reason), zap.Error(cause))
		return true, nil
	}

	c.metrics.fallback(ctx, reason, "error")
	return false, cause
}

func (c *Cache) checkRemote(ctx context.Context, id int64) (bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	var exists bool
	err := backoff.Retry(func() error {
		v, err := c.breaker.Execute(func() (any, error) {
			return c.checker.Check(ctx, id)
		})
		if err != nil {
			var se *StatusError
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
				(errors.As(err, &se) && !se.Temporary()) {
				return backoff.Permanent(err)
			}
			return err
		}
		exists = v.(bool)
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx))

	return exists, err
}

// Evict drops the entry for id so the next Exists asks the remote service.
// A check already in flight for id will not store its answer.
func (c *Cache) Evict(id int64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.gens[id]++
	c.mu.Unlock()
	c.log.Debug("existence entry evicted", zap.Int64("id", id))
}

// EvictAll drops every entry.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	clear(c.entries)
	clear(c.gens)
	c.epoch++
	c.mu.Unlock()
	c.log.Debug("existence cache flushed")
}

func (c *Cache) lookup(id int64) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Cache) generation(id int64) generation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return generation{epoch: c.epoch, gen: c.gens[id]}
}

func (c *Cache) storeIfCurrent(id int64, gen generation, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != gen.epoch || c.gens[id] != gen.gen {
		c.log.Debug("existence answer discarded after eviction", zap.Int64("id", id))
		return
	}
	c.entries[id] = entry{exists: exists, writtenAt: c.now()}
}

func flightKey(id int64, gen generation) string {
	return strconv.FormatInt(id, 10) + "/" + strconv.FormatUint(gen.epoch, 10) + "/" + strconv.FormatUint(gen.gen, 10)
}

func result(exists bool) (bool, error) {
	if !exists {
		return false, ErrNotFound
	}
	return true, nil
}

type cacheMetrics struct {
	lookups   metric.Int64Counter
	fallbacks metric.Int64Counter
}

func newCacheMetrics(mp metric.MeterProvider) (*cacheMetrics, error) {
	meter := mp.Meter("github.com/simdev/taskhub/existence")

	lookups, err := meter.Int64Counter("existence.cache.hits",
		metric.WithDescription("Existence lookups by cache outcome"))
	if err != nil {
		return nil, err
	}
	fallbacks, err := meter.Int64Counter("existence.cache.fallbacks",
		metric.WithDescription("Lookups answered without the remote service"))
	if err != nil {
		return nil, err
	}
	return &cacheMetrics{lookups: lookups, fallbacks: fallbacks}, nil
}

func (m *cacheMetrics) hit(ctx context.Context, hit bool) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (m *cacheMetrics) fallback(ctx context.Context, reason, outcome string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("outcome", outcome),
	))
}
