package existence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

var errUnavailable = errors.New("connection refused")

type fakeChecker struct {
	mu     sync.Mutex
	calls  atomic.Int32
	exists map[int64]bool
	err    error
	block  chan struct{}
}

type checkerFunc func(ctx context.Context, id int64) (bool, error)

func (fn checkerFunc) Check(ctx context.Context, id int64) (bool, error) { return fn(ctx, id) }

func (f *fakeChecker) checker() Checker {
	return checkerFunc(func(ctx context.Context, id int64) (bool, error) {
		f.calls.Add(1)
		if f.block != nil {
			<-f.block
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.err != nil {
			return false, f.err
		}
		return f.exists[id], nil
	})
}

func (f *fakeChecker) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testCfg() Config {
	return Config{
		TTL:            time.Minute,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		Breaker: BreakerConfig{
			FailureThreshold:    100,
			OpenTimeout:         time.Hour,
			HalfOpenMaxRequests: 1,
		},
	}
}

func newTestCache(t *testing.T, f *fakeChecker, cfg Config) (*Cache, *clock) {
	t.Helper()
	c, err := NewCache(f.checker(), cfg, noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestExists_MissThenFreshHit(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{42: true}}
	c, clk := newTestCache(t, f, testCfg())

	ok, err := c.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.advance(30 * time.Second)
	ok, err = c.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestExists_CachedFalseReturnsNotFound(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{}}
	c, _ := newTestCache(t, f, testCfg())

	_, err := c.Exists(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.Exists(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestExists_ExpiredEntryAsksAgain(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{42: true}}
	c, clk := newTestCache(t, f, testCfg())

	_, err := c.Exists(context.Background(), 42)
	require.NoError(t, err)

	clk.advance(time.Minute + time.Second)
	_, err = c.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestExists_FreshEntrySkipsFailingRemote(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{42: true}}
	c, _ := newTestCache(t, f, testCfg())

	_, err := c.Exists(context.Background(), 42)
	require.NoError(t, err)

	f.fail(errUnavailable)
	ok, err := c.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestExists_RemoteFailureServesStaleWithinDoubleTTL(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{7: false}}
	c, clk := newTestCache(t, f, testCfg())

	_, err := c.Exists(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)

	f.fail(errUnavailable)
	clk.advance(90 * time.Second)

	_, err = c.Exists(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExists_StaleBeyondDoubleTTLFailsOpen(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{7: false}}
	c, clk := newTestCache(t, f, testCfg())

	_, err := c.Exists(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)

	f.fail(errUnavailable)
	clk.advance(2*time.Minute + time.Second)

	ok, err := c.Exists(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExists_OpenCircuitWithoutEntryFailsOpen(t *testing.T) {
	f := &fakeChecker{err: errUnavailable}
	cfg := testCfg()
	cfg.MaxAttempts = 1
	cfg.Breaker.FailureThreshold = 2
	c, _ := newTestCache(t, f, cfg)

	for i := 0; i < 2; i++ {
		ok, err := c.Exists(context.Background(), int64(100+i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	require.Equal(t, gobreaker.StateOpen, c.breaker.State())

	calls := f.calls.Load()
	ok, err := c.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, calls, f.calls.Load(), "open circuit must not reach the remote service")
}

func TestExists_FailClosedReturnsRemoteError(t *testing.T) {
	f := &fakeChecker{err: errUnavailable}
	cfg := testCfg()
	cfg.FailOpen = new(bool)
	c, _ := newTestCache(t, f, cfg)

	_, err := c.Exists(context.Background(), 42)
	require.ErrorIs(t, err, errUnavailable)
}

func TestExists_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(context.Context, int64) (bool, error) {
		if calls.Add(1) == 1 {
			return false, errUnavailable
		}
		return true, nil
	})
	c, err := NewCache(checker, testCfg(), noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	ok, err := c.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExists_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(context.Context, int64) (bool, error) {
		calls.Add(1)
		return false, &StatusError{StatusCode: 400}
	})
	cfg := testCfg()
	cfg.MaxAttempts = 3
	cfg.FailOpen = new(bool)
	c, err := NewCache(checker, cfg, noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	_, err = c.Exists(context.Background(), 42)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExists_ConcurrentMissesCoalesce(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{42: true}, block: make(chan struct{})}
	c, _ := newTestCache(t, f, testCfg())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.Exists(context.Background(), 42)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.block)
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(2))
}

func TestEvict(t *testing.T) {
	f := &fakeChecker{exists: map[int64]bool{1: true, 2: true}}
	c, _ := newTestCache(t, f, testCfg())

	for _, id := range []int64{1, 2} {
		_, err := c.Exists(context.Background(), id)
		require.NoError(t, err)
	}

	c.Evict(1)
	_, err := c.Exists(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.calls.Load())

	c.EvictAll()
	_, err = c.Exists(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.calls.Load())
}

func TestExists_CanceledContext(t *testing.T) {
	f := &fakeChecker{err: errUnavailable}
	c, _ := newTestCache(t, f, testCfg())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Exists(ctx, 42)
	require.ErrorIs(t, err, context.Canceled)
}

func slowChecker(calls *atomic.Int32, delay time.Duration, exists map[int64]bool) Checker {
	return checkerFunc(func(ctx context.Context, id int64) (bool, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
			return exists[id], nil
		}
	})
}

func TestCheckRemote_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	cfg := testCfg()
	cfg.Breaker.FailureThreshold = 2
	c, err := NewCache(slowChecker(&calls, time.Second, nil), cfg, noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := c.checkRemote(ctx, int64(100+i))
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
	assert.Equal(t, uint32(0), c.breaker.Counts().ConsecutiveFailures)
}

func TestExists_AbandonedCallsKeepCircuitClosed(t *testing.T) {
	var calls atomic.Int32
	cfg := testCfg()
	cfg.Breaker.FailureThreshold = 2
	c, err := NewCache(slowChecker(&calls, 20*time.Millisecond, map[int64]bool{}), cfg, noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := c.Exists(ctx, int64(100+i))
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	_, err = c.Exists(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestExists_FollowerOutlivesCanceledLeader(t *testing.T) {
	var calls atomic.Int32
	c, err := NewCache(slowChecker(&calls, 100*time.Millisecond, map[int64]bool{}), testCfg(), noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Exists(leaderCtx, 42)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	followerErr := make(chan error, 1)
	go func() {
		_, err := c.Exists(context.Background(), 42)
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	require.ErrorIs(t, <-leaderErr, context.Canceled)
	require.ErrorIs(t, <-followerErr, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEvict_DiscardsInFlightAnswer(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	checker := checkerFunc(func(context.Context, int64) (bool, error) {
		if calls.Add(1) == 1 {
			<-release
			return true, nil
		}
		return false, nil
	})
	c, err := NewCache(checker, testCfg(), noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ok, err := c.Exists(context.Background(), 42)
		assert.NoError(t, err)
		assert.True(t, ok)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Evict(42)
	close(release)
	<-done

	_, err = c.Exists(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEvictAll_DiscardsInFlightAnswer(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	checker := checkerFunc(func(context.Context, int64) (bool, error) {
		if calls.Add(1) == 1 {
			<-release
			return true, nil
		}
		return false, nil
	})
	c, err := NewCache(checker, testCfg(), noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Exists(context.Background(), 42)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	c.EvictAll()
	close(release)
	<-done

	_, err = c.Exists(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
