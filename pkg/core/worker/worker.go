package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/simdev/taskhub/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type worker interface {
	Start()
	Stop(ctx context.Context) error
}

type runnable interface {
	Run(ctx context.Context) error
}

// Options contains configuration for a worker.
type Options struct {
	WaitForTrafficReady bool
	WaitReady           bool
	ShutdownOnError     bool
}

// Option is a functional option for configuring a worker.
type Option func(*Options)

// WithTrafficReady makes the worker wait for traffic readiness before starting.
func WithTrafficReady() Option {
	return func(o *Options) {
		o.WaitForTrafficReady = true
	}
}

// WithReady makes the worker wait for all components to be ready before starting.
func WithReady() Option {
	return func(o *Options) {
		o.WaitReady = true
	}
}

// WithShutdown makes the worker trigger application shutdown on fatal error.
func WithShutdown() Option {
	return func(o *Options) {
		o.ShutdownOnError = true
	}
}

type baseWorker struct {
	name       string
	cancelFunc context.CancelFunc
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
	runFunc    func(ctx context.Context) error
	shutdowner fx.Shutdowner
	readiness  health.ReadinessWaiter
	options    Options
}

func (w *baseWorker) Start() {
	w.log.Info("starting " + w.name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.mu.Lock()
	w.cancelFunc = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.run(ctx)
	}()
}

func (w *baseWorker) run(ctx context.Context) {
	if w.options.WaitReady {
		if err := w.readiness.WaitReady(ctx); err != nil {
			w.log.Info(w.name + " stopped (cancelled while waiting for readiness)")
			return
		}
	}

	if w.options.WaitForTrafficReady {
		if err := w.readiness.WaitForTrafficReady(ctx); err != nil {
			w.log.Info(w.name + " stopped (cancelled while waiting for traffic readiness)")
			return
		}
	}

	err := w.safeRun(ctx)
	if err == nil {
		w.log.Info(w.name + " stopped")
		return
	}

	if !w.options.ShutdownOnError {
		w.log.Error(w.name+" stopped with error", zap.Error(err))
		return
	}

	w.log.Error(w.name+" fatal error, initiating shutdown", zap.Error(err))
	if shutdownErr := w.shutdowner.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
		w.log.Error("failed to initiate shutdown", zap.Error(shutdownErr))
	}
}

func (w *baseWorker) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", w.name, r)
		}
	}()
	return w.runFunc(ctx)
}

// Stop cancels the worker and waits for it to return or for ctx to expire.
func (w *baseWorker) Stop(ctx context.Context) error {
	w.log.Info("stopping " + w.name)

	w.mu.Lock()
	cancel, done := w.cancelFunc, w.done
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.log.Warn(w.name + " did not stop in time")
		return ctx.Err()
	}
}

func registerWorker(lc fx.Lifecycle, w worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: w.Stop,
	})
}

// Register returns an fx constructor that runs dep.Run as a managed background worker.
//
// Example:
//
//	worker.Register[*publisher]("outbox-publisher", worker.WithReady())
//	worker.Register[*processor]("user-events-processor", worker.WithReady(), worker.WithShutdown())
func Register[T runnable](name string, opts ...Option) any {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	return fx.Annotate(
		func(lc fx.Lifecycle, log *zap.Logger, shutdowner fx.Shutdowner, readiness health.ReadinessWaiter, dep T) worker {
			w := &baseWorker{
				name:       name,
				log:        log.With(zap.String("worker", name)),
				runFunc:    dep.Run,
				shutdowner: shutdowner,
				readiness:  readiness,
				options:    options,
			}
			registerWorker(lc, w)
			return w
		},
		fx.ResultTags(`group:"workers"`),
	)
}

// NewWorkersModule forces construction of every registered worker.
func NewWorkersModule() fx.Option {
	return fx.Invoke(fx.Annotate(func([]worker) {}, fx.ParamTags(`group:"workers"`)))
}
