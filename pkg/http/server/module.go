package server

import (
	"context"
	"net/http"

	"github.com/simdev/taskhub/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type moduleOptions struct {
	config *Config
}

type Option func(*moduleOptions)

// WithServerConfig uses cfg instead of the "server" viper section.
func WithServerConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		applyDefaults(&cfg)
		o.config = &cfg
	}
}

// NewHTTPServerModule serves the provided http.Handler for the lifetime of the app.
func NewHTTPServerModule(opts ...Option) fx.Option {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	configProvider := fx.Provide(newConfig)
	if o.config != nil {
		configProvider = fx.Supply(*o.config)
	}

	return fx.Options(
		configProvider,
		fx.Invoke(startHTTPServer),
	)
}

func startHTTPServer(lc fx.Lifecycle, log *zap.Logger, conf Config, handler http.Handler, readiness health.ComponentManager, shutdowner fx.Shutdowner) {
	var srv *server
	markReady := readiness.AddComponent("http-server")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// routes are registered by now
			srv = newServer(log, conf, handler)
			go func() {
				if err := srv.ServeWithReadyCallback(markReady); err != nil {
					log.Error("HTTP server failed, shutting down application", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if srv == nil {
				return nil
			}
			return srv.Shutdown(ctx)
		},
	})
}
