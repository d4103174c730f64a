package mongo

import (
	"context"

	"github.com/simdev/taskhub/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type moduleOptions struct {
	config *Config
}

// Option configures the mongo module.
type Option func(*moduleOptions)

// WithConfig uses cfg instead of the "mongo" viper section.
func WithConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		applyDefaults(&cfg)
		o.config = &cfg
	}
}

// ProvideIndexes registers indexes to ensure on start.
func ProvideIndexes(set IndexSet) fx.Option {
	return fx.Supply(fx.Annotated{Group: "mongo_indexes", Target: set})
}

type indexesIn struct {
	fx.In
	Sets []IndexSet `group:"mongo_indexes"`
}

// NewMongoModule provides Mongo and a persistence.TxManager. Transactions
// require a replica set.
func NewMongoModule(opts ...Option) fx.Option {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	configProvider := fx.Provide(newConfig)
	if o.config != nil {
		configProvider = fx.Supply(*o.config)
	}

	return fx.Module("mongo",
		configProvider,
		fx.Provide(provideMongo, newTxManager),
	)
}

func provideMongo(lc fx.Lifecycle, log *zap.Logger, conf Config, readiness health.ComponentManager, in indexesIn) (Mongo, error) {
	m, err := newMongo(log, conf)
	if err != nil {
		return nil, err
	}

	markReady := readiness.AddComponent("mongo")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.connect(ctx); err != nil {
				return err
			}
			if err := EnsureIndexes(ctx, m, in.Sets...); err != nil {
				return err
			}
			markReady()
			return nil
		},
		OnStop: m.disconnect,
	})

	return m, nil
}
