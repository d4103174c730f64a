package postgres

import (
	"context"
	"fmt"

	"github.com/simdev/taskhub/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type moduleOptions struct {
	config *Config
}

// Option configures the postgres module.
type Option func(*moduleOptions)

// WithConfig uses cfg instead of the "postgres" viper section.
func WithConfig(cfg Config) Option {
	return func(o *moduleOptions) {
		applyDefaults(&cfg)
		o.config = &cfg
	}
}

// ProvideMigration registers a component's migrations to run on start.
func ProvideMigration(m Migration) fx.Option {
	return fx.Supply(fx.Annotated{Group: "postgres_migrations", Target: m})
}

type migrationsIn struct {
	fx.In
	Migrations []Migration `group:"postgres_migrations"`
}

// NewPostgresModule provides Postgres, Migrator and a persistence.TxManager.
func NewPostgresModule(opts ...Option) fx.Option {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	configProvider := fx.Provide(newConfig)
	if o.config != nil {
		configProvider = fx.Supply(*o.config)
	}

	return fx.Module("postgres",
		configProvider,
		fx.Provide(
			providePostgres,
			func(pg Postgres, log *zap.Logger) Migrator { return NewMigrator(pg.Pool(), log) },
			newTxManager,
		),
	)
}

func providePostgres(lc fx.Lifecycle, log *zap.Logger, conf Config, readiness health.ComponentManager, in migrationsIn) (Postgres, error) {
	pg, err := newPostgres(log, conf)
	if err != nil {
		return nil, err
	}
	mig := NewMigrator(pg.pool, log)

	markReady := readiness.AddComponent("postgres")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pg.connect(ctx); err != nil {
				return err
			}
			if *conf.MigrateOnStart {
				for _, m := range in.Migrations {
					if err := mig.Up(m); err != nil {
						return fmt.Errorf("postgres migrations: %w", err)
					}
				}
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pg.close()
			return nil
		},
	})

	return pg, nil
}
