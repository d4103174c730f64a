package main

import (
	"context"
	"fmt"

	"github.com/simdev/taskhub/pkg/core"
	"github.com/simdev/taskhub/pkg/core/config"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/simdev/taskhub/pkg/modules"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"
)

// withStore connects to the configured database, runs fn against the outbox
// store and disconnects.
func withStore(ctx context.Context, flags *globalFlags, fn func(ctx context.Context, store outbox.Store) error) error {
	backend, err := persistence.ParseBackend(flags.storage)
	if err != nil {
		return err
	}

	opts := []core.Option{
		core.WithAppConfig(config.AppConfig{
			ServiceName:    "outboxctl",
			ServiceVersion: version,
			Environment:    "cli",
		}),
		core.WithLoggerConfig(logger.Config{Level: zapcore.WarnLevel, StacktraceLevel: zapcore.FatalLevel}),
	}
	if flags.configFile != "" {
		opts = append(opts, core.WithConfigFile(flags.configFile))
	}

	var store outbox.Store
	app := fx.New(
		modules.NewCoreModule(opts...),
		modules.NewPersistenceModule(backend),
		storeModule(backend),
		fx.Populate(&store),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to build outboxctl: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = app.Stop(context.WithoutCancel(ctx)) }()

	return fn(ctx, store)
}

func storeModule(b persistence.Backend) fx.Option {
	if b == persistence.BackendMongo {
		return outbox.NewMongoStoreModule()
	}
	return outbox.NewPostgresStoreModule()
}
