package outbox

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/core/worker"
	kafkaconfig "github.com/simdev/taskhub/pkg/messaging/kafka/config"
	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// NewOutboxModule provides Writer and runs the publisher, confirmer, watchdog
// and sweeper workers. A Store must be provided by NewPostgresStoreModule or
// NewMongoStoreModule.
//
//	fx.Options(
//	    outbox.NewOutboxModule(),
//	    outbox.NewPostgresStoreModule(),
//	)
func NewOutboxModule() fx.Option {
	return fx.Module("outbox",
		fx.Provide(
			provideConfig,
			newTracePropagator,
			newMetrics,
			newReconciler,
			newWriter,
		),
		fx.Provide(
			fx.Private,
			provideDeliveryChannel,
			newPublisher,
			newConfirmer,
			newWatchdog,
			newSweeper,
		),
		fx.Provide(
			worker.Register[*publisher]("outbox-publisher", worker.WithReady()),
			worker.Register[*confirmer]("outbox-confirmer"),
			worker.Register[*watchdog]("outbox-watchdog", worker.WithReady()),
			worker.Register[*sweeper]("outbox-sweeper", worker.WithReady()),
		),
	)
}

// NewPostgresStoreModule provides the Postgres Store and registers its migrations.
func NewPostgresStoreModule() fx.Option {
	return fx.Options(
		postgres.ProvideMigration(PostgresMigration),
		fx.Provide(NewPostgresStore),
	)
}

// NewMongoStoreModule provides the Mongo Store and registers its indexes.
func NewMongoStoreModule() fx.Option {
	return fx.Options(
		mongo.ProvideIndexes(MongoIndexes),
		fx.Provide(NewMongoStore),
	)
}

func provideConfig(v *viper.Viper, kc kafkaconfig.Config) (Config, error) {
	cfg, err := newConfig(v)
	if err != nil {
		return cfg, err
	}
	if err := cfg.checkAgainstProducer(kc.ProducerConfig.MessageTimeout); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// provideDeliveryChannel is sized so the producer never blocks on a full batch
// of reports while the confirmer is writing.
func provideDeliveryChannel(cfg Config) chan kafka.Event {
	return make(chan kafka.Event, max(cfg.BatchSize, cfg.ConfirmBatchSize)*2)
}
