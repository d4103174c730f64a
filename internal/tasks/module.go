package tasks

import (
	_ "embed"
	"fmt"

	"github.com/simdev/taskhub/pkg/existence"
	"github.com/simdev/taskhub/pkg/http/openapi"
	"github.com/simdev/taskhub/pkg/messaging/kafka/consumer"
	"github.com/simdev/taskhub/pkg/persistence"
	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
	"go.uber.org/fx"
)

//go:embed openapi.yaml
var apiSpec []byte

// NewTasksModule provides the tasks API on backend b, the user-events
// consumer and its dead-letter consumer. It needs the existence module and
// the messaging module with the inbox enabled.
func NewTasksModule(b persistence.Backend) fx.Option {
	return fx.Module("tasks",
		repositoryModule(b),
		openapi.NewOpenAPIModule(apiSpec),
		fx.Provide(
			newConfig,
			fx.Annotate(func(c *existence.Cache) *existence.Cache { return c }, fx.As(new(UserDirectory))),
			NewService,
			newHandler,
		),
		fx.Invoke(registerRoutes, func(cfg Config) error {
			if cfg.Storage == "" {
				return nil
			}
			configured, err := persistence.ParseBackend(cfg.Storage)
			if err != nil {
				return err
			}
			if configured != b {
				return fmt.Errorf("tasks.storage is %s but the service was built for %s", configured, b)
			}
			return nil
		}),
		consumer.RegisterHandlerAndConsumer("user-events", newUserEventsConsumer),
		consumer.RegisterHandlerAndConsumer("user-events-dlt", consumer.NewDeadLetterHandler),
	)
}

func repositoryModule(b persistence.Backend) fx.Option {
	if b == persistence.BackendMongo {
		return fx.Options(
			mongo.ProvideIndexes(MongoIndexes),
			fx.Provide(NewMongoRepository),
		)
	}
	return fx.Options(
		postgres.ProvideMigration(Migration),
		fx.Provide(NewPostgresRepository),
	)
}
