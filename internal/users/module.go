package users

import (
	_ "embed"

	"github.com/simdev/taskhub/pkg/http/openapi"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
	"go.uber.org/fx"
)

//go:embed openapi.yaml
var apiSpec []byte

// NewUsersModule provides the users API on top of postgres and the outbox.
func NewUsersModule() fx.Option {
	return fx.Module("users",
		postgres.ProvideMigration(Migration),
		openapi.NewOpenAPIModule(apiSpec),
		fx.Provide(
			newConfig,
			NewPostgresRepository,
			NewService,
			newHandler,
		),
		fx.Invoke(registerRoutes),
	)
}
