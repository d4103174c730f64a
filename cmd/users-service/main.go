// Command users-service serves the users API and publishes user events
// through the transactional outbox.
package main

import (
	"github.com/simdev/taskhub/internal/users"
	"github.com/simdev/taskhub/pkg/modules"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		modules.NewCoreModule(),
		modules.NewObservabilityModule(),
		modules.NewPersistenceModule(persistence.BackendPostgres),
		modules.NewMessagingModule(),
		modules.NewHTTPModule(),
		users.NewUsersModule(),
	).Run()
}
