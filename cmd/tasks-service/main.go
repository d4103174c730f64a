// Command tasks-service serves the tasks API, publishes task events through
// the transactional outbox and consumes user events exactly once per offset.
//
// The storage engine is chosen by TASKS_STORAGE ("postgres" or "mongo").
package main

import (
	"fmt"
	"os"

	"github.com/simdev/taskhub/internal/tasks"
	"github.com/simdev/taskhub/pkg/existence"
	"github.com/simdev/taskhub/pkg/messaging"
	"github.com/simdev/taskhub/pkg/modules"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.uber.org/fx"
)

const envStorage = "TASKS_STORAGE"

func main() {
	// Built first: it loads .env, which may set TASKS_STORAGE.
	core := modules.NewCoreModule()

	backend, err := persistence.ParseBackend(os.Getenv(envStorage))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", envStorage, err)
		os.Exit(1)
	}

	fx.New(
		core,
		modules.NewObservabilityModule(),
		modules.NewPersistenceModule(backend),
		modules.NewMessagingModule(messaging.WithBackend(backend), messaging.WithInbox()),
		modules.NewHTTPModule(),
		existence.NewExistenceModule("users"),
		tasks.NewTasksModule(backend),
	).Run()
}
