package inbox

import (
	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
	"go.uber.org/fx"
)

// NewInboxModule provides Config and a Guard. A Ledger must be provided by
// NewPostgresLedgerModule or NewMongoLedgerModule.
func NewInboxModule() fx.Option {
	return fx.Module("inbox",
		fx.Provide(newConfig, newGuard),
	)
}

func NewPostgresLedgerModule() fx.Option {
	return fx.Options(
		postgres.ProvideMigration(PostgresMigration),
		fx.Provide(NewPostgresLedger),
	)
}

func NewMongoLedgerModule() fx.Option {
	return fx.Options(
		mongo.ProvideIndexes(MongoIndexes),
		fx.Provide(NewMongoLedger),
	)
}
