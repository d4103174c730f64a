package modules

import (
	"github.com/simdev/taskhub/pkg/persistence"
	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
	"go.uber.org/fx"
)

// NewPersistenceModule provides the database handle and a persistence.TxManager for b.
func NewPersistenceModule(b persistence.Backend) fx.Option {
	if b == persistence.BackendMongo {
		return mongo.NewMongoModule()
	}
	return postgres.NewPostgresModule()
}
