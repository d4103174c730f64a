// Package container starts throwaway databases for integration tests.
// Every helper removes its container when the test finishes.
package container

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

const postgresImage = "postgres:16-alpine"

// Postgres starts Postgres, applies migrations in order and returns a handle
// on the fresh database.
func Postgres(t testing.TB, migrations ...postgres.Migration) postgres.Postgres {
	t.Helper()
	ctx := context.Background()

	c, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("taskhub"),
		tcpostgres.WithUsername("taskhub"),
		tcpostgres.WithPassword("taskhub"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	log := zap.NewNop()
	migrator := postgres.NewMigrator(pool, log)
	for _, m := range migrations {
		require.NoError(t, migrator.Up(m), "migration %s", m.Name)
	}
	return postgres.New(pool, log)
}
