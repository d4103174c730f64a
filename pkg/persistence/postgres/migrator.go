package postgres

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Migration is a set of embedded SQL migrations owned by one component.
// Each component tracks its version in its own table so components can be
// combined freely within one database.
type Migration struct {
	Name  string
	FS    fs.FS
	Dir   string
	Table string
}

// Migrator applies embedded migrations.
type Migrator interface {
	Up(m Migration) error
}

type migrator struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewMigrator creates a Migrator that runs through pool.
func NewMigrator(pool *pgxpool.Pool, log *zap.Logger) Migrator {
	return &migrator{pool: pool, log: log}
}

func (m *migrator) Up(mig Migration) error {
	if mig.Name == "" || mig.FS == nil {
		return fmt.Errorf("migration name and filesystem are required")
	}
	table := mig.Table
	if table == "" {
		table = mig.Name + "_schema_migrations"
	}

	// closing the *sql.DB does not close the pool
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: table})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migrate driver for %s: %w", mig.Name, err)
	}

	source, err := iofs.New(mig.FS, mig.Dir)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to open migrations for %s: %w", mig.Name, err)
	}

	mi, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to create migrate instance for %s: %w", mig.Name, err)
	}
	defer func() {
		if srcErr, dbErr := mi.Close(); srcErr != nil || dbErr != nil {
			m.log.Warn("failed to close migrate instance", zap.NamedError("source", srcErr), zap.NamedError("db", dbErr))
		}
	}()

	err = mi.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.log.Info("no migrations to apply", zap.String("component", mig.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations for %s: %w", mig.Name, err)
	}

	version, dirty, err := mi.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version for %s: %w", mig.Name, err)
	}
	m.log.Info("migrations applied",
		zap.String("component", mig.Name),
		zap.String("table", table),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
