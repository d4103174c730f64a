package inbox

import (
	"context"
	"embed"
	"fmt"

	"github.com/simdev/taskhub/pkg/persistence/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresMigration creates the processed_events table.
var PostgresMigration = postgres.Migration{
	Name: "inbox",
	FS:   migrationsFS,
	Dir:  "migrations",
}

const (
	existsSQL = `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_key = $1)`
	insertSQL = `INSERT INTO processed_events (event_key) VALUES ($1)`
)

type postgresLedger struct {
	pg postgres.Postgres
}

func NewPostgresLedger(pg postgres.Postgres) Ledger {
	return &postgresLedger{pg: pg}
}

func (l *postgresLedger) IsProcessed(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := l.pg.Querier(ctx).QueryRow(ctx, existsSQL, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event %s: %w", key, err)
	}
	return exists, nil
}

func (l *postgresLedger) MarkProcessed(ctx context.Context, key string) error {
	if _, err := l.pg.Querier(ctx).Exec(ctx, insertSQL, key); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to record processed event %s: %w", key, err)
	}
	return nil
}
