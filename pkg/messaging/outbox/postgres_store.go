package outbox

import (
	"cmp"
	"context"
	"embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresMigration creates the outbox_events table.
var PostgresMigration = postgres.Migration{
	Name: "outbox",
	FS:   migrationsFS,
	Dir:  "migrations",
}

const eventColumns = `id, event_type, topic, payload, partition_key, headers, status,
	created_at, processed_at, retry_count, error_message`

const (
	insertEventSQL = `
INSERT INTO outbox_events (event_type, topic, payload, partition_key, headers, status, retry_count)
VALUES ($1, $2, $3, $4, $5, 'PENDING', 0)
RETURNING id, created_at`

	claimPendingSQL = `
WITH candidates AS (
    SELECT e.id
    FROM outbox_events e
    WHERE e.status = 'PENDING'
      AND NOT EXISTS (
          SELECT 1 FROM outbox_events p
          WHERE COALESCE(p.partition_key, p.id::text) = COALESCE(e.partition_key, e.id::text)
            AND p.id < e.id
            AND p.status IN ('PENDING', 'PROCESSING')
      )
    ORDER BY e.created_at, e.id
    LIMIT $1
    FOR UPDATE OF e SKIP LOCKED
)
UPDATE outbox_events o
SET status = 'PROCESSING', processed_at = $2
FROM candidates c
WHERE o.id = c.id
RETURNING o.id, o.event_type, o.topic, o.payload, o.partition_key, o.headers, o.status,
    o.created_at, o.processed_at, o.retry_count, o.error_message`

	markPublishedSQL = `
UPDATE outbox_events
SET status = 'PUBLISHED', processed_at = $2, error_message = NULL
WHERE id = ANY($1) AND status = 'PROCESSING'`

	recordFailureSQL = `
UPDATE outbox_events
SET retry_count = retry_count + 1,
    error_message = $2,
    status = CASE WHEN retry_count + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END
WHERE id = $1 AND status = 'PROCESSING'
RETURNING id, status, retry_count`

	releaseStaleSQL = `
UPDATE outbox_events
SET retry_count = retry_count + 1,
    error_message = $2,
    status = CASE WHEN retry_count + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END
WHERE status = 'PROCESSING' AND processed_at < $1
RETURNING id, status, retry_count`

	deletePublishedSQL = `
DELETE FROM outbox_events
WHERE status = 'PUBLISHED' AND processed_at < $1`

	countByStatusSQL = `
SELECT status, COUNT(*) FROM outbox_events GROUP BY status`

	requeueSQL = `
UPDATE outbox_events
SET status = 'PENDING', retry_count = 0, error_message = NULL, processed_at = NULL
WHERE id = $1 AND status = 'FAILED'`
)

type postgresStore struct {
	pg postgres.Postgres
}

// NewPostgresStore returns a Store over the outbox_events table.
func NewPostgresStore(pg postgres.Postgres) Store {
	return &postgresStore{pg: pg}
}

func (s *postgresStore) Insert(ctx context.Context, e *Event) error {
	headers := e.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	err := s.pg.Querier(ctx).QueryRow(ctx, insertEventSQL,
		e.EventType, e.Topic, e.Payload, e.PartitionKey, headers,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	e.Status = StatusPending
	e.RetryCount = 0
	return nil
}

func (s *postgresStore) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*Event, error) {
	rows, err := s.pg.Querier(ctx).Query(ctx, claimPendingSQL, limit, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	// RETURNING order is unspecified.
	slices.SortFunc(events, func(a, b *Event) int { return cmp.Compare(a.ID, b.ID) })
	return events, nil
}

func (s *postgresStore) MarkPublished(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pg.Querier(ctx).Exec(ctx, markPublishedSQL, ids, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark outbox events published: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *postgresStore) RecordFailure(ctx context.Context, id int64, errMsg string, maxRetries int) (*Outcome, error) {
	var out Outcome
	err := s.pg.Querier(ctx).QueryRow(ctx, recordFailureSQL, id, errMsg, maxRetries).
		Scan(&out.ID, &out.Status, &out.RetryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record outbox failure for id %d: %w", id, err)
	}
	return &out, nil
}

func (s *postgresStore) ReleaseStale(ctx context.Context, olderThan time.Time, errMsg string, maxRetries int) ([]Outcome, error) {
	rows, err := s.pg.Querier(ctx).Query(ctx, releaseStaleSQL, olderThan, errMsg, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to release stale outbox events: %w", err)
	}
	outcomes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Outcome, error) {
		var o Outcome
		err := row.Scan(&o.ID, &o.Status, &o.RetryCount)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to release stale outbox events: %w", err)
	}
	return outcomes, nil
}

func (s *postgresStore) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pg.Querier(ctx).Exec(ctx, deletePublishedSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published outbox events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *postgresStore) List(ctx context.Context, filter ListFilter) ([]*Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + eventColumns + ` FROM outbox_events`
	args := []any{limit}
	if filter.Status != "" {
		query += ` WHERE status = $2`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id LIMIT $1`

	rows, err := s.pg.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	return events, nil
}

func (s *postgresStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.pg.Querier(ctx).Query(ctx, countByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int64, 4)
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to count outbox events: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *postgresStore) Requeue(ctx context.Context, id int64) error {
	tag, err := s.pg.Querier(ctx).Exec(ctx, requeueSQL, id)
	if err != nil {
		return fmt.Errorf("failed to requeue outbox event %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("requeue %d: %w", id, ErrNotRequeueable)
	}
	return nil
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Event, error) {
		var e Event
		err := row.Scan(&e.ID, &e.EventType, &e.Topic, &e.Payload, &e.PartitionKey, &e.Headers,
			&e.Status, &e.CreatedAt, &e.ProcessedAt, &e.RetryCount, &e.ErrorMessage)
		return &e, err
	})
}
