package tasks

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/simdev/taskhub/pkg/persistence"
	"github.com/simdev/taskhub/pkg/persistence/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var Migration = postgres.Migration{
	Name: "tasks",
	FS:   migrationsFS,
	Dir:  "migrations",
}

// Repository persists tasks. Calls made with a transaction context join that transaction.
type Repository interface {
	Insert(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Task, error)
	FindAll(ctx context.Context) ([]*Task, error)
	FindByUserID(ctx context.Context, userID int64) ([]*Task, error)
}

const taskColumns = `id, title, description, status, user_id, created_at, updated_at`

type postgresRepository struct {
	pg postgres.Postgres
}

func NewPostgresRepository(pg postgres.Postgres) Repository {
	return &postgresRepository{pg: pg}
}

func (r *postgresRepository) Insert(ctx context.Context, t *Task) error {
	err := r.pg.Querier(ctx).QueryRow(ctx, `
INSERT INTO tasks (title, description, status, user_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.Status, t.UserID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, t *Task) error {
	err := r.pg.Querier(ctx).QueryRow(ctx, `
UPDATE tasks SET title = $2, description = $3, status = $4, updated_at = now()
WHERE id = $1
RETURNING updated_at`,
		t.ID, t.Title, t.Description, t.Status,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrEntityNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pg.Querier(ctx).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrEntityNotFound
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id int64) (*Task, error) {
	rows, err := r.pg.Querier(ctx).Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query task %d: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Task])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresRepository) FindAll(ctx context.Context) ([]*Task, error) {
	return r.collect(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
}

func (r *postgresRepository) FindByUserID(ctx context.Context, userID int64) ([]*Task, error) {
	return r.collect(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *postgresRepository) collect(ctx context.Context, query string, args ...any) ([]*Task, error) {
	rows, err := r.pg.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Task])
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}
	return tasks, nil
}
