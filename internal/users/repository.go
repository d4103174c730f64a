package users

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
	Name: "users",
	FS:   migrationsFS,
	Dir:  "migrations",
}

type Repository interface {
	Insert(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

const userColumns = `id, email, first_name, last_name, active, created_at, updated_at`

type postgresRepository struct {
	pg postgres.Postgres
}

func NewPostgresRepository(pg postgres.Postgres) Repository {
	return &postgresRepository{pg: pg}
}

func (r *postgresRepository) Insert(ctx context.Context, u *User) error {
	err := r.pg.Querier(ctx).QueryRow(ctx, `
INSERT INTO users (email, first_name, last_name, active)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`,
		u.Email, u.FirstName, u.LastName, u.Active,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, u *User) error {
	err := r.pg.Querier(ctx).QueryRow(ctx, `
UPDATE users SET first_name = $2, last_name = $3, active = $4, updated_at = now()
WHERE id = $1
RETURNING updated_at`,
		u.ID, u.FirstName, u.LastName, u.Active,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrEntityNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", u.ID, err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pg.Querier(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrEntityNotFound
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	rows, err := r.pg.Querier(ctx).Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user %d: %w", id, err)
	}
	return u, nil
}

func (r *postgresRepository) FindAll(ctx context.Context) ([]*User, error) {
	rows, err := r.pg.Querier(ctx).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[User])
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

func (r *postgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pg.Querier(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", id, err)
	}
	return exists, nil
}
