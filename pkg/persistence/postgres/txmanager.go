package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/simdev/taskhub/pkg/persistence"
	"go.uber.org/zap"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"

	maxTxAttempts = 3
)

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

type beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type txManager struct {
	db  beginner
	log *zap.Logger
}

func newTxManager(pg Postgres, log *zap.Logger) persistence.TxManager {
	return &txManager{db: pg.Pool(), log: log}
}

// NewTxManager builds a TxManager over pg.
func NewTxManager(pg Postgres, log *zap.Logger) persistence.TxManager {
	return newTxManager(pg, log)
}

func isTransientError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func (t *txManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error) {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		var result any
		result, err = t.runOnce(ctx, fn)
		if err == nil {
			return result, nil
		}
		if !isTransientError(err) || attempt == maxTxAttempts {
			break
		}
		t.log.Warn("transient transaction error, will retry",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxTxAttempts))
	}
	return nil, err
}

func (t *txManager) runOnce(ctx context.Context, fn func(txCtx context.Context) (any, error)) (result any, err error) {
	tx, err := t.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				t.log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	txCtx, runHooks := persistence.WithCommitHooks(withTx(ctx, tx))
	result, err = fn(txCtx)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	runHooks()
	return result, nil
}
