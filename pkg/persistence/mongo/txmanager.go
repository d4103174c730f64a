package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/simdev/taskhub/pkg/persistence"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

const maxTxAttempts = 3

type sessionStarter interface {
	StartSession() (*mongodriver.Session, error)
}

type mongoTxManager struct {
	mongo sessionStarter
	log   *zap.Logger
}

func newTxManager(m Mongo, log *zap.Logger) persistence.TxManager {
	return &mongoTxManager{mongo: m, log: log}
}

// NewTxManager builds a TxManager over m.
func NewTxManager(m Mongo, log *zap.Logger) persistence.TxManager {
	return newTxManager(m, log)
}

func isTransientError(err error) bool {
	var se mongodriver.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongodriver.IsDuplicateKeyError(err)
}

func (t *mongoTxManager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error) {
	if mongodriver.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		var session *mongodriver.Session
		session, err = t.mongo.StartSession()
		if err != nil {
			return nil, fmt.Errorf("failed to start session: %w", err)
		}

		var (
			result   any
			runHooks func()
		)
		result, err = session.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
			txCtx, runHooks = persistence.WithCommitHooks(txCtx)
			return fn(txCtx)
		})
		session.EndSession(context.WithoutCancel(ctx))

		if err == nil {
			runHooks()
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
