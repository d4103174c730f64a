package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the repository-facing handle.
type Postgres interface {
	// Querier returns the transaction bound to ctx, or the pool.
	Querier(ctx context.Context) Querier
	Pool() *pgxpool.Pool
}

type postgres struct {
	pool *pgxpool.Pool
	conf Config
	log  *zap.Logger
}

func newPostgres(log *zap.Logger, conf Config) (*postgres, error) {
	poolConf, err := pgxpool.ParseConfig(buildConnString(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConf.MaxConns = conf.MaxConns
	poolConf.MinConns = conf.MinConns
	poolConf.MaxConnIdleTime = conf.MaxConnIdleTime
	poolConf.MaxConnLifetime = conf.MaxConnLifetime
	poolConf.ConnConfig.ConnectTimeout = conf.ConnectTimeout

	// pgxpool connects lazily; connect() verifies reachability.
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConf)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &postgres{pool: pool, conf: conf, log: log}, nil
}

func (p *postgres) connect(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, p.conf.ConnectTimeout)
	defer cancel()

	if err := p.pool.Ping(c); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	cc := p.pool.Config().ConnConfig
	p.log.Info("connected to postgres",
		zap.String("host", cc.Host),
		zap.Uint16("port", cc.Port),
		zap.String("database", cc.Database),
		zap.Int32("max-conns", p.conf.MaxConns),
	)
	return nil
}

func (p *postgres) close() {
	p.pool.Close()
	p.log.Info("disconnected from postgres")
}

func (p *postgres) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *postgres) Querier(ctx context.Context) Querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return p.pool
}

// New wraps an existing pool. Intended for tools and tests that manage the pool themselves.
func New(pool *pgxpool.Pool, log *zap.Logger) Postgres {
	return &postgres{pool: pool, log: log}
}
