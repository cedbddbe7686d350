package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// Ledger writes hold row locks for very short transactions; a modest
	// pool keeps lock queues shallow under bursty purchase traffic.
	dbMaxConns        = 16
	dbMaxConnLifetime = 30 * time.Minute
	dbHealthCheck     = time.Minute
)

// NewPostgresPool configures and returns a PostgreSQL connection pool
// tuned for the ledger's short row-locking transactions.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns == 0 || cfg.MaxConns > dbMaxConns {
		cfg.MaxConns = dbMaxConns
	}
	cfg.MaxConnLifetime = dbMaxConnLifetime
	cfg.HealthCheckPeriod = dbHealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
