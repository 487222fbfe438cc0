// Package database holds the Postgres directory store: accounts, tenant
// links and members.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ealmetes/HealthExtent/internal/shared/config"
	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
)

// DB is the directory connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the directory pool and pings it once.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("directory pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("directory unreachable: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// PoolConfig maps directory settings onto pgx pool options. Directory reads
// are a few lookups per request, so the pool stays small and idle
// connections are released after five minutes.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("directory dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= pc.MaxConns {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.MaxConnLifetime = 30 * time.Minute
	return pc, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health pings the directory and reports acquired connections.
func (db *DB) Health(ctx context.Context) error {
	metrics.RecordDBConnections("directory", int(db.Pool.Stat().AcquiredConns()))
	return db.Pool.Ping(ctx)
}
