// Package database manages the warehouse-side PostgreSQL pool and the schema
// migrations for the engine's own tables.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing leans toward few long-lived connections: the engine's hot path
// is bulk COPY loads, not many small queries.
const (
	defaultMaxConns     = 16
	defaultConnLifetime = time.Hour
	defaultConnIdleTime = 30 * time.Minute
)

// DB is the warehouse connection pool shared by the repositories and the
// table loader.
type DB struct {
	*pgxpool.Pool
}

// Config holds warehouse pool settings. Zero fields fall back to defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens the warehouse pool and verifies it with a ping.
func Connect(ctx context.Context, cfg *Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing warehouse URL: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConnections
	if poolCfg.MaxConns == 0 {
		poolCfg.MaxConns = defaultMaxConns
	}
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	if poolCfg.MaxConnLifetime == 0 {
		poolCfg.MaxConnLifetime = defaultConnLifetime
	}
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolCfg.MaxConnIdleTime == 0 {
		poolCfg.MaxConnIdleTime = defaultConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating warehouse pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging warehouse: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool.
func (db *DB) Close() {
	db.Pool.Close()
}
