package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/hospital-scheduler/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "hospital-scheduler"

// DB holds the pool behind the run audit repository.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB opens the pool and pings it. Sessions are tagged with the service's
// application_name so audit writes are visible in pg_stat_activity.
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open run audit pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s@%s:%d: %w", cfg.Database, cfg.Host, cfg.Port, err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping backs the readiness check.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
