// Package database persists the trading record: every placed order and a
// rolling history of equity snapshots. The bot trades fine without it; the
// recorder simply doesn't run when Postgres is disabled.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"oanda-trading-bot/config"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			stream VARCHAR(64) NOT NULL,
			broker_order_id VARCHAR(64) NOT NULL,
			instrument VARCHAR(20) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			units DECIMAL(20, 2) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8),
			take_profit DECIMAL(20, 8),
			placed_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_stream ON orders(stream)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS equity_snapshots (
			id SERIAL PRIMARY KEY,
			stream VARCHAR(64) NOT NULL,
			equity DECIMAL(20, 4) NOT NULL,
			balance DECIMAL(20, 4) NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_snapshots_taken_at ON equity_snapshots(taken_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
