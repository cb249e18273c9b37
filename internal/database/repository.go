package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// InsertOrder persists a placed order
func (r *Repository) InsertOrder(ctx context.Context, order *OrderRecord) error {
	query := `
		INSERT INTO orders (stream, broker_order_id, instrument, direction, units, entry_price, stop_loss, take_profit, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		order.Stream, order.BrokerOrderID, order.Instrument, order.Direction, order.Units,
		order.EntryPrice, order.StopLoss, order.TakeProfit, order.PlacedAt,
	).Scan(&order.ID, &order.CreatedAt)
}

// ListOrders retrieves the most recent orders, newest first
func (r *Repository) ListOrders(ctx context.Context, limit, offset int) ([]*OrderRecord, error) {
	query := `
		SELECT id, stream, broker_order_id, instrument, direction, units, entry_price, stop_loss, take_profit, placed_at, created_at
		FROM orders
		ORDER BY placed_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryOrders(ctx, query, limit, offset)
}

// ListOrdersByStream retrieves the most recent orders for one stream
func (r *Repository) ListOrdersByStream(ctx context.Context, stream string, limit int) ([]*OrderRecord, error) {
	query := `
		SELECT id, stream, broker_order_id, instrument, direction, units, entry_price, stop_loss, take_profit, placed_at, created_at
		FROM orders
		WHERE stream = $1
		ORDER BY placed_at DESC
		LIMIT $2
	`
	return r.queryOrders(ctx, query, stream, limit)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*OrderRecord, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*OrderRecord
	for rows.Next() {
		order := &OrderRecord{}
		if err := rows.Scan(
			&order.ID, &order.Stream, &order.BrokerOrderID, &order.Instrument, &order.Direction,
			&order.Units, &order.EntryPrice, &order.StopLoss, &order.TakeProfit,
			&order.PlacedAt, &order.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// InsertEquitySnapshot persists one equity observation
func (r *Repository) InsertEquitySnapshot(ctx context.Context, snapshot *EquitySnapshot) error {
	query := `
		INSERT INTO equity_snapshots (stream, equity, balance, taken_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		snapshot.Stream, snapshot.Equity, snapshot.Balance, snapshot.TakenAt,
	).Scan(&snapshot.ID, &snapshot.CreatedAt)
}

// LatestEquitySnapshot returns the newest equity observation, or nil when
// none has been recorded yet
func (r *Repository) LatestEquitySnapshot(ctx context.Context) (*EquitySnapshot, error) {
	query := `
		SELECT id, stream, equity, balance, taken_at, created_at
		FROM equity_snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`
	snapshot := &EquitySnapshot{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&snapshot.ID, &snapshot.Stream, &snapshot.Equity, &snapshot.Balance,
		&snapshot.TakenAt, &snapshot.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
