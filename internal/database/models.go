package database

import "time"

// OrderRecord is one placed order as persisted.
type OrderRecord struct {
	ID            int64     `json:"id"`
	Stream        string    `json:"stream"`
	BrokerOrderID string    `json:"broker_order_id"`
	Instrument    string    `json:"instrument"`
	Direction     string    `json:"direction"`
	Units         float64   `json:"units"`
	EntryPrice    float64   `json:"entry_price"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	PlacedAt      time.Time `json:"placed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// EquitySnapshot is one observation of account equity, taken whenever a
// cycle refreshes the account.
type EquitySnapshot struct {
	ID        int64     `json:"id"`
	Stream    string    `json:"stream"`
	Equity    float64   `json:"equity"`
	Balance   float64   `json:"balance"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
}
