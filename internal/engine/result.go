package engine

import "time"

// Action classifies the outcome of a single engine cycle.
type Action string

const (
	// ActionHalted means the drawdown circuit breaker blocked the cycle.
	ActionHalted Action = "halted"
	// ActionSkipped means the cycle ran but produced no order.
	ActionSkipped Action = "skipped"
	// ActionOrderPlaced means the broker accepted a new order.
	ActionOrderPlaced Action = "order_placed"
	// ActionError means the cycle aborted on a broker or strategy failure.
	ActionError Action = "error"
)

// Skip and halt reasons surfaced in CycleResult.Reason.
const (
	ReasonBreaker      = "circuit_breaker"
	ReasonSession      = "outside_session"
	ReasonNoSignal     = "no_signal"
	ReasonMaxPositions = "max_concurrent_positions"
)

// CycleResult records what one engine cycle did, for the status store, the
// event bus and the logs. Order fields are only set for ActionOrderPlaced.
type CycleResult struct {
	Stream      string    `json:"stream"`
	Cycle       int       `json:"cycle"`
	Time        time.Time `json:"time"`
	Action      Action    `json:"action"`
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
	Instrument  string    `json:"instrument,omitempty"`
	Direction   string    `json:"direction,omitempty"`
	Units       int       `json:"units,omitempty"`
	EntryPrice  float64   `json:"entry_price,omitempty"`
	StopPrice   float64   `json:"stop_price,omitempty"`
	TargetPrice float64   `json:"target_price,omitempty"`
}
