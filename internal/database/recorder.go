package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"oanda-trading-bot/internal/events"
)

const recordTimeout = 5 * time.Second

// Recorder listens on the event bus and persists orders and equity
// snapshots as they happen. Persistence failures are logged and dropped;
// the trading loop never waits on the database.
type Recorder struct {
	repo   *Repository
	logger zerolog.Logger
}

// NewRecorder wires a recorder onto the bus.
func NewRecorder(repo *Repository, bus *events.EventBus, logger zerolog.Logger) *Recorder {
	r := &Recorder{repo: repo, logger: logger}
	bus.Subscribe(events.EventOrderPlaced, r.handleOrderPlaced)
	bus.Subscribe(events.EventEquityUpdate, r.handleEquityUpdate)
	return r
}

func (r *Recorder) handleOrderPlaced(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	order := &OrderRecord{
		Stream:        event.Stream,
		BrokerOrderID: asString(event.Data["order_id"]),
		Instrument:    asString(event.Data["instrument"]),
		Direction:     asString(event.Data["direction"]),
		Units:         asFloat(event.Data["units"]),
		EntryPrice:    asFloat(event.Data["entry"]),
		StopLoss:      asFloat(event.Data["stop"]),
		TakeProfit:    asFloat(event.Data["target"]),
		PlacedAt:      event.Timestamp,
	}
	if err := r.repo.InsertOrder(ctx, order); err != nil {
		r.logger.Error().Err(err).Str("stream", event.Stream).Str("order_id", order.BrokerOrderID).Msg("Failed to persist order")
	}
}

func (r *Recorder) handleEquityUpdate(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	snapshot := &EquitySnapshot{
		Stream:  event.Stream,
		Equity:  asFloat(event.Data["equity"]),
		Balance: asFloat(event.Data["balance"]),
		TakenAt: event.Timestamp,
	}
	if err := r.repo.InsertEquitySnapshot(ctx, snapshot); err != nil {
		r.logger.Error().Err(err).Str("stream", event.Stream).Msg("Failed to persist equity snapshot")
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
