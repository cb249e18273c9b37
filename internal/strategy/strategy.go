// Package strategy contains the pluggable signal generators the stream
// engine runs. Strategies are resolved from a string key via the registry,
// evaluate market conditions through the shared broker client, and hand back
// a complete trade setup (direction, entry, stop, target) or nil.
package strategy

import (
	"context"
	"fmt"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
)

// Signal is a directional entry decision.
type Signal struct {
	Direction  string    `json:"direction"` // "buy" or "sell"
	EntryPrice float64   `json:"entry_price"`
	Reason     string    `json:"reason"`
	CandleTime time.Time `json:"candle_time"`
}

// Result bundles a signal with its risk levels so the engine never needs to
// know which zone or indicator method produced them.
type Result struct {
	Signal      Signal  `json:"signal"`
	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`
	ATR         float64 `json:"atr"`
	LevelSource string  `json:"level_source"` // risk.SourceZone or risk.SourceATRFallback
}

// Strategy is the capability contract the engine depends on. Evaluate
// returns (nil, nil) when there is no setup. LastInsight exposes the most
// recent analysis snapshot for the dashboard and is never read by the
// engine's decision path.
type Strategy interface {
	Evaluate(ctx context.Context, b broker.Broker, cfg config.StreamConfig) (*Result, error)
	LastInsight() map[string]any
}

var registry = map[string]func() Strategy{
	"sr_rejection":    func() Strategy { return NewSRRejection() },
	"trend_following": func() Strategy { return NewTrendFollowing() },
}

// Get instantiates a strategy by registry key.
func Get(name string) (Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered strategy keys.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
