package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/risk"
)

const (
	dailyCandleCount = 50
	h4CandleCount    = 20
	atrPeriod        = 14
)

// SRRejection detects support/resistance rejection-wick setups: zones from
// daily candles, rejection wicks on the latest H4 candle, targets anchored
// to the next zone in the profit direction.
type SRRejection struct {
	mu      sync.RWMutex
	insight map[string]any
}

// NewSRRejection builds the strategy.
func NewSRRejection() *SRRejection {
	return &SRRejection{insight: map[string]any{}}
}

// Evaluate implements Strategy.
func (s *SRRejection) Evaluate(ctx context.Context, b broker.Broker, cfg config.StreamConfig) (*Result, error) {
	insight := map[string]any{
		"strategy":   "sr_rejection",
		"instrument": cfg.Instrument,
	}
	defer s.setInsight(insight)

	daily, err := b.GetCandles(ctx, cfg.Instrument, "D", dailyCandleCount)
	if err != nil {
		return nil, fmt.Errorf("error fetching daily candles: %w", err)
	}
	zones := DetectZones(daily)
	insight["zones"] = zones
	if len(zones) == 0 {
		insight["result"] = "no_zones"
		return nil, nil
	}

	h4, err := b.GetCandles(ctx, cfg.Instrument, "H4", h4CandleCount)
	if err != nil {
		return nil, fmt.Errorf("error fetching h4 candles: %w", err)
	}
	if len(h4) > 0 {
		insight["current_price"] = h4[len(h4)-1].Close
	}

	signal, zone := EvaluateSignal(h4, zones)
	if signal == nil {
		insight["result"] = "no_signal"
		return nil, nil
	}

	atr, err := CalculateATR(daily, atrPeriod)
	if err != nil {
		return nil, fmt.Errorf("error computing atr: %w", err)
	}
	insight["atr"] = atr

	levels, err := risk.CalculateLevels(signal.EntryPrice, signal.Direction, ZoneLevels(zones), zone.Price, atr, cfg.RRRatio)
	if err != nil {
		if errors.Is(err, risk.ErrNoValidSetup) {
			insight["result"] = "no_valid_setup"
			return nil, nil
		}
		return nil, err
	}

	insight["result"] = "signal_found"
	insight["signal"] = signal
	insight["stop"] = levels.StopPrice
	insight["target"] = levels.TargetPrice
	insight["level_source"] = levels.Source

	return &Result{
		Signal:      *signal,
		StopPrice:   levels.StopPrice,
		TargetPrice: levels.TargetPrice,
		ATR:         atr,
		LevelSource: levels.Source,
	}, nil
}

// LastInsight returns the most recent analysis snapshot.
func (s *SRRejection) LastInsight() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.insight))
	for k, v := range s.insight {
		out[k] = v
	}
	return out
}

func (s *SRRejection) setInsight(insight map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insight = insight
}
