package strategy

import (
	"context"
	"fmt"
	"sync"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/risk"
)

const (
	trendLookback  = 20
	trendThreshold = 0.6 // fraction of candles that must agree
	minNetATRFrac  = 0.5 // net move must exceed this fraction of ATR
)

// TrendFollowing trades in the direction of a clear H4 candle majority.
// Signals use pure ATR-scaled stops and targets; there is no structural
// anchor, so every result is tagged as the ATR fallback.
type TrendFollowing struct {
	mu      sync.RWMutex
	insight map[string]any
}

// NewTrendFollowing builds the strategy.
func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{insight: map[string]any{}}
}

// Evaluate implements Strategy.
func (s *TrendFollowing) Evaluate(ctx context.Context, b broker.Broker, cfg config.StreamConfig) (*Result, error) {
	insight := map[string]any{
		"strategy":   "trend_following",
		"instrument": cfg.Instrument,
	}
	defer s.setInsight(insight)

	h4, err := b.GetCandles(ctx, cfg.Instrument, "H4", trendLookback+atrPeriod+1)
	if err != nil {
		return nil, fmt.Errorf("error fetching h4 candles: %w", err)
	}
	if len(h4) < trendLookback {
		insight["result"] = "insufficient_data"
		return nil, nil
	}

	atr, err := CalculateATR(h4, atrPeriod)
	if err != nil {
		return nil, fmt.Errorf("error computing atr: %w", err)
	}
	insight["atr"] = atr

	window := h4[len(h4)-trendLookback:]
	bullish, bearish := 0, 0
	for _, c := range window {
		switch {
		case c.Close > c.Open:
			bullish++
		case c.Close < c.Open:
			bearish++
		}
	}
	total := bullish + bearish
	if total == 0 {
		insight["result"] = "flat"
		return nil, nil
	}

	netChange := window[len(window)-1].Close - window[0].Open
	insight["bullish"] = bullish
	insight["bearish"] = bearish
	insight["net_change"] = netChange

	var direction string
	switch {
	case float64(bullish)/float64(total) >= trendThreshold && netChange > minNetATRFrac*atr:
		direction = "buy"
	case float64(bearish)/float64(total) >= trendThreshold && netChange < -minNetATRFrac*atr:
		direction = "sell"
	default:
		insight["result"] = "flat"
		return nil, nil
	}

	entry := window[len(window)-1].Close
	levels, err := risk.CalculateLevels(entry, direction, nil, 0, atr, cfg.RRRatio)
	if err != nil {
		return nil, err
	}

	signal := Signal{
		Direction:  direction,
		EntryPrice: entry,
		CandleTime: window[len(window)-1].Time,
		Reason:     fmt.Sprintf("H4 trend %s (%d/%d candles, net %.5f)", direction, max(bullish, bearish), total, netChange),
	}

	insight["result"] = "signal_found"
	insight["signal"] = signal

	return &Result{
		Signal:      signal,
		StopPrice:   levels.StopPrice,
		TargetPrice: levels.TargetPrice,
		ATR:         atr,
		LevelSource: levels.Source,
	}, nil
}

// LastInsight returns the most recent analysis snapshot.
func (s *TrendFollowing) LastInsight() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.insight))
	for k, v := range s.insight {
		out[k] = v
	}
	return out
}

func (s *TrendFollowing) setInsight(insight map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insight = insight
}
