package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/risk"
)

// seedSRMarket loads the mock with a daily structure holding a support zone
// at 1.0800 and a resistance zone at 1.0900, and an H4 series whose latest
// candle prints a bullish rejection wick into the support.
func seedSRMarket(m *broker.MockClient) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	daily := make([]broker.Candle, 50)
	for i := range daily {
		daily[i] = broker.Candle{
			Time:     base.AddDate(0, 0, i),
			Open:     1.0850,
			High:     1.0865,
			Low:      1.0835,
			Close:    1.0850,
			Complete: true,
		}
	}
	daily[10].Low = 1.0800
	daily[30].High = 1.0900
	m.Candles["D"] = daily

	h4 := make([]broker.Candle, 20)
	for i := range h4 {
		h4[i] = broker.Candle{
			Time:     base.Add(time.Duration(i*4) * time.Hour),
			Open:     1.0830,
			High:     1.0840,
			Low:      1.0820,
			Close:    1.0830,
			Complete: true,
		}
	}
	h4[19] = broker.Candle{
		Time:     base.Add(76 * time.Hour),
		Open:     1.0812,
		High:     1.0817,
		Low:      1.0795,
		Close:    1.0815,
		Complete: true,
	}
	m.Candles["H4"] = h4
}

func srConfig() config.StreamConfig {
	cfg := config.DefaultStream()
	cfg.RRRatio = 2.0
	return cfg
}

func TestSRRejectionEvaluateSignal(t *testing.T) {
	mock := broker.NewMockClient()
	seedSRMarket(mock)
	strat := NewSRRejection()

	result, err := strat.Evaluate(context.Background(), mock, srConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result == nil {
		t.Fatal("expected a trade setup, got nil")
	}
	if result.Signal.Direction != "buy" {
		t.Errorf("direction = %q, want buy", result.Signal.Direction)
	}
	if result.Signal.EntryPrice != 1.0815 {
		t.Errorf("entry = %v, want 1.0815", result.Signal.EntryPrice)
	}
	// Target anchors to the resistance zone; stop is targetDist/rr below.
	if math.Abs(result.TargetPrice-1.0900) > 1e-9 {
		t.Errorf("target = %v, want the 1.0900 zone", result.TargetPrice)
	}
	if math.Abs(result.StopPrice-1.07725) > 1e-9 {
		t.Errorf("stop = %v, want 1.07725", result.StopPrice)
	}
	if result.LevelSource != risk.SourceZone {
		t.Errorf("level source = %q, want %q", result.LevelSource, risk.SourceZone)
	}
	if result.ATR <= 0 {
		t.Errorf("atr = %v, want positive", result.ATR)
	}

	insight := strat.LastInsight()
	if insight["result"] != "signal_found" {
		t.Errorf("insight result = %v, want signal_found", insight["result"])
	}
}

func TestSRRejectionNoSignalOnQuietCandle(t *testing.T) {
	mock := broker.NewMockClient()
	seedSRMarket(mock)
	// Replace the rejection candle with a quiet full-body one away from any
	// zone.
	h4 := mock.Candles["H4"]
	h4[len(h4)-1] = broker.Candle{Open: 1.0848, High: 1.0852, Low: 1.0847, Close: 1.0851, Complete: true}

	strat := NewSRRejection()
	result, err := strat.Evaluate(context.Background(), mock, srConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if got := strat.LastInsight()["result"]; got != "no_signal" {
		t.Errorf("insight result = %v, want no_signal", got)
	}
}

func TestSRRejectionNoZones(t *testing.T) {
	mock := broker.NewMockClient()
	// Perfectly flat dailies produce no swing points at all.
	daily := make([]broker.Candle, 50)
	for i := range daily {
		daily[i] = broker.Candle{Open: 1.0850, High: 1.0865, Low: 1.0835, Close: 1.0850, Complete: true}
	}
	mock.Candles["D"] = daily

	strat := NewSRRejection()
	result, err := strat.Evaluate(context.Background(), mock, srConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if got := strat.LastInsight()["result"]; got != "no_zones" {
		t.Errorf("insight result = %v, want no_zones", got)
	}
	if mock.CandleCalls != 1 {
		t.Errorf("candle calls = %d, want 1 (no H4 fetch without zones)", mock.CandleCalls)
	}
}

func TestSRRejectionPropagatesBrokerError(t *testing.T) {
	mock := broker.NewMockClient()
	mock.CandlesErr = context.DeadlineExceeded

	strat := NewSRRejection()
	if _, err := strat.Evaluate(context.Background(), mock, srConfig()); err == nil {
		t.Error("expected candle fetch error to propagate")
	}
}

func TestTrendFollowingBuySignal(t *testing.T) {
	mock := broker.NewMockClient()
	mock.SeedTrend("H4", 40, 1.0700, 0.0010)

	strat := NewTrendFollowing()
	result, err := strat.Evaluate(context.Background(), mock, srConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result == nil {
		t.Fatal("expected a setup from a steady uptrend")
	}
	if result.Signal.Direction != "buy" {
		t.Errorf("direction = %q, want buy", result.Signal.Direction)
	}
	if result.LevelSource != risk.SourceATRFallback {
		t.Errorf("level source = %q, want %q", result.LevelSource, risk.SourceATRFallback)
	}
	if !(result.StopPrice < result.Signal.EntryPrice && result.Signal.EntryPrice < result.TargetPrice) {
		t.Errorf("levels out of order: stop %v entry %v target %v",
			result.StopPrice, result.Signal.EntryPrice, result.TargetPrice)
	}
}

func TestTrendFollowingFlatMarket(t *testing.T) {
	mock := broker.NewMockClient()
	mock.SeedTrend("H4", 40, 1.0850, 0)

	strat := NewTrendFollowing()
	result, err := strat.Evaluate(context.Background(), mock, srConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result in a flat market, got %+v", result)
	}
	if got := strat.LastInsight()["result"]; got != "flat" {
		t.Errorf("insight result = %v, want flat", got)
	}
}

func TestRegistryGet(t *testing.T) {
	for _, name := range []string{"sr_rejection", "trend_following"} {
		if _, err := Get(name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}
	if _, err := Get("martingale"); err == nil {
		t.Error("expected error for unknown strategy key")
	}
}
