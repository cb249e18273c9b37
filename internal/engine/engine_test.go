package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/logging"
	"oanda-trading-bot/internal/strategy"
)

var testRisk = config.RiskConfig{MaxDrawdownPct: 10.0, PipValue: 0.0001}

// inSession is a wall-clock time whose UTC hour sits inside the default
// 7-21 window.
var inSession = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testStream() config.StreamConfig {
	cfg := config.DefaultStream()
	cfg.Name = "eurusd-main"
	cfg.RRRatio = 2.0
	return cfg
}

// seedSignalMarket loads the mock with dailies carrying a support zone at
// 1.0800 and a resistance zone at 1.0900, plus an H4 rejection wick into
// the support, so sr_rejection produces a buy setup.
func seedSignalMarket(m *broker.MockClient) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	daily := make([]broker.Candle, 50)
	for i := range daily {
		daily[i] = broker.Candle{
			Time: base.AddDate(0, 0, i),
			Open: 1.0850, High: 1.0865, Low: 1.0835, Close: 1.0850,
			Complete: true,
		}
	}
	daily[10].Low = 1.0800
	daily[30].High = 1.0900
	m.Candles["D"] = daily

	h4 := make([]broker.Candle, 20)
	for i := range h4 {
		h4[i] = broker.Candle{
			Time: base.Add(time.Duration(i*4) * time.Hour),
			Open: 1.0830, High: 1.0840, Low: 1.0820, Close: 1.0830,
			Complete: true,
		}
	}
	h4[19] = broker.Candle{
		Time: base.Add(76 * time.Hour),
		Open: 1.0812, High: 1.0817, Low: 1.0795, Close: 1.0815,
		Complete: true,
	}
	m.Candles["H4"] = h4
}

// seedQuietMarket loads flat candles that never produce a signal.
func seedQuietMarket(m *broker.MockClient) {
	seedSignalMarket(m)
	h4 := m.Candles["H4"]
	h4[len(h4)-1] = broker.Candle{Open: 1.0848, High: 1.0852, Low: 1.0847, Close: 1.0851, Complete: true}
}

func newTestEngine(t *testing.T, mock *broker.MockClient, cfg config.StreamConfig) *StreamEngine {
	t.Helper()
	strat, err := strategy.Get(cfg.Strategy)
	if err != nil {
		t.Fatalf("strategy.Get: %v", err)
	}
	e := NewStreamEngine(cfg, strat, mock, testRisk, events.NewEventBus(), logging.Nop())
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func TestRunOnceOutsideSession(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	e := newTestEngine(t, mock, testStream())

	night := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)
	result := e.RunOnce(context.Background(), night)

	if result.Action != ActionSkipped || result.Reason != ReasonSession {
		t.Errorf("result = %s/%s, want skipped/%s", result.Action, result.Reason, ReasonSession)
	}
	if mock.CandleCalls != 0 {
		t.Errorf("candle calls = %d, want 0 outside session", mock.CandleCalls)
	}
	if mock.OrderCount() != 0 {
		t.Errorf("orders = %d, want 0", mock.OrderCount())
	}
}

func TestRunOncePlacesOrder(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	e := newTestEngine(t, mock, testStream())

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionOrderPlaced {
		t.Fatalf("action = %s (%s %s), want order_placed", result.Action, result.Reason, result.Error)
	}
	if mock.OrderCount() != 1 {
		t.Fatalf("orders = %d, want 1", mock.OrderCount())
	}
	order := mock.PlacedOrders[0]
	if order.Instrument != "EUR_USD" {
		t.Errorf("instrument = %q, want EUR_USD", order.Instrument)
	}
	if order.Units <= 0 {
		t.Errorf("units = %d, want positive for a buy", order.Units)
	}
	// equity 10000, 1% risk, 42.5 pip stop at 0.0001/pip.
	if order.Units != 23529 {
		t.Errorf("units = %d, want 23529", order.Units)
	}
	if order.StopLossPrice != 1.07725 || order.TakeProfitPrice != 1.0900 {
		t.Errorf("levels = %v/%v, want 1.07725/1.0900", order.StopLossPrice, order.TakeProfitPrice)
	}
	if result.Direction != "buy" || result.OrderID == "" {
		t.Errorf("result order fields incomplete: %+v", result)
	}
}

func TestRunOnceSellOrderNegatesUnits(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	// Flip the last H4 candle into a bearish rejection below the support
	// zone so the setup is a sell.
	h4 := mock.Candles["H4"]
	h4[19] = broker.Candle{
		Time: h4[19].Time,
		Open: 1.0793, High: 1.0812, Low: 1.0789, Close: 1.0790,
		Complete: true,
	}
	e := newTestEngine(t, mock, testStream())

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionOrderPlaced {
		t.Fatalf("action = %s (%s %s), want order_placed", result.Action, result.Reason, result.Error)
	}
	if order := mock.PlacedOrders[0]; order.Units >= 0 {
		t.Errorf("units = %d, want negative for a sell", order.Units)
	}
}

func TestRunOnceNoSignal(t *testing.T) {
	mock := broker.NewMockClient()
	seedQuietMarket(mock)
	e := newTestEngine(t, mock, testStream())

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionSkipped || result.Reason != ReasonNoSignal {
		t.Errorf("result = %s/%s, want skipped/%s", result.Action, result.Reason, ReasonNoSignal)
	}
	if mock.OrderCount() != 0 {
		t.Errorf("orders = %d, want 0", mock.OrderCount())
	}
}

func TestRunOnceBreakerBlocksCycle(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	e := newTestEngine(t, mock, testStream())
	e.Tracker().Update(8900) // 11% down from the 10000 peak

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionHalted || result.Reason != ReasonBreaker {
		t.Errorf("result = %s/%s, want halted/%s", result.Action, result.Reason, ReasonBreaker)
	}
	if mock.CandleCalls != 0 || mock.OrderCount() != 0 {
		t.Errorf("breaker must block all market activity: %d candle calls, %d orders",
			mock.CandleCalls, mock.OrderCount())
	}
}

func TestRunOnceBreakerTripsOnEquityRefresh(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	e := newTestEngine(t, mock, testStream())
	// Equity collapses between initialization and the cycle's refresh.
	mock.SetEquity(8900)

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionHalted || result.Reason != ReasonBreaker {
		t.Errorf("result = %s/%s, want halted/%s", result.Action, result.Reason, ReasonBreaker)
	}
	if mock.OrderCount() != 0 {
		t.Errorf("orders = %d, want 0 after the refresh tripped the breaker", mock.OrderCount())
	}
	if !e.Tracker().CircuitBreakerActive() {
		t.Error("tracker should report the breaker active")
	}
}

func TestRunOnceBreakerReleasesOnRecovery(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	e := newTestEngine(t, mock, testStream())
	e.Tracker().Update(8900)

	// Equity recovered above the threshold line before this cycle; the
	// breaker gate still sees the stale tracker and halts, so recovery
	// lands on the following cycle.
	if result := e.RunOnce(context.Background(), inSession); result.Action != ActionHalted {
		t.Fatalf("action = %s, want halted on stale tracker", result.Action)
	}

	e.Tracker().Update(9600) // 4% drawdown
	result := e.RunOnce(context.Background(), inSession)
	if result.Action != ActionOrderPlaced {
		t.Errorf("action = %s (%s %s), want order_placed after recovery", result.Action, result.Reason, result.Error)
	}
}

func TestRunOncePositionCapSkips(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	mock.Positions = []broker.Position{{Instrument: "EUR_USD", LongUnits: 1000}}
	e := newTestEngine(t, mock, testStream()) // max 1 concurrent position

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionSkipped || result.Reason != ReasonMaxPositions {
		t.Errorf("result = %s/%s, want skipped/%s", result.Action, result.Reason, ReasonMaxPositions)
	}
	if mock.OrderCount() != 0 {
		t.Errorf("orders = %d, want 0 at the cap", mock.OrderCount())
	}
}

func TestRunOncePositionCapIgnoresOtherInstruments(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	mock.Positions = []broker.Position{{Instrument: "GBP_USD", LongUnits: 1000}}
	e := newTestEngine(t, mock, testStream())

	if result := e.RunOnce(context.Background(), inSession); result.Action != ActionOrderPlaced {
		t.Errorf("action = %s, want order_placed; other instruments do not count", result.Action)
	}
}

func TestRunOncePositionCheckFailsOpen(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	mock.PositionsErr = errors.New("position endpoint down")
	e := newTestEngine(t, mock, testStream())

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionOrderPlaced {
		t.Errorf("action = %s (%s %s), want order_placed when the cap check fails open",
			result.Action, result.Reason, result.Error)
	}
}

func TestRunOnceBrokerErrorIsReported(t *testing.T) {
	mock := broker.NewMockClient()
	mock.CandlesErr = errors.New("gateway timeout")
	e := newTestEngine(t, mock, testStream())

	result := e.RunOnce(context.Background(), inSession)

	if result.Action != ActionError {
		t.Errorf("action = %s, want error", result.Action)
	}
	if result.Error == "" {
		t.Error("error result should carry the failure message")
	}
}

func TestInitializeDegradesWithoutAccount(t *testing.T) {
	mock := broker.NewMockClient()
	seedSignalMarket(mock)
	mock.SummaryErr = errors.New("account endpoint down")

	strat, _ := strategy.Get("sr_rejection")
	e := NewStreamEngine(testStream(), strat, mock, testRisk, events.NewEventBus(), logging.Nop())
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize should degrade, not fail: %v", err)
	}
	if e.Tracker().CircuitBreakerActive() {
		t.Error("zero-equity tracker must not start with the breaker tripped")
	}

	// First successful cycle refresh seeds real equity.
	mock.SummaryErr = nil
	result := e.RunOnce(context.Background(), inSession)
	if result.Action != ActionOrderPlaced {
		t.Errorf("action = %s (%s %s), want order_placed once equity is seen",
			result.Action, result.Reason, result.Error)
	}
	if e.Tracker().PeakEquity() != 10000 {
		t.Errorf("peak = %v, want 10000 after the first refresh", e.Tracker().PeakEquity())
	}
}

func TestRunStopsAtMaxCycles(t *testing.T) {
	mock := broker.NewMockClient()
	seedQuietMarket(mock)
	cfg := testStream()
	cfg.SessionStartUTC = 0
	cfg.SessionEndUTC = 24
	cfg.PollIntervalSeconds = 1
	e := newTestEngine(t, mock, cfg)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), 2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop at maxCycles")
	}
	if e.CycleCount() != 2 {
		t.Errorf("cycle count = %d, want 2", e.CycleCount())
	}
	if e.Running() {
		t.Error("Running() should be false after Run returns")
	}
	last := e.LastResult()
	if last == nil || last.Reason != ReasonNoSignal {
		t.Errorf("last result = %+v, want a no_signal skip", last)
	}
}

func TestStopInterruptsSleep(t *testing.T) {
	mock := broker.NewMockClient()
	seedQuietMarket(mock)
	cfg := testStream()
	cfg.SessionStartUTC = 0
	cfg.SessionEndUTC = 24
	cfg.PollIntervalSeconds = 300
	e := newTestEngine(t, mock, cfg)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), 0)
		close(done)
	}()

	// Let the first cycle complete, then stop during the long sleep.
	deadline := time.After(5 * time.Second)
	for e.CycleCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	e.Stop()
	e.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not interrupt the sleep")
	}
}

func TestUpdateConfigHotSwap(t *testing.T) {
	mock := broker.NewMockClient()
	seedQuietMarket(mock)
	e := newTestEngine(t, mock, testStream())

	updated := testStream()
	updated.RiskPerTradePct = 2.5
	updated.PollIntervalSeconds = 60
	if err := e.UpdateConfig(updated); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if got := e.Config().RiskPerTradePct; got != 2.5 {
		t.Errorf("risk pct = %v, want 2.5", got)
	}

	bad := testStream()
	bad.MaxConcurrentPositions = 0
	if err := e.UpdateConfig(bad); err == nil {
		t.Error("invalid config should be rejected")
	}
	if got := e.Config().RiskPerTradePct; got != 2.5 {
		t.Errorf("rejected update must not change config, risk pct = %v", got)
	}
}
