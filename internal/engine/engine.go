package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/risk"
	"oanda-trading-bot/internal/strategy"
)

// sleepStep is the granularity at which the run loop re-checks stop
// signals and the live poll interval while waiting between cycles.
const sleepStep = time.Second

// StreamEngine drives one trading stream: a single instrument, a single
// strategy, its own drawdown tracker and its own cadence. Config updates
// land through an atomic pointer so a running loop picks them up on the
// next read without locking.
type StreamEngine struct {
	name    string
	cfg     atomic.Pointer[config.StreamConfig]
	strat   strategy.Strategy
	broker  broker.Broker
	riskCfg config.RiskConfig
	tracker *risk.DrawdownTracker
	bus     *events.EventBus
	logger  zerolog.Logger

	running    atomic.Bool
	cycleCount atomic.Int64
	stopCh     chan struct{}
	stopOnce   sync.Once

	mu         sync.RWMutex
	lastResult *CycleResult
}

// NewStreamEngine wires an engine for one stream. Call Initialize before
// Run so the drawdown tracker is seeded from live equity.
func NewStreamEngine(cfg config.StreamConfig, strat strategy.Strategy, b broker.Broker, riskCfg config.RiskConfig, bus *events.EventBus, logger zerolog.Logger) *StreamEngine {
	e := &StreamEngine{
		name:    cfg.Name,
		strat:   strat,
		broker:  b,
		riskCfg: riskCfg,
		bus:     bus,
		logger:  logger.With().Str("stream", cfg.Name).Logger(),
		stopCh:  make(chan struct{}),
	}
	e.cfg.Store(&cfg)
	return e
}

// Initialize seeds the drawdown tracker from the current account equity.
// If the account is unreachable the engine still comes up, with a
// zero-equity tracker that the first successful refresh will correct.
func (e *StreamEngine) Initialize(ctx context.Context) error {
	summary, err := e.broker.GetAccountSummary(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Account summary unavailable, starting with zero-equity tracker")
		e.tracker = risk.NewZeroTracker(e.riskCfg.MaxDrawdownPct)
		return nil
	}

	tracker, err := risk.NewDrawdownTracker(summary.Equity, e.riskCfg.MaxDrawdownPct)
	if err != nil {
		e.logger.Warn().Err(err).Float64("equity", summary.Equity).Msg("Bad initial equity, starting with zero-equity tracker")
		e.tracker = risk.NewZeroTracker(e.riskCfg.MaxDrawdownPct)
		return nil
	}
	e.tracker = tracker
	e.logger.Info().Float64("equity", summary.Equity).Msg("Drawdown tracker initialized")
	return nil
}

// Config returns the current stream configuration.
func (e *StreamEngine) Config() config.StreamConfig {
	return *e.cfg.Load()
}

// UpdateConfig swaps the stream configuration. A running loop applies it
// from the next cycle (and the next sleep step for the poll interval).
func (e *StreamEngine) UpdateConfig(cfg config.StreamConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg.Store(&cfg)
	e.logger.Info().Int("poll_interval_s", cfg.PollIntervalSeconds).Float64("risk_pct", cfg.RiskPerTradePct).Msg("Stream config updated")
	e.bus.PublishStreamLifecycle(events.EventStreamUpdated, e.name, cfg.Instrument, cfg.Strategy)
	return nil
}

// Name returns the stream name.
func (e *StreamEngine) Name() string { return e.name }

// Running reports whether the run loop is active.
func (e *StreamEngine) Running() bool { return e.running.Load() }

// CycleCount returns how many cycles have completed.
func (e *StreamEngine) CycleCount() int { return int(e.cycleCount.Load()) }

// Tracker exposes the drawdown tracker for status reporting.
func (e *StreamEngine) Tracker() *risk.DrawdownTracker { return e.tracker }

// LastResult returns the most recent cycle result, or nil before the
// first cycle.
func (e *StreamEngine) LastResult() *CycleResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastResult == nil {
		return nil
	}
	out := *e.lastResult
	return &out
}

// LastInsight returns the strategy's most recent analysis snapshot.
func (e *StreamEngine) LastInsight() map[string]any { return e.strat.LastInsight() }

// Stop signals the run loop to exit. Safe to call any number of times,
// from any goroutine, before or after Run returns.
func (e *StreamEngine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// RunOnce executes one full trading cycle at the given wall-clock time and
// reports what happened. Failures abort the cycle but never the stream;
// the caller keeps looping.
func (e *StreamEngine) RunOnce(ctx context.Context, now time.Time) CycleResult {
	cfg := *e.cfg.Load()
	cycle := int(e.cycleCount.Load()) + 1
	result := CycleResult{Stream: e.name, Cycle: cycle, Time: now.UTC(), Instrument: cfg.Instrument}

	// Drawdown breaker first. Nothing trades while it is active.
	if e.tracker.CircuitBreakerActive() {
		result.Action = ActionHalted
		result.Reason = ReasonBreaker
		e.logger.Warn().Float64("drawdown_pct", e.tracker.DrawdownPct()).Msg("Circuit breaker active, trading halted")
		return result
	}

	if !strategy.InSession(now.UTC().Hour(), cfg.SessionStartUTC, cfg.SessionEndUTC) {
		result.Action = ActionSkipped
		result.Reason = ReasonSession
		return result
	}

	setup, err := e.strat.Evaluate(ctx, e.broker, cfg)
	if err != nil {
		e.logger.Error().Err(err).Msg("Strategy evaluation failed")
		e.bus.PublishError(e.name, "strategy", err)
		result.Action = ActionError
		result.Error = err.Error()
		return result
	}
	if setup == nil {
		result.Action = ActionSkipped
		result.Reason = ReasonNoSignal
		return result
	}

	e.logger.Info().
		Str("direction", setup.Signal.Direction).
		Float64("entry", setup.Signal.EntryPrice).
		Str("reason", setup.Signal.Reason).
		Msg("Signal generated")
	e.bus.PublishSignal(e.name, cfg.Instrument, setup.Signal.Direction, setup.Signal.Reason, setup.Signal.EntryPrice)

	// Fresh equity before sizing. The breaker is re-checked because this
	// update can be the one that trips it.
	summary, err := e.broker.GetAccountSummary(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Account refresh failed")
		e.bus.PublishError(e.name, "account", err)
		result.Action = ActionError
		result.Error = err.Error()
		return result
	}
	wasActive := e.tracker.CircuitBreakerActive()
	e.tracker.Update(summary.Equity)
	e.bus.PublishEquityUpdate(e.name, summary.Equity, summary.Balance)
	if active := e.tracker.CircuitBreakerActive(); active != wasActive {
		e.bus.PublishBreaker(e.name, active, e.tracker.DrawdownPct(), e.tracker.PeakEquity(), e.tracker.CurrentEquity())
	}
	if e.tracker.CircuitBreakerActive() {
		result.Action = ActionHalted
		result.Reason = ReasonBreaker
		e.logger.Warn().Float64("drawdown_pct", e.tracker.DrawdownPct()).Msg("Circuit breaker tripped on equity refresh")
		return result
	}

	stopPips := math.Abs(setup.Signal.EntryPrice-setup.StopPrice) / e.riskCfg.PipValue
	rawUnits, err := risk.CalculateUnits(summary.Equity, cfg.RiskPerTradePct, stopPips, e.riskCfg.PipValue)
	if err != nil {
		e.logger.Error().Err(err).Msg("Position sizing failed")
		result.Action = ActionError
		result.Error = err.Error()
		return result
	}
	units := int(math.Floor(rawUnits))
	if units < 1 {
		units = 1
	}
	if setup.Signal.Direction == "sell" {
		units = -units
	}

	// Position cap. A failed listing fails open: a missed trade is worse
	// than a rare extra position still protected by its own stop.
	positions, err := e.broker.ListOpenPositions(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Position listing failed, proceeding without cap check")
	} else {
		open := 0
		for _, p := range positions {
			if p.Instrument == cfg.Instrument {
				open++
			}
		}
		if open >= cfg.MaxConcurrentPositions {
			result.Action = ActionSkipped
			result.Reason = ReasonMaxPositions
			e.logger.Info().Int("open", open).Int("max", cfg.MaxConcurrentPositions).Msg("Position cap reached, skipping signal")
			return result
		}
	}

	order := broker.OrderRequest{
		Instrument:      cfg.Instrument,
		Units:           units,
		StopLossPrice:   setup.StopPrice,
		TakeProfitPrice: setup.TargetPrice,
	}
	resp, err := e.broker.PlaceOrder(ctx, order)
	if err != nil {
		e.logger.Error().Err(err).Msg("Order placement failed")
		e.bus.PublishError(e.name, "order", err)
		result.Action = ActionError
		result.Error = err.Error()
		return result
	}

	result.Action = ActionOrderPlaced
	result.OrderID = resp.OrderID
	result.Direction = setup.Signal.Direction
	result.Units = units
	result.EntryPrice = setup.Signal.EntryPrice
	result.StopPrice = setup.StopPrice
	result.TargetPrice = setup.TargetPrice

	e.logger.Info().
		Str("order_id", resp.OrderID).
		Int("units", units).
		Float64("stop", setup.StopPrice).
		Float64("target", setup.TargetPrice).
		Str("level_source", setup.LevelSource).
		Msg("Order placed")
	e.bus.PublishOrderPlaced(e.name, resp.OrderID, cfg.Instrument, setup.Signal.Direction, float64(units), setup.Signal.EntryPrice, setup.StopPrice, setup.TargetPrice)

	return result
}

// Run executes cycles until Stop is called, the context is cancelled, or
// maxCycles complete (0 means run forever). The inter-cycle sleep wakes
// every second so stop requests and poll-interval changes apply promptly.
func (e *StreamEngine) Run(ctx context.Context, maxCycles int) {
	e.running.Store(true)
	defer e.running.Store(false)

	cfg := *e.cfg.Load()
	e.logger.Info().Str("instrument", cfg.Instrument).Str("strategy", cfg.Strategy).Msg("Stream started")
	e.bus.PublishStreamLifecycle(events.EventStreamStarted, e.name, cfg.Instrument, cfg.Strategy)
	defer func() {
		e.logger.Info().Msg("Stream stopped")
		e.bus.PublishStreamLifecycle(events.EventStreamStopped, e.name, cfg.Instrument, cfg.Strategy)
	}()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		result := e.RunOnce(ctx, time.Now())
		e.cycleCount.Add(1)
		e.setLastResult(result)
		e.bus.PublishCycleCompleted(e.name, string(result.Action), result.Reason, result.Cycle)

		if maxCycles > 0 && int(e.cycleCount.Load()) >= maxCycles {
			return
		}

		if !e.sleepInterruptible(ctx) {
			return
		}
	}
}

// sleepInterruptible waits out the poll interval in one-second steps,
// re-reading the live config each step. Returns false when stopped.
func (e *StreamEngine) sleepInterruptible(ctx context.Context) bool {
	slept := time.Duration(0)
	for {
		interval := time.Duration(e.cfg.Load().PollIntervalSeconds) * time.Second
		if slept >= interval {
			return true
		}
		step := sleepStep
		if remaining := interval - slept; remaining < step {
			step = remaining
		}
		select {
		case <-e.stopCh:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(step):
			slept += step
		}
	}
}

func (e *StreamEngine) setLastResult(result CycleResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastResult = &result
}
