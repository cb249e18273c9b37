package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/strategy"
)

// StreamStatus is the per-stream snapshot served by the status API.
type StreamStatus struct {
	Name          string         `json:"name"`
	Instrument    string         `json:"instrument"`
	Strategy      string         `json:"strategy"`
	Running       bool           `json:"running"`
	CycleCount    int            `json:"cycle_count"`
	BreakerActive bool           `json:"breaker_active"`
	DrawdownPct   float64        `json:"drawdown_pct"`
	PeakEquity    float64        `json:"peak_equity"`
	CurrentEquity float64        `json:"current_equity"`
	LastResult    *CycleResult   `json:"last_result,omitempty"`
	Insight       map[string]any `json:"insight,omitempty"`
	CrashError    string         `json:"crash_error,omitempty"`
}

// FleetManager owns the full set of stream engines: building them from
// config, running each in its own goroutine, stopping them individually or
// together, and aggregating status. One broker client and one event bus are
// shared across the fleet.
type FleetManager struct {
	broker  broker.Broker
	riskCfg config.RiskConfig
	bus     *events.EventBus
	logger  zerolog.Logger

	mu      sync.RWMutex
	engines map[string]*StreamEngine
	crashes map[string]error

	wg sync.WaitGroup
}

// NewFleetManager creates an empty fleet.
func NewFleetManager(b broker.Broker, riskCfg config.RiskConfig, bus *events.EventBus, logger zerolog.Logger) *FleetManager {
	return &FleetManager{
		broker:  b,
		riskCfg: riskCfg,
		bus:     bus,
		logger:  logger,
		engines: make(map[string]*StreamEngine),
		crashes: make(map[string]error),
	}
}

// BuildEngines creates one engine per enabled stream. Disabled streams are
// skipped; an unknown strategy key or duplicate name fails the whole build
// so a bad config never half-starts the fleet.
func (m *FleetManager) BuildEngines(streams []config.StreamConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cfg := range streams {
		if !cfg.Enabled {
			m.logger.Info().Str("stream", cfg.Name).Msg("Stream disabled, skipping")
			continue
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, exists := m.engines[cfg.Name]; exists {
			return fmt.Errorf("duplicate stream name %q", cfg.Name)
		}
		strat, err := strategy.Get(cfg.Strategy)
		if err != nil {
			return fmt.Errorf("stream %q: %w", cfg.Name, err)
		}
		m.engines[cfg.Name] = NewStreamEngine(cfg, strat, m.broker, m.riskCfg, m.bus, m.logger)
	}
	return nil
}

// InitializeAll seeds every engine's drawdown tracker, sequentially so the
// startup log reads in order.
func (m *FleetManager) InitializeAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, engine := range m.engines {
		if err := engine.Initialize(ctx); err != nil {
			return fmt.Errorf("stream %q: %w", name, err)
		}
	}
	return nil
}

// RunAll launches every engine in its own goroutine and blocks until all
// of them have terminated. A panicking stream is captured and reported
// through status without touching its siblings. maxCycles limits each
// stream (0 = run until stopped).
func (m *FleetManager) RunAll(ctx context.Context, maxCycles int) {
	m.mu.RLock()
	for name, engine := range m.engines {
		m.wg.Add(1)
		go func(name string, engine *StreamEngine) {
			defer m.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("stream panic: %v", r)
					m.logger.Error().Str("stream", name).Err(err).Msg("Stream crashed")
					m.bus.PublishError(name, "engine", err)
					m.mu.Lock()
					m.crashes[name] = err
					m.mu.Unlock()
				}
			}()
			engine.Run(ctx, maxCycles)
		}(name, engine)
	}
	m.mu.RUnlock()

	m.wg.Wait()
}

// StopAll signals every engine to stop and waits for the loops to drain.
func (m *FleetManager) StopAll() {
	m.mu.RLock()
	for _, engine := range m.engines {
		engine.Stop()
	}
	m.mu.RUnlock()
	m.wg.Wait()
}

// StopStream stops a single stream, leaving the rest of the fleet running.
func (m *FleetManager) StopStream(name string) error {
	engine, err := m.engine(name)
	if err != nil {
		return err
	}
	engine.Stop()
	return nil
}

// UpdateStream hot-swaps the configuration of a running stream. The engine
// applies it on its next cycle.
func (m *FleetManager) UpdateStream(cfg config.StreamConfig) error {
	engine, err := m.engine(cfg.Name)
	if err != nil {
		return err
	}
	return engine.UpdateConfig(cfg)
}

// Engine returns the named engine.
func (m *FleetManager) Engine(name string) (*StreamEngine, error) {
	return m.engine(name)
}

// Names lists the streams the fleet was built with.
func (m *FleetManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	return names
}

// Status snapshots every stream for the API.
func (m *FleetManager) Status() map[string]StreamStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]StreamStatus, len(m.engines))
	for name, engine := range m.engines {
		cfg := engine.Config()
		status := StreamStatus{
			Name:       name,
			Instrument: cfg.Instrument,
			Strategy:   cfg.Strategy,
			Running:    engine.Running(),
			CycleCount: engine.CycleCount(),
			LastResult: engine.LastResult(),
			Insight:    engine.LastInsight(),
		}
		if tracker := engine.Tracker(); tracker != nil {
			status.BreakerActive = tracker.CircuitBreakerActive()
			status.DrawdownPct = tracker.DrawdownPct()
			status.PeakEquity = tracker.PeakEquity()
			status.CurrentEquity = tracker.CurrentEquity()
		}
		if err, crashed := m.crashes[name]; crashed {
			status.CrashError = err.Error()
		}
		out[name] = status
	}
	return out
}

func (m *FleetManager) engine(name string) (*StreamEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, ok := m.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown stream %q", name)
	}
	return engine, nil
}
