package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// StreamConfig is the configuration for a single trading stream. Values are
// immutable once constructed: hot-reload builds a new StreamConfig and swaps
// the engine's pointer wholesale, so a running cycle never observes a
// half-updated config.
type StreamConfig struct {
	Name                   string   `json:"name"`
	Instrument             string   `json:"instrument"`
	Strategy               string   `json:"strategy"`
	Timeframes             []string `json:"timeframes"`
	PollIntervalSeconds    int      `json:"poll_interval_seconds"`
	RiskPerTradePct        float64  `json:"risk_per_trade_pct"`
	MaxConcurrentPositions int      `json:"max_concurrent_positions"`
	SessionStartUTC        int      `json:"session_start_utc"` // inclusive
	SessionEndUTC          int      `json:"session_end_utc"`   // exclusive
	Enabled                bool     `json:"enabled"`
	RRRatio                float64  `json:"rr_ratio,omitempty"` // 0 = strategy default
}

// DefaultStream returns the stream synthesised when no streams file exists,
// mirroring the single-stream setup the engine originally shipped with.
func DefaultStream() StreamConfig {
	return StreamConfig{
		Name:                   "default",
		Instrument:             "EUR_USD",
		Strategy:               "sr_rejection",
		Timeframes:             []string{"D", "H4"},
		PollIntervalSeconds:    300,
		RiskPerTradePct:        1.0,
		MaxConcurrentPositions: 1,
		SessionStartUTC:        7,
		SessionEndUTC:          21,
		Enabled:                true,
	}
}

// Validate checks the invariants a stream must satisfy before it is built
// into an engine or swapped into a running one.
func (s StreamConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("stream name must not be empty")
	}
	if s.Instrument == "" {
		return fmt.Errorf("stream %q: instrument must not be empty", s.Name)
	}
	if s.Strategy == "" {
		return fmt.Errorf("stream %q: strategy must not be empty", s.Name)
	}
	if s.SessionStartUTC < 0 || s.SessionStartUTC > 23 {
		return fmt.Errorf("stream %q: session_start_utc must be in [0, 23], got %d", s.Name, s.SessionStartUTC)
	}
	if s.SessionEndUTC < 1 || s.SessionEndUTC > 24 {
		return fmt.Errorf("stream %q: session_end_utc must be in [1, 24], got %d", s.Name, s.SessionEndUTC)
	}
	if s.MaxConcurrentPositions < 1 {
		return fmt.Errorf("stream %q: max_concurrent_positions must be >= 1, got %d", s.Name, s.MaxConcurrentPositions)
	}
	if s.PollIntervalSeconds < 1 {
		return fmt.Errorf("stream %q: poll_interval_seconds must be >= 1, got %d", s.Name, s.PollIntervalSeconds)
	}
	if s.RiskPerTradePct <= 0 {
		return fmt.Errorf("stream %q: risk_per_trade_pct must be positive, got %g", s.Name, s.RiskPerTradePct)
	}
	if s.RRRatio < 0 {
		return fmt.Errorf("stream %q: rr_ratio must not be negative, got %g", s.Name, s.RRRatio)
	}
	return nil
}

type streamsFile struct {
	Streams []StreamConfig `json:"streams"`
}

// LoadStreams reads the stream list from path. A missing file is not an
// error: it yields the single default stream so the bot can run without
// any setup.
func LoadStreams(path string) ([]StreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []StreamConfig{DefaultStream()}, nil
		}
		return nil, fmt.Errorf("error reading streams file: %w", err)
	}

	var file streamsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing streams file: %w", err)
	}

	seen := make(map[string]bool, len(file.Streams))
	for _, s := range file.Streams {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate stream name %q", s.Name)
		}
		seen[s.Name] = true
	}

	return file.Streams, nil
}

// SaveStreams persists the stream list back to path. Called by the settings
// API after a hot-reload so updated settings survive a restart.
func SaveStreams(path string, streams []StreamConfig) error {
	data, err := json.MarshalIndent(streamsFile{Streams: streams}, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding streams: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing streams file: %w", err)
	}
	return nil
}
