// Package status aggregates fleet state for the API: per-stream snapshots,
// a rolling window of recent events, and an optional Redis mirror so an
// external dashboard can read bot status without hitting the bot itself.
package status

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/engine"
	"oanda-trading-bot/internal/events"
)

const (
	recentEventCap = 100
	redisKey       = "oanda_bot:status"
	redisTTL       = 5 * time.Minute
	redisTimeout   = 3 * time.Second
)

// Report is the full status payload served at /api/status.
type Report struct {
	StartedAt     time.Time                      `json:"started_at"`
	UptimeSeconds int64                          `json:"uptime_seconds"`
	Streams       map[string]engine.StreamStatus `json:"streams"`
	RecentEvents  []events.Event                 `json:"recent_events"`
}

// Store owns the status view of the running fleet. It listens on the event
// bus to keep a recent-events window and mirrors each fresh snapshot into
// Redis when configured. Redis being down never affects trading; writes
// just stop until it comes back.
type Store struct {
	fleet     *engine.FleetManager
	logger    zerolog.Logger
	startedAt time.Time

	mu     sync.RWMutex
	recent []events.Event

	redis *redis.Client
}

// NewStore builds the store and subscribes it to the bus. The Redis client
// is only created when enabled in config.
func NewStore(fleet *engine.FleetManager, bus *events.EventBus, redisCfg config.RedisConfig, logger zerolog.Logger) *Store {
	s := &Store{
		fleet:     fleet,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
	if redisCfg.Enabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:         redisCfg.Address,
			Password:     redisCfg.Password,
			DB:           redisCfg.DB,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  redisTimeout,
			WriteTimeout: redisTimeout,
		})
	}
	bus.SubscribeAll(s.record)
	return s
}

// Snapshot assembles the current report.
func (s *Store) Snapshot() Report {
	s.mu.RLock()
	recent := make([]events.Event, len(s.recent))
	copy(recent, s.recent)
	s.mu.RUnlock()

	now := time.Now().UTC()
	return Report{
		StartedAt:     s.startedAt,
		UptimeSeconds: int64(now.Sub(s.startedAt).Seconds()),
		Streams:       s.fleet.Status(),
		RecentEvents:  recent,
	}
}

// RecentEvents returns the rolling event window, newest last.
func (s *Store) RecentEvents() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Event, len(s.recent))
	copy(out, s.recent)
	return out
}

// Close releases the Redis client if one was created.
func (s *Store) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
}

// record is the bus subscriber: append to the window, then mirror the new
// snapshot out to Redis.
func (s *Store) record(event events.Event) {
	s.mu.Lock()
	s.recent = append(s.recent, event)
	if len(s.recent) > recentEventCap {
		s.recent = s.recent[len(s.recent)-recentEventCap:]
	}
	s.mu.Unlock()

	s.mirror()
}

func (s *Store) mirror() {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		s.logger.Debug().Err(err).Msg("Status snapshot marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := s.redis.Set(ctx, redisKey, data, redisTTL).Err(); err != nil {
		s.logger.Debug().Err(err).Msg("Status mirror to Redis failed")
	}
}
