package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration, loaded once at startup.
// Per-stream settings live in StreamConfig and are hot-reloadable; nothing
// in here changes while the process runs.
type Config struct {
	OandaConfig    OandaConfig    `json:"oanda"`
	RiskConfig     RiskConfig     `json:"risk"`
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	StreamsFile    string         `json:"streams_file"`
}

// OandaConfig holds OANDA v20 API connection settings
type OandaConfig struct {
	AccountID   string        `json:"account_id"`
	APIToken    string        `json:"api_token"`
	Environment string        `json:"environment"` // "practice" or "live"
	Timeout     time.Duration `json:"timeout"`
	RetryDelay  time.Duration `json:"retry_delay"` // base delay for the first retry
}

// BaseURL returns the OANDA v20 REST endpoint for the configured environment.
func (c OandaConfig) BaseURL() string {
	if c.Environment == "live" {
		return "https://api-fxtrade.oanda.com"
	}
	return "https://api-fxpractice.oanda.com"
}

// RiskConfig holds fleet-wide risk defaults
type RiskConfig struct {
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // circuit breaker threshold
	PipValue       float64 `json:"pip_value"`        // price value of one pip
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Port            int  `json:"port"`
	ProductionMode  bool `json:"production_mode"`
	ShutdownTimeout int  `json:"shutdown_timeout"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for the status cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LoggingConfig controls the zerolog root logger
type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // pretty console output instead of JSON
}

// Load reads configuration from environment variables. The three OANDA
// variables are required; everything else has a working default.
func Load() (*Config, error) {
	for _, key := range []string{"OANDA_ACCOUNT_ID", "OANDA_API_TOKEN"} {
		if os.Getenv(key) == "" {
			return nil, fmt.Errorf("missing required environment variable: %s", key)
		}
	}

	cfg := &Config{
		OandaConfig: OandaConfig{
			AccountID:   os.Getenv("OANDA_ACCOUNT_ID"),
			APIToken:    os.Getenv("OANDA_API_TOKEN"),
			Environment: getEnvOrDefault("OANDA_ENVIRONMENT", "practice"),
			Timeout:     getEnvDurationOrDefault("OANDA_TIMEOUT", 30*time.Second),
			RetryDelay:  getEnvDurationOrDefault("OANDA_RETRY_DELAY", time.Second),
		},
		RiskConfig: RiskConfig{
			MaxDrawdownPct: getEnvFloatOrDefault("MAX_DRAWDOWN_PCT", 10.0),
			PipValue:       getEnvFloatOrDefault("PIP_VALUE", 0.0001),
		},
		ServerConfig: ServerConfig{
			Port:            getEnvIntOrDefault("WEB_PORT", 8080),
			ProductionMode:  getEnvOrDefault("GIN_MODE", "") == "release",
			ShutdownTimeout: getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10),
		},
		DatabaseConfig: DatabaseConfig{
			Enabled:  getEnvOrDefault("DB_ENABLED", "false") == "true",
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Database: getEnvOrDefault("DB_NAME", "oanda_bot"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		RedisConfig: RedisConfig{
			Enabled:  getEnvOrDefault("REDIS_ENABLED", "false") == "true",
			Address:  getEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		LoggingConfig: LoggingConfig{
			Level:   getEnvOrDefault("LOG_LEVEL", "info"),
			Console: getEnvOrDefault("LOG_CONSOLE", "false") == "true",
		},
		StreamsFile: getEnvOrDefault("STREAMS_FILE", "streams.json"),
	}

	if cfg.OandaConfig.Environment != "practice" && cfg.OandaConfig.Environment != "live" {
		return nil, fmt.Errorf("OANDA_ENVIRONMENT must be 'practice' or 'live', got %q", cfg.OandaConfig.Environment)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
