// Package logging builds the process-wide zerolog logger. Components take
// sub-loggers with a "component" field; stream engines additionally carry a
// "stream" field so one stream's cycles can be filtered out of the firehose.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"oanda-trading-bot/config"
)

// New builds the root logger from configuration.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Stream returns a child logger tagged for one trading stream.
func Stream(logger zerolog.Logger, component, stream string) zerolog.Logger {
	return logger.With().Str("component", component).Str("stream", stream).Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
