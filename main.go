package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/api"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/engine"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/logging"
	"oanda-trading-bot/internal/status"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Str("environment", cfg.OandaConfig.Environment).Msg("Starting trading bot")

	eventBus := events.NewEventBus()

	// Optional Postgres trade record. The bot trades without it.
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(cfg.DatabaseConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		cancel()

		repo = database.NewRepository(db)
		database.NewRecorder(repo, eventBus, logging.Component(logger, "recorder"))
		logger.Info().Str("database", cfg.DatabaseConfig.Database).Msg("Trade record enabled")
	}

	oanda := broker.NewClient(cfg.OandaConfig, logging.Component(logger, "broker"))

	streams, err := config.LoadStreams(cfg.StreamsFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.StreamsFile).Msg("Failed to load stream configs")
	}

	fleet := engine.NewFleetManager(oanda, cfg.RiskConfig, eventBus, logging.Component(logger, "engine"))
	if err := fleet.BuildEngines(streams); err != nil {
		logger.Fatal().Err(err).Msg("Failed to build stream engines")
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := fleet.InitializeAll(initCtx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("Failed to initialize stream engines")
	}
	cancel()

	store := status.NewStore(fleet, eventBus, cfg.RedisConfig, logging.Component(logger, "status"))
	defer store.Close()

	runCtx, stopFleet := context.WithCancel(context.Background())
	defer stopFleet()
	go fleet.RunAll(runCtx, 0)
	logger.Info().Int("streams", len(fleet.Names())).Msg("Fleet running")

	server := api.NewServer(cfg.ServerConfig, cfg.StreamsFile, fleet, store, oanda, repo, eventBus, logging.Component(logger, "api"))
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	fleet.StopAll()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}

	logger.Info().Msg("Shutdown complete")
}
