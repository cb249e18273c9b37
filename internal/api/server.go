// Package api serves the operator surface: REST endpoints over the fleet,
// the trade record, and a WebSocket feed of live events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/engine"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/status"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	fleet      *engine.FleetManager
	store      *status.Store
	broker     broker.Broker
	repo       *database.Repository // nil when Postgres is disabled
	wsHub      *WSHub
	logger     zerolog.Logger

	streamsFile string
	streamsMu   sync.Mutex // serializes read-modify-write of the streams file
}

// NewServer creates the API server and wires the WebSocket hub onto the
// event bus. repo may be nil; the order-history endpoint then reports the
// database as disabled.
func NewServer(cfg config.ServerConfig, streamsFile string, fleet *engine.FleetManager, store *status.Store, b broker.Broker, repo *database.Repository, bus *events.EventBus, logger zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		fleet:       fleet,
		store:       store,
		broker:      b,
		repo:        repo,
		logger:      logger,
		streamsFile: streamsFile,
		wsHub:       NewWSHub(logger),
	}

	go server.wsHub.Run()
	bus.SubscribeAll(server.wsHub.BroadcastEvent)

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.wsHub.handleWebSocket)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/streams", s.handleListStreams)
		apiGroup.PUT("/streams/:name", s.handleUpdateStream)
		apiGroup.POST("/streams/:name/stop", s.handleStopStream)
		apiGroup.POST("/stop", s.handleStopAll)
		apiGroup.GET("/trades", s.handleOpenTrades)
		apiGroup.GET("/trades/history", s.handleTradeHistory)
		apiGroup.GET("/orders", s.handleOrderRecord)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
