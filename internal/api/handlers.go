package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/database"
)

func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "disabled"
	if s.repo != nil {
		dbStatus = "up"
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			dbStatus = "down"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"database":   dbStatus,
		"ws_clients": s.wsHub.ClientCount(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleListStreams(c *gin.Context) {
	s.streamsMu.Lock()
	streams, err := config.LoadStreams(s.streamsFile)
	s.streamsMu.Unlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

// handleUpdateStream hot-swaps a stream's settings and persists them. A
// running engine applies the new config on its next cycle; settings for a
// stream that is not running (disabled, or added for the next restart) are
// persisted only.
func (s *Server) handleUpdateStream(c *gin.Context) {
	name := c.Param("name")

	var updated config.StreamConfig
	if err := c.ShouldBindJSON(&updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated.Name = name
	if err := updated.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied := false
	if _, err := s.fleet.Engine(name); err == nil {
		if err := s.fleet.UpdateStream(updated); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		applied = true
	}

	if err := s.persistStream(updated); err != nil {
		s.logger.Error().Err(err).Str("stream", name).Msg("Failed to persist stream config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": updated, "applied": applied})
}

func (s *Server) persistStream(updated config.StreamConfig) error {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()

	streams, err := config.LoadStreams(s.streamsFile)
	if err != nil {
		return err
	}
	replaced := false
	for i, stream := range streams {
		if stream.Name == updated.Name {
			streams[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		streams = append(streams, updated)
	}
	return config.SaveStreams(s.streamsFile, streams)
}

func (s *Server) handleStopStream(c *gin.Context) {
	name := c.Param("name")
	if err := s.fleet.StopStream(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info().Str("stream", name).Msg("Stream stop requested via API")
	c.JSON(http.StatusOK, gin.H{"stopped": name})
}

func (s *Server) handleStopAll(c *gin.Context) {
	s.logger.Info().Msg("Fleet stop requested via API")
	go s.fleet.StopAll()
	c.JSON(http.StatusAccepted, gin.H{"stopping": s.fleet.Names()})
}

func (s *Server) handleOpenTrades(c *gin.Context) {
	trades, err := s.broker.ListOpenTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleTradeHistory(c *gin.Context) {
	count := intQuery(c, "count", 50)
	trades, err := s.broker.ListClosedTrades(c.Request.Context(), count)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// handleOrderRecord serves the locally persisted order log.
func (s *Server) handleOrderRecord(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database disabled"})
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var (
		orders []*database.OrderRecord
		err    error
	)
	if stream := c.Query("stream"); stream != "" {
		orders, err = s.repo.ListOrdersByStream(c.Request.Context(), stream, limit)
	} else {
		orders, err = s.repo.ListOrders(c.Request.Context(), limit, offset)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
