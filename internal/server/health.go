package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BullionBear/depthgate/internal/orderbook"
)

// HealthResponse is the /health payload.
type HealthResponse struct {
	OK             bool              `json:"ok"`
	UptimeMs       int64             `json:"uptime"`
	WSClients      int               `json:"wsClients"`
	BinanceWSState string            `json:"binanceWsState"`
	CacheSize      int               `json:"cacheSize"`
	ActiveSymbols  []string          `json:"activeSymbols"`
	Books          []orderbook.Stats `json:"books"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		OK:             true,
		UptimeMs:       s.Uptime().Milliseconds(),
		WSClients:      s.registry.Count(),
		BinanceWSState: s.feed.State().String(),
		CacheSize:      s.cache.Size(),
		ActiveSymbols:  s.books.Symbols(),
		Books:          s.books.Stats(),
	})
}
