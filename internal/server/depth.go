package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BullionBear/depthgate/internal/depth"
	"github.com/BullionBear/depthgate/pkg/exchange/binancefuture"
)

// defaultDepthLimit applies when the limit query parameter is absent.
const defaultDepthLimit = 100

// Sources tagged on depth responses.
const (
	SourceBinance = "binance"
	SourceCache   = "cache"
)

// DepthResponse is the /api/depth payload.
type DepthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	CachedAt     int64      `json:"cachedAt"`
	Source       string     `json:"source"`
}

// DepthError is the 503 payload.
type DepthError struct {
	Error      string `json:"error"`
	Symbol     string `json:"symbol"`
	RetryAfter int64  `json:"retryAfter"`
}

func truncateLevels(levels [][]string, limit int) [][]string {
	if levels == nil {
		return [][]string{}
	}
	if len(levels) > limit {
		return levels[:limit]
	}
	return levels
}

func depthResponse(snap *depth.Snapshot, limit int, source string) DepthResponse {
	return DepthResponse{
		LastUpdateID: snap.LastUpdateID,
		Bids:         truncateLevels(snap.Bids, limit),
		Asks:         truncateLevels(snap.Asks, limit),
		CachedAt:     snap.CachedAt.UnixMilli(),
		Source:       source,
	}
}

// handleDepth serves a bounded depth snapshot: fresh-enough cache when the
// upstream is throttled, a live fetch otherwise, any cache as a failure
// fallback, and 503 only when there is nothing at all to serve.
func (s *Server) handleDepth(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}

	limit := defaultDepthLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > binancefuture.MaxDepthLimit {
		limit = binancefuture.MaxDepthLimit
	}

	now := time.Now()
	if s.tracker.ShouldThrottle(symbol, now) {
		if snap, age, ok := s.cache.Get(symbol); ok && s.cache.Serveable(age) {
			c.JSON(http.StatusOK, depthResponse(snap, limit, SourceCache))
			return
		}
	}

	// Always fetch at least the default depth so the cached snapshot stays
	// useful for later, larger requests.
	fetchLimit := limit
	if fetchLimit < defaultDepthLimit {
		fetchLimit = defaultDepthLimit
	}

	snap, err := s.fetcher.Fetch(c.Request.Context(), symbol, fetchLimit)
	if err == nil {
		c.JSON(http.StatusOK, depthResponse(snap, limit, SourceBinance))
		return
	}

	if snap, _, ok := s.cache.Get(symbol); ok {
		c.JSON(http.StatusOK, depthResponse(snap, limit, SourceCache))
		return
	}

	c.JSON(http.StatusServiceUnavailable, DepthError{
		Error:      "depth temporarily unavailable",
		Symbol:     symbol,
		RetryAfter: s.tracker.Backoff(symbol).Milliseconds(),
	})
}
