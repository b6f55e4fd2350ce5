package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/BullionBear/depthgate/internal/config"
	"github.com/BullionBear/depthgate/internal/depth"
	"github.com/BullionBear/depthgate/internal/feed"
	"github.com/BullionBear/depthgate/internal/orderbook"
	"github.com/BullionBear/depthgate/internal/registry"
)

// Server hosts the downstream REST and WebSocket surfaces.
type Server struct {
	cfg      *config.Config
	cache    *depth.Cache
	tracker  *depth.Tracker
	fetcher  *depth.Fetcher
	registry *registry.Registry
	feed     *feed.Manager
	books    *orderbook.Manager

	startedAt time.Time
	engine    *gin.Engine
	httpSrv   *http.Server
}

// NewServer wires the endpoint layer over the core components.
func NewServer(
	cfg *config.Config,
	cache *depth.Cache,
	tracker *depth.Tracker,
	fetcher *depth.Fetcher,
	reg *registry.Registry,
	feedManager *feed.Manager,
	books *orderbook.Manager,
) *Server {
	if !cfg.Server.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		cache:     cache,
		tracker:   tracker,
		fetcher:   fetcher,
		registry:  reg,
		feed:      feedManager,
		books:     books,
		startedAt: time.Now(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(s.corsConfig()))

	engine.GET("/health", s.handleHealth)
	engine.GET("/api/depth/:symbol", s.handleDepth)
	engine.GET("/ws", s.handleWS)

	s.engine = engine
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}
	return s
}

// corsConfig builds the boundary contract: credentialed requests from the
// configured origins, or from anywhere in development ("*" entry).
func (s *Server) corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowCredentials = true
	c.AllowMethods = []string{"GET", "OPTIONS"}

	if s.allowAnyOrigin() {
		// Echo the caller's origin instead of "*" so credentialed requests
		// still pass the browser's CORS check.
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOrigins = s.cfg.Server.AllowedOrigins
	return c
}

func (s *Server) allowAnyOrigin() bool {
	for _, origin := range s.cfg.Server.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return len(s.cfg.Server.AllowedOrigins) == 0
}

func (s *Server) originAllowed(origin string) bool {
	if s.allowAnyOrigin() || origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new clients and drains within the deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Uptime returns the time since the server was built.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startedAt)
}
