package gateway

import (
	"context"
	"time"

	"github.com/BullionBear/depthgate/internal/config"
	"github.com/BullionBear/depthgate/internal/depth"
	"github.com/BullionBear/depthgate/internal/feed"
	"github.com/BullionBear/depthgate/internal/orderbook"
	"github.com/BullionBear/depthgate/internal/registry"
	"github.com/BullionBear/depthgate/internal/server"
	"github.com/BullionBear/depthgate/internal/tap"
	"github.com/BullionBear/depthgate/pkg/exchange/binancefuture"
	"github.com/BullionBear/depthgate/pkg/logger"
)

// Gateway is the composition root: it owns every component and the upstream
// frame routing between them.
type Gateway struct {
	cfg *config.Config

	cache     *depth.Cache
	tracker   *depth.Tracker
	fetcher   *depth.Fetcher
	books     *orderbook.Manager
	scheduler *orderbook.Scheduler
	feed      *feed.Manager
	registry  *registry.Registry
	server    *server.Server
	tap       *tap.Publisher
}

// New builds a gateway from configuration. The NATS tap is only created when
// its config section is present.
func New(cfg *config.Config) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	limits := cfg.Limits
	g.cache = depth.NewCache(limits.CacheTTL())
	g.tracker = depth.NewTracker(limits.RateLimitInterval(), limits.MinBackoff(), limits.MaxBackoff())

	restClient := binancefuture.NewClient(&binancefuture.Config{
		BaseURL: cfg.Binance.BaseURL,
		Timeout: 10 * time.Second,
	})
	g.fetcher = depth.NewFetcher(restClient, g.cache, g.tracker)

	g.books = orderbook.NewManager(orderbook.EngineOptions{
		MaxBuffer:         limits.MaxBuffer,
		MinBackoff:        limits.MinBackoff(),
		MaxBackoff:        limits.MaxBackoff(),
		SeedFromFirstDiff: true,
	}, limits.BookGrace())
	g.scheduler = orderbook.NewScheduler(g.books, g.fetcher, binancefuture.MaxDepthLimit)

	g.feed = feed.NewManager(cfg.Binance.WSBaseURL, limits.MaxReconnectDelay(), g.routeFrame)
	g.registry = registry.NewRegistry(g.recomputeSubscriptions)

	if cfg.NATS != nil {
		publisher, err := tap.NewPublisher(cfg.NATS)
		if err != nil {
			return nil, err
		}
		g.tap = publisher
	}

	g.server = server.NewServer(cfg, g.cache, g.tracker, g.fetcher, g.registry, g.feed, g.books)
	return g, nil
}

// Server returns the endpoint layer.
func (g *Gateway) Server() *server.Server {
	return g.server
}

// Registry returns the client registry.
func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// Run starts the background activities and blocks in the HTTP server until
// Shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	go g.feed.Run(ctx)
	go g.scheduler.Run(ctx)
	return g.server.Start()
}

// Shutdown stops intake and closes every client and the tap. The upstream
// connection closes when the context passed to Run is cancelled.
func (g *Gateway) Shutdown(ctx context.Context) {
	if err := g.server.Shutdown(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("http shutdown did not drain cleanly")
	}
	g.registry.CloseAll()
	if g.tap != nil {
		g.tap.Close()
	}
}

// recomputeSubscriptions pushes the current client union to the upstream
// manager and the book lifecycle.
func (g *Gateway) recomputeSubscriptions() {
	union := g.registry.Union()
	g.feed.SetSymbols(union)
	g.books.SetWanted(union, time.Now())
}

// routeFrame handles one raw upstream message: forward it downstream
// filtered by symbol, feed depth updates into the book engines, and mirror
// parsed events onto the tap.
func (g *Gateway) routeFrame(raw []byte) {
	symbol := ""
	symbolKnown := false
	eventType := ""
	var payload []byte

	frame, err := binancefuture.ParseCombinedStreamFrame(raw)
	if err == nil {
		payload = frame.Data
		if kind, kerr := binancefuture.ParseEventKind(frame.Data); kerr == nil && kind.Symbol != "" {
			symbol = kind.Symbol
			symbolKnown = true
			eventType = kind.EventType
		}
	}

	// Forward the upstream frame unchanged; malformed frames go to everyone.
	g.registry.Forward(raw, symbol, symbolKnown)

	if !symbolKnown {
		return
	}

	if eventType == binancefuture.WSEventDepthUpdate {
		if event, derr := binancefuture.ParseDepthEvent(payload); derr == nil {
			g.books.Ensure(symbol).ApplyDiff(event)
		}
	}

	if g.tap != nil && eventType != "" {
		g.tap.Publish(eventType, symbol, payload)
	}
}
