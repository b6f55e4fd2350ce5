package binancefuture

// Base URLs
const (
	// Production endpoints
	BaseURLFutures = "https://fapi.binance.com"

	// Testnet endpoints
	BaseURLFuturesTestnet = "https://testnet.binancefuture.com"
)

// API Endpoints
const (
	// General endpoints
	EndpointServerTime = "/fapi/v1/time"
	EndpointPing       = "/fapi/v1/ping"

	// Market data endpoints
	EndpointOrderBook = "/fapi/v1/depth"
)

// MaxDepthLimit is the largest depth the upstream accepts on /fapi/v1/depth.
const MaxDepthLimit = 1000

// HTTP Methods
const (
	MethodGET = "GET"
)

// WebSocket URLs
const (
	// Production WebSocket endpoints
	WSBaseURL = "wss://fstream.binance.com"

	// Testnet WebSocket endpoints
	WSBaseURLTestnet = "wss://stream.binancefuture.com"
)

// WebSocket Stream Names
const (
	WSStreamDepth      = "depth"
	WSStreamAggTrade   = "aggTrade"
	WSStreamMiniTicker = "miniTicker"
)

// WebSocket Event Types carried in the "e" field of stream payloads.
const (
	WSEventDepthUpdate = "depthUpdate"
	WSEventAggTrade    = "aggTrade"
	WSEventMiniTicker  = "24hrMiniTicker"
)
