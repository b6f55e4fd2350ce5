package binancefuture

import (
	"fmt"
	"strings"
)

// DepthStreamName returns the 100ms diff-depth stream name for a symbol.
func DepthStreamName(symbol string) string {
	return fmt.Sprintf("%s@%s@100ms", strings.ToLower(symbol), WSStreamDepth)
}

// AggTradeStreamName returns the aggregated trade stream name for a symbol.
func AggTradeStreamName(symbol string) string {
	return fmt.Sprintf("%s@%s", strings.ToLower(symbol), WSStreamAggTrade)
}

// MiniTickerStreamName returns the mini ticker stream name for a symbol.
func MiniTickerStreamName(symbol string) string {
	return fmt.Sprintf("%s@%s", strings.ToLower(symbol), WSStreamMiniTicker)
}

// SymbolStreamNames returns every stream the gateway subscribes per symbol.
func SymbolStreamNames(symbol string) []string {
	return []string{
		DepthStreamName(symbol),
		AggTradeStreamName(symbol),
		MiniTickerStreamName(symbol),
	}
}

// CombinedStreamURL builds the combined-stream endpoint URL for a stream set.
func CombinedStreamURL(wsBaseURL string, streams []string) string {
	// Stream names only contain [A-Za-z0-9@_], so the query needs no escaping.
	base := strings.TrimRight(wsBaseURL, "/")
	return base + "/stream?streams=" + strings.Join(streams, "/")
}
