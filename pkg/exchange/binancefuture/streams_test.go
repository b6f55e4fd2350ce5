package binancefuture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "btcusdt@depth@100ms", DepthStreamName("BTCUSDT"))
	assert.Equal(t, "btcusdt@aggTrade", AggTradeStreamName("BTCUSDT"))
	assert.Equal(t, "btcusdt@miniTicker", MiniTickerStreamName("BTCUSDT"))

	names := SymbolStreamNames("ethUSDT")
	require.Len(t, names, 3)
	assert.Equal(t, "ethusdt@depth@100ms", names[0])
}

func TestCombinedStreamURL(t *testing.T) {
	url := CombinedStreamURL("wss://fstream.binance.com", []string{
		"btcusdt@depth@100ms",
		"btcusdt@aggTrade",
	})
	assert.Equal(t, "wss://fstream.binance.com/stream?streams=btcusdt@depth@100ms/btcusdt@aggTrade", url)

	// Trailing slash on the base is tolerated.
	url = CombinedStreamURL("ws://localhost:9999/", []string{"btcusdt@miniTicker"})
	assert.Equal(t, "ws://localhost:9999/stream?streams=btcusdt@miniTicker", url)
}
