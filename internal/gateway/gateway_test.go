package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BullionBear/depthgate/internal/config"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := New(config.DefaultConfig())
	require.NoError(t, err)
	return g
}

func TestRouteFrameFeedsBookEngine(t *testing.T) {
	g := newTestGateway(t)

	raw := []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate",` +
		`"E":1,"s":"BTCUSDT","U":100,"u":105,"pu":99,` +
		`"b":[["10","1"]],"a":[["11","1"]]}}`)
	g.routeFrame(raw)

	engine, ok := g.books.Get("BTCUSDT")
	require.True(t, ok)
	// First diff seeds the degraded book.
	assert.True(t, engine.Degraded())
	assert.Equal(t, int64(105), engine.GetBook(1).LastUpdateID)
}

func TestRouteFrameIgnoresNonDepthForBooks(t *testing.T) {
	g := newTestGateway(t)

	g.routeFrame([]byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT"}}`))

	// aggTrade creates no engine; only depth updates do.
	_, ok := g.books.Get("BTCUSDT")
	assert.False(t, ok)
}

func TestRouteFrameToleratesJunk(t *testing.T) {
	g := newTestGateway(t)

	// None of these may panic or create engines.
	g.routeFrame([]byte(`garbage`))
	g.routeFrame([]byte(`{"stream":"x"}`))
	g.routeFrame([]byte(`{"stream":"x","data":{"e":"depthUpdate"}}`))

	assert.Empty(t, g.books.Symbols())
}
