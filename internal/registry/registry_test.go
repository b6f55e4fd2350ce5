package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnPair upgrades one server-side connection and returns both ends.
func newConnPair(t *testing.T) (server *websocket.Conn, peer *websocket.Conn, cleanup func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- c
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	server = <-connCh

	return server, peer, func() {
		peer.Close()
		server.Close()
		srv.Close()
	}
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" btcusdt ", "", "ethUSDT", "  "})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
}

func TestClientSubscriptionSet(t *testing.T) {
	server, _, cleanup := newConnPair(t)
	defer cleanup()

	c := NewClient(server, []string{"btcusdt"}, 10)
	assert.True(t, c.HasSymbol("BTCUSDT"))
	assert.False(t, c.HasSymbol("ETHUSDT"))

	c.Subscribe([]string{"ethusdt"})
	assert.True(t, c.HasSymbol("ETHUSDT"))

	c.Unsubscribe([]string{"BTCUSDT"})
	assert.False(t, c.HasSymbol("BTCUSDT"))
	assert.ElementsMatch(t, []string{"ETHUSDT"}, c.Symbols())
}

func TestConnectedGreeting(t *testing.T) {
	server, peer, cleanup := newConnPair(t)
	defer cleanup()

	r := NewRegistry(nil)
	c := NewClient(server, []string{"btcusdt"}, 10)
	r.Add(c)
	go c.WritePump()

	greeting := readJSON(t, peer)
	assert.Equal(t, "connected", greeting["type"])
	assert.Equal(t, []interface{}{"BTCUSDT"}, greeting["symbols"])
	assert.Greater(t, greeting["timestamp"].(float64), float64(0))
}

func TestUnionAcrossClients(t *testing.T) {
	serverA, _, cleanupA := newConnPair(t)
	defer cleanupA()
	serverB, _, cleanupB := newConnPair(t)
	defer cleanupB()

	changes := 0
	r := NewRegistry(func() { changes++ })

	a := NewClient(serverA, []string{"BTCUSDT"}, 10)
	b := NewClient(serverB, []string{"ETHUSDT"}, 10)
	r.Add(a)
	r.Add(b)

	union := r.Union()
	assert.Len(t, union, 2)
	_, hasBTC := union["BTCUSDT"]
	_, hasETH := union["ETHUSDT"]
	assert.True(t, hasBTC)
	assert.True(t, hasETH)

	r.Remove(b)
	union = r.Union()
	assert.Len(t, union, 1)
	_, hasETH = union["ETHUSDT"]
	assert.False(t, hasETH)

	assert.Equal(t, 3, changes)
	assert.Equal(t, 1, r.Count())
}

func TestHandleControl(t *testing.T) {
	server, _, cleanup := newConnPair(t)
	defer cleanup()

	r := NewRegistry(nil)
	c := NewClient(server, nil, 10)
	r.Add(c)

	r.HandleControl(c, []byte(`{"type":"subscribe","symbols":["btcusdt","ethusdt"]}`))
	assert.True(t, c.HasSymbol("BTCUSDT"))
	assert.True(t, c.HasSymbol("ETHUSDT"))

	r.HandleControl(c, []byte(`{"type":"unsubscribe","symbols":["ETHUSDT"]}`))
	assert.False(t, c.HasSymbol("ETHUSDT"))

	// Garbage and unknown types are ignored, connection stays registered.
	r.HandleControl(c, []byte(`{{{not json`))
	r.HandleControl(c, []byte(`{"type":"shout","symbols":["X"]}`))
	assert.Equal(t, 1, r.Count())
	assert.True(t, c.HasSymbol("BTCUSDT"))
}

func TestForwardFiltersBySymbol(t *testing.T) {
	serverA, peerA, cleanupA := newConnPair(t)
	defer cleanupA()
	serverB, peerB, cleanupB := newConnPair(t)
	defer cleanupB()

	r := NewRegistry(nil)
	a := NewClient(serverA, []string{"BTCUSDT"}, 10)
	b := NewClient(serverB, []string{"ETHUSDT"}, 10)
	r.Add(a)
	r.Add(b)
	go a.WritePump()
	go b.WritePump()

	// Swallow greetings.
	readJSON(t, peerA)
	readJSON(t, peerB)

	frame := []byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT"}}`)
	r.Forward(frame, "BTCUSDT", true)

	got := readJSON(t, peerA)
	assert.Equal(t, "BTCUSDT", got["data"].(map[string]interface{})["s"])

	// B must not receive BTCUSDT frames.
	peerB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := peerB.ReadMessage()
	assert.Error(t, err)
}

func TestForwardMalformedGoesToAll(t *testing.T) {
	serverA, peerA, cleanupA := newConnPair(t)
	defer cleanupA()
	serverB, peerB, cleanupB := newConnPair(t)
	defer cleanupB()

	r := NewRegistry(nil)
	a := NewClient(serverA, []string{"BTCUSDT"}, 10)
	b := NewClient(serverB, []string{"ETHUSDT"}, 10)
	r.Add(a)
	r.Add(b)
	go a.WritePump()
	go b.WritePump()
	readJSON(t, peerA)
	readJSON(t, peerB)

	r.Forward([]byte(`{"mystery":true}`), "", false)
	assert.True(t, readJSON(t, peerA)["mystery"].(bool))
	assert.True(t, readJSON(t, peerB)["mystery"].(bool))
}

func TestEnqueueOverflowClosesClient(t *testing.T) {
	server, _, cleanup := newConnPair(t)
	defer cleanup()

	// No WritePump: the queue fills immediately.
	c := NewClient(server, []string{"BTCUSDT"}, 1)
	assert.True(t, c.Enqueue([]byte("one")))
	assert.False(t, c.Enqueue([]byte("two")))

	r := NewRegistry(nil)
	r.Add(c)
	r.Forward([]byte("three"), "BTCUSDT", true)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("overflowing client was not closed")
	}
}
