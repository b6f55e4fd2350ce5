package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BullionBear/depthgate/pkg/logger"
)

const (
	clientWriteWait  = 5 * time.Second
	clientPingPeriod = 30 * time.Second
	clientPongWait   = 75 * time.Second
	clientReadLimit  = 1 << 16
	defaultSendQueue = 1000
)

// Client is one downstream WebSocket consumer with its subscribed symbol set
// and a bounded send queue. A client that cannot drain its queue is closed
// rather than allowed to stall the fan-out.
type Client struct {
	ID   string
	conn *websocket.Conn

	mu      sync.RWMutex
	symbols map[string]struct{}

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection. The initial symbols are normalized
// on entry.
func NewClient(conn *websocket.Conn, symbols []string, sendQueue int) *Client {
	if sendQueue <= 0 {
		sendQueue = defaultSendQueue
	}
	c := &Client{
		ID:      uuid.NewString(),
		conn:    conn,
		symbols: make(map[string]struct{}),
		send:    make(chan []byte, sendQueue),
		done:    make(chan struct{}),
	}
	c.Subscribe(symbols)
	return c
}

// NormalizeSymbols uppercases, trims and drops empty entries.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			out = append(out, symbol)
		}
	}
	return out
}

// Subscribe adds symbols to the client's set.
func (c *Client) Subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, symbol := range NormalizeSymbols(symbols) {
		c.symbols[symbol] = struct{}{}
	}
}

// Unsubscribe removes symbols from the client's set.
func (c *Client) Unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, symbol := range NormalizeSymbols(symbols) {
		delete(c.symbols, symbol)
	}
}

// HasSymbol reports whether the client subscribed the symbol.
func (c *Client) HasSymbol(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.symbols[symbol]
	return ok
}

// Symbols returns a sorted-free copy of the subscription set.
func (c *Client) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.symbols))
	for symbol := range c.symbols {
		out = append(out, symbol)
	}
	return out
}

// Enqueue offers a frame to the send queue without blocking. False means the
// queue is full and the client should be dropped.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Idempotent; safe from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done is closed once the client is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// WritePump drains the send queue onto the wire. Each write carries a
// deadline; an expired deadline or any other write error closes the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(clientPingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Log.Debug().
					Str("client", c.ID).
					Err(err).
					Msg("client write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConfigureRead applies the read-side limits and pong handling. The caller
// owns the read loop.
func (c *Client) ConfigureRead() {
	c.conn.SetReadLimit(clientReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	})
}

// ReadMessage reads the next inbound frame, refreshing the read deadline.
func (c *Client) ReadMessage() ([]byte, error) {
	_, message, err := c.conn.ReadMessage()
	if err == nil {
		c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	}
	return message, err
}
