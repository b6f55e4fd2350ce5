package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/BullionBear/depthgate/pkg/logger"
)

// ControlMessage is the inbound subscribe/unsubscribe frame.
type ControlMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// Control message types.
const (
	ControlSubscribe   = "subscribe"
	ControlUnsubscribe = "unsubscribe"
)

// ConnectedMessage is the one-shot greeting sent on open.
type ConnectedMessage struct {
	Type      string   `json:"type"`
	Symbols   []string `json:"symbols"`
	Timestamp int64    `json:"timestamp"`
}

// Registry tracks connected clients. Add/remove mutate; the per-frame filter
// only reads, so fan-out never serializes behind connection churn.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	// onChange fires after any membership or subscription change so the
	// upstream union can be recomputed.
	onChange func()
}

// NewRegistry creates an empty registry. onChange may be nil.
func NewRegistry(onChange func()) *Registry {
	return &Registry{
		clients:  make(map[*Client]struct{}),
		onChange: onChange,
	}
}

// Add registers a client and sends it the connected greeting.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	count := len(r.clients)
	r.mu.Unlock()

	greeting, err := json.Marshal(ConnectedMessage{
		Type:      "connected",
		Symbols:   c.Symbols(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err == nil {
		c.Enqueue(greeting)
	}

	logger.Log.Info().
		Str("client", c.ID).
		Strs("symbols", c.Symbols()).
		Int("clients", count).
		Msg("client connected")

	r.changed()
}

// Remove unregisters and closes a client.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	count := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return
	}
	c.Close()

	logger.Log.Info().
		Str("client", c.ID).
		Int("clients", count).
		Msg("client disconnected")

	r.changed()
}

// Count returns the number of connected clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Union returns the union of every client's subscription set.
func (r *Registry) Union() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	union := make(map[string]struct{})
	for c := range r.clients {
		for _, symbol := range c.Symbols() {
			union[symbol] = struct{}{}
		}
	}
	return union
}

// HandleControl applies one inbound control frame to a client. Invalid JSON
// and unknown types are ignored; the connection stays open.
func (r *Registry) HandleControl(c *Client, raw []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case ControlSubscribe:
		c.Subscribe(msg.Symbols)
	case ControlUnsubscribe:
		c.Unsubscribe(msg.Symbols)
	default:
		return
	}

	logger.Log.Debug().
		Str("client", c.ID).
		Str("type", msg.Type).
		Strs("symbols", msg.Symbols).
		Msg("subscription updated")

	r.changed()
}

// Forward fans one upstream frame out. A frame whose symbol could not be
// extracted goes to every client. Forwarding is best-effort: a client whose
// queue is full is closed, never waited on.
func (r *Registry) Forward(frame []byte, symbol string, symbolKnown bool) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if !symbolKnown || c.HasSymbol(symbol) {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.Enqueue(frame) {
			logger.Log.Warn().
				Str("client", c.ID).
				Msg("client send queue overflow, closing")
			c.Close()
		}
	}
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// CloseAll closes every client, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[*Client]struct{})
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
