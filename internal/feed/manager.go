package feed

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/BullionBear/depthgate/pkg/exchange/binancefuture"
	"github.com/BullionBear/depthgate/pkg/logger"
)

// ConnState mirrors the upstream connection lifecycle for /health.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	reconnectBase   = time.Second
	reconnectJitter = time.Second
	frameBuffer     = 4096
)

// FrameHandler receives every raw combined-stream message in arrival order.
type FrameHandler func(raw []byte)

// Manager maintains at most one upstream combined-stream connection covering
// the union of all client subscriptions. Whenever the union changes, or the
// connection drops, the coordinator goroutine closes and re-dials; an empty
// union means no connection at all. All close/open/reconnect decisions are
// serialized in that one goroutine.
type Manager struct {
	wsBaseURL         string
	maxReconnectDelay time.Duration
	handler           FrameHandler

	mu      sync.Mutex
	desired map[string]struct{}
	state   ConnState

	notify chan struct{}
	rng    *rand.Rand
}

// NewManager creates a stream manager. The handler is invoked from the
// coordinator goroutine, so per-connection arrival order is preserved.
func NewManager(wsBaseURL string, maxReconnectDelay time.Duration, handler FrameHandler) *Manager {
	return &Manager{
		wsBaseURL:         wsBaseURL,
		maxReconnectDelay: maxReconnectDelay,
		handler:           handler,
		desired:           make(map[string]struct{}),
		notify:            make(chan struct{}, 1),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetSymbols replaces the desired subscription union and wakes the
// coordinator.
func (m *Manager) SetSymbols(symbols map[string]struct{}) {
	m.mu.Lock()
	desired := make(map[string]struct{}, len(symbols))
	for symbol := range symbols {
		desired[symbol] = struct{}{}
	}
	m.desired = desired
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s ConnState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// desiredSnapshot returns a copy of the union.
func (m *Manager) desiredSnapshot() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]struct{}, len(m.desired))
	for symbol := range m.desired {
		snapshot[symbol] = struct{}{}
	}
	return snapshot
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// streamNames expands the symbol union into sorted stream names, three per
// symbol.
func streamNames(symbols map[string]struct{}) []string {
	ordered := make([]string, 0, len(symbols))
	for symbol := range symbols {
		ordered = append(ordered, symbol)
	}
	sort.Strings(ordered)

	streams := make([]string, 0, 3*len(ordered))
	for _, symbol := range ordered {
		streams = append(streams, binancefuture.SymbolStreamNames(symbol)...)
	}
	return streams
}

// reconnectDelay implements min(base * 2^attempt, max) plus uniform jitter.
func (m *Manager) reconnectDelay(attempt int) time.Duration {
	delay := reconnectBase
	for i := 0; i < attempt && delay < m.maxReconnectDelay; i++ {
		delay *= 2
	}
	if delay > m.maxReconnectDelay {
		delay = m.maxReconnectDelay
	}
	return delay + time.Duration(m.rng.Int63n(int64(reconnectJitter)))
}

// Run owns the connection until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	attempt := 0

	for {
		desired := m.desiredSnapshot()

		if len(desired) == 0 {
			m.setState(StateDisconnected)
			select {
			case <-ctx.Done():
				return
			case <-m.notify:
				continue
			}
		}

		m.setState(StateConnecting)
		streams := streamNames(desired)
		conn, err := binancefuture.DialCombinedStream(ctx, m.wsBaseURL, streams, frameBuffer)
		if err != nil {
			m.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			delay := m.reconnectDelay(attempt)
			attempt++
			logger.Log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("retryIn", delay).
				Msg("upstream dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		m.setState(StateConnected)
		logger.Log.Info().
			Int("symbols", len(desired)).
			Int("streams", len(streams)).
			Msg("upstream connected")

		switch m.drain(ctx, conn, desired) {
		case drainCtxDone:
			return
		case drainSetChanged:
			// Re-dial immediately with the new union.
		case drainConnLost:
			// Clients are still attached; come back with backoff.
			delay := m.reconnectDelay(attempt)
			attempt++
			logger.Log.Info().
				Int("attempt", attempt).
				Dur("retryIn", delay).
				Msg("scheduling upstream reconnect")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

type drainResult int

const (
	drainCtxDone drainResult = iota
	drainSetChanged
	drainConnLost
)

// drain forwards frames until the connection dies, the union changes, or
// the context ends.
func (m *Manager) drain(ctx context.Context, conn *binancefuture.StreamConn, current map[string]struct{}) drainResult {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return drainCtxDone

		case <-m.notify:
			if sameSet(m.desiredSnapshot(), current) {
				continue
			}
			// New subscription union: a fresh connection carries it.
			logger.Log.Info().Msg("subscription union changed, recycling upstream connection")
			return drainSetChanged

		case raw, ok := <-conn.Frames():
			if !ok {
				m.setState(StateDisconnected)
				if err := conn.Err(); err != nil {
					logger.Log.Warn().Err(err).Msg("upstream connection lost")
				} else {
					logger.Log.Info().Msg("upstream connection closed")
				}
				return drainConnLost
			}
			m.handler(raw)
		}
	}
}
