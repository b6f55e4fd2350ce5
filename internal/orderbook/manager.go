package orderbook

import (
	"sync"
	"time"

	"github.com/BullionBear/depthgate/pkg/logger"
)

// Manager owns one engine per symbol. Engines are created lazily on first
// reference, kept while any client subscribes the symbol, and retired after
// the grace period once nobody does.
type Manager struct {
	mu      sync.Mutex
	engines map[string]*managedEngine
	opts    EngineOptions
	grace   time.Duration

	// lastGood retains the most recent valid read per symbol so consumers
	// can suppress flicker while the validity gate is temporarily false.
	lastGood map[string]*BookView
}

type managedEngine struct {
	engine *Engine
	// unwantedSince is zero while the symbol is subscribed; otherwise the
	// time it fell out of the subscription union.
	unwantedSince time.Time
}

// NewManager creates an engine manager.
func NewManager(opts EngineOptions, grace time.Duration) *Manager {
	return &Manager{
		engines:  make(map[string]*managedEngine),
		opts:     opts,
		grace:    grace,
		lastGood: make(map[string]*BookView),
	}
}

// Ensure returns the engine for a symbol, creating it on first reference.
func (m *Manager) Ensure(symbol string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	me, ok := m.engines[symbol]
	if !ok {
		me = &managedEngine{engine: NewEngine(symbol, m.opts)}
		m.engines[symbol] = me
		logger.Log.Info().Str("symbol", symbol).Msg("book engine created")
	}
	return me.engine
}

// Get returns the engine for a symbol if it exists.
func (m *Manager) Get(symbol string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.engines[symbol]
	if !ok {
		return nil, false
	}
	return me.engine, true
}

// SetWanted reconciles the engine set against the current subscription
// union. Symbols in the union are (re)marked wanted; the rest start their
// grace countdown.
func (m *Manager) SetWanted(symbols map[string]struct{}, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol := range symbols {
		if me, ok := m.engines[symbol]; ok {
			me.unwantedSince = time.Time{}
		}
	}
	for symbol, me := range m.engines {
		if _, wanted := symbols[symbol]; wanted {
			continue
		}
		if me.unwantedSince.IsZero() {
			me.unwantedSince = now
		}
	}
}

// Sweep retires engines that have been unwanted longer than the grace
// period and returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for symbol, me := range m.engines {
		if me.unwantedSince.IsZero() {
			continue
		}
		if now.Sub(me.unwantedSince) < m.grace {
			continue
		}
		delete(m.engines, symbol)
		delete(m.lastGood, symbol)
		removed++
		logger.Log.Info().Str("symbol", symbol).Msg("book engine retired")
	}
	return removed
}

// Read returns the top levels for a symbol and whether they pass the
// validity gate. When the gate is false the last good view is returned
// instead, if one exists.
func (m *Manager) Read(symbol string, depthN int) (*BookView, bool) {
	engine, ok := m.Get(symbol)
	if !ok {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.lastGood[symbol], false
	}

	view := engine.GetBook(depthN)
	if engine.Valid() {
		m.mu.Lock()
		m.lastGood[symbol] = view
		m.mu.Unlock()
		return view, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastGood[symbol]; ok {
		return last, false
	}
	return view, false
}

// ResyncCandidates returns the symbols whose engines are due a snapshot at
// the given time.
func (m *Manager) ResyncCandidates(now time.Time) []*Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*Engine
	for _, me := range m.engines {
		if me.engine.ResyncDue(now) {
			due = append(due, me.engine)
		}
	}
	return due
}

// Stats returns a diagnostic view of every engine.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Stats, 0, len(m.engines))
	for _, me := range m.engines {
		stats = append(stats, me.engine.Stats())
	}
	return stats
}

// Symbols returns the symbols with live engines.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbols := make([]string, 0, len(m.engines))
	for symbol := range m.engines {
		symbols = append(symbols, symbol)
	}
	return symbols
}
