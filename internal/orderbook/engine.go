package orderbook

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BullionBear/depthgate/internal/depth"
	"github.com/BullionBear/depthgate/pkg/exchange/binancefuture"
	"github.com/BullionBear/depthgate/pkg/logger"
)

// State is the synchronization phase of one symbol's local book.
type State int

const (
	// StateInit means nothing has been received or fetched yet.
	StateInit State = iota
	// StateBuffering means a snapshot fetch is in flight and diffs queue up.
	StateBuffering
	// StateDegraded means the book was seeded from a diff because no
	// snapshot has ever succeeded.
	StateDegraded
	// StateSynced means snapshot and diff stream are fused and gap-free.
	StateSynced
	// StateGapped means a gap was detected after sync; diffs queue up until
	// the next snapshot fuse.
	StateGapped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBuffering:
		return "buffering"
	case StateDegraded:
		return "degraded"
	case StateSynced:
		return "synced"
	case StateGapped:
		return "gapped"
	default:
		return "unknown"
	}
}

const gapLogInterval = 2 * time.Second

// EngineOptions tunes one book engine. Zero values fall back to the §6
// defaults so tests can construct engines tersely.
type EngineOptions struct {
	MaxBuffer  int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// SeedFromFirstDiff seeds the book from the first valid diff while no
	// snapshot has ever succeeded, so approximate reads work during long
	// upstream REST outages.
	SeedFromFirstDiff bool
}

func (o EngineOptions) withDefaults() EngineOptions {
	if o.MaxBuffer <= 0 {
		o.MaxBuffer = 2000
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 2 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	return o
}

// BookView is a consistent read of the local book.
type BookView struct {
	Symbol       string  `json:"symbol"`
	Bids         []Level `json:"bids"`
	Asks         []Level `json:"asks"`
	LastUpdateID int64   `json:"lastUpdateId"`
	EventTime    int64   `json:"eventTime"`
}

// Engine fuses a one-shot REST snapshot with the live diff stream into a
// gap-free local book for one symbol. Diff application and snapshot commits
// are serialized behind one mutex; reads take the same mutex briefly and
// therefore always observe a full, not-mid-update book.
type Engine struct {
	symbol string
	opts   EngineOptions

	mu    sync.Mutex
	state State
	// prevState is where a failed snapshot attempt falls back to.
	prevState State

	bids *BookSide
	asks *BookSide

	lastUpdateID int64
	eventTime    int64
	degraded     bool

	buffer []*binancefuture.WSDepthEvent

	lastResyncAt time.Time
	backoff      time.Duration

	lastGapLog time.Time
}

// NewEngine creates an engine in INIT for the given symbol.
func NewEngine(symbol string, opts EngineOptions) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		symbol:  symbol,
		opts:    opts,
		state:   StateInit,
		bids:    newBookSide(false),
		asks:    newBookSide(true),
		backoff: opts.MinBackoff,
	}
}

// Symbol returns the symbol this engine tracks.
func (e *Engine) Symbol() string {
	return e.symbol
}

// State returns the current synchronization state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// NeedsResync reports whether a new snapshot is required.
func (e *Engine) NeedsResync() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != StateSynced
}

// ResyncInFlight reports whether a snapshot fetch is outstanding.
func (e *Engine) ResyncInFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateBuffering
}

// Degraded reports whether the book is running on diff-seeded state.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// ResyncDue reports whether the scheduler should dispatch a snapshot now.
func (e *Engine) ResyncDue(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSynced || e.state == StateBuffering {
		return false
	}
	return e.lastResyncAt.IsZero() || now.Sub(e.lastResyncAt) >= e.backoff
}

// Backoff returns the current snapshot retry backoff.
func (e *Engine) Backoff() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backoff
}

// BufferLen returns the number of queued diffs.
func (e *Engine) BufferLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// validShape rejects events that cannot participate in sequencing.
func validShape(event *binancefuture.WSDepthEvent) bool {
	return event != nil &&
		event.FirstUpdateID > 0 &&
		event.FinalUpdateID >= event.FirstUpdateID &&
		event.Bids != nil &&
		event.Asks != nil
}

// ApplyDiff feeds one incremental depth event into the state machine.
func (e *Engine) ApplyDiff(event *binancefuture.WSDepthEvent) {
	if !validShape(event) {
		logger.Log.Warn().
			Str("symbol", e.symbol).
			Msg("dropping malformed depth event")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateBuffering, StateGapped:
		e.bufferEvent(event)

	case StateInit:
		if e.opts.SeedFromFirstDiff {
			e.seedFromDiff(event)
			return
		}
		e.bufferEvent(event)

	case StateDegraded:
		if event.FinalUpdateID > e.lastUpdateID {
			e.applyEvent(event)
		}

	case StateSynced:
		switch {
		case event.FinalUpdateID <= e.lastUpdateID:
			// Already covered by the book; drop.
		case event.FirstUpdateID <= e.lastUpdateID+1:
			e.applyEvent(event)
		default:
			// Gap: one or more diffs were lost. Keep the current book for
			// reads, queue the post-gap event and wait for a re-snapshot.
			e.state = StateGapped
			e.bufferEvent(event)
			now := time.Now()
			if now.Sub(e.lastGapLog) >= gapLogInterval {
				e.lastGapLog = now
				logger.Log.Warn().
					Str("symbol", e.symbol).
					Int64("lastUpdateId", e.lastUpdateID).
					Int64("firstUpdateId", event.FirstUpdateID).
					Msg("gap detected in depth stream")
			}
		}
	}
}

// bufferEvent queues an event, dropping the oldest 10% on overflow.
func (e *Engine) bufferEvent(event *binancefuture.WSDepthEvent) {
	if len(e.buffer) >= e.opts.MaxBuffer {
		drop := e.opts.MaxBuffer / 10
		if drop < 1 {
			drop = 1
		}
		e.buffer = append(e.buffer[:0], e.buffer[drop:]...)
		logger.Log.Warn().
			Str("symbol", e.symbol).
			Int("dropped", drop).
			Msg("depth buffer overflow, dropped oldest events")
	}
	e.buffer = append(e.buffer, event)
}

// seedFromDiff starts degraded mode off the first diff.
func (e *Engine) seedFromDiff(event *binancefuture.WSDepthEvent) {
	if err := e.bids.ReplaceAll(event.Bids); err != nil {
		logger.Log.Warn().Str("symbol", e.symbol).Err(err).Msg("failed to seed bids from diff")
		return
	}
	if err := e.asks.ReplaceAll(event.Asks); err != nil {
		logger.Log.Warn().Str("symbol", e.symbol).Err(err).Msg("failed to seed asks from diff")
		return
	}
	e.lastUpdateID = event.FinalUpdateID
	e.eventTime = event.EventTime
	e.degraded = true
	e.state = StateDegraded
	logger.Log.Info().
		Str("symbol", e.symbol).
		Int64("lastUpdateId", e.lastUpdateID).
		Msg("book seeded from diff, running degraded")
}

// applyEvent mutates both sides and advances the sequence. Caller holds mu.
func (e *Engine) applyEvent(event *binancefuture.WSDepthEvent) {
	if err := e.bids.ApplyDiff(event.Bids); err != nil {
		logger.Log.Warn().Str("symbol", e.symbol).Err(err).Msg("failed to apply bid diff")
	}
	if err := e.asks.ApplyDiff(event.Asks); err != nil {
		logger.Log.Warn().Str("symbol", e.symbol).Err(err).Msg("failed to apply ask diff")
	}
	e.lastUpdateID = event.FinalUpdateID
	e.eventTime = event.EventTime
}

// BeginResync marks a snapshot fetch as in flight. It returns false when one
// already is, or when the engine no longer needs one.
func (e *Engine) BeginResync() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateBuffering || e.state == StateSynced {
		return false
	}
	e.prevState = e.state
	e.state = StateBuffering
	return true
}

// FailResync records a failed snapshot attempt: the engine falls back to the
// state it was in, and the retry backoff doubles up to the cap.
func (e *Engine) FailResync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateBuffering {
		return
	}
	e.state = e.prevState
	e.lastResyncAt = time.Now()
	e.backoff *= 2
	if e.backoff > e.opts.MaxBackoff {
		e.backoff = e.opts.MaxBackoff
	}
}

// CommitSnapshot fuses a fetched snapshot with the buffered diffs. It
// returns true when the book came out gap-free (SYNCED); false means the
// buffered diffs did not line up with the snapshot and another fetch is
// needed (GAPPED, buffer cleared).
func (e *Engine) CommitSnapshot(snap *depth.Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastResyncAt = time.Now()

	if err := e.bids.ReplaceAll(snap.Bids); err != nil {
		logger.Log.Error().Str("symbol", e.symbol).Err(err).Msg("snapshot bids unusable")
		return e.failReplayLocked()
	}
	if err := e.asks.ReplaceAll(snap.Asks); err != nil {
		logger.Log.Error().Str("symbol", e.symbol).Err(err).Msg("snapshot asks unusable")
		return e.failReplayLocked()
	}
	e.lastUpdateID = snap.LastUpdateID
	e.eventTime = snap.CachedAt.UnixMilli()

	if ok := e.replayBufferLocked(snap.LastUpdateID); !ok {
		return e.failReplayLocked()
	}

	e.buffer = nil
	e.state = StateSynced
	e.degraded = false
	e.backoff = e.opts.MinBackoff
	logger.Log.Info().
		Str("symbol", e.symbol).
		Int64("lastUpdateId", e.lastUpdateID).
		Msg("book synced")
	return true
}

// failReplayLocked clears the buffer and schedules another snapshot.
func (e *Engine) failReplayLocked() bool {
	e.buffer = nil
	e.state = StateGapped
	e.backoff *= 2
	if e.backoff > e.opts.MaxBackoff {
		e.backoff = e.opts.MaxBackoff
	}
	logger.Log.Warn().
		Str("symbol", e.symbol).
		Int64("lastUpdateId", e.lastUpdateID).
		Msg("snapshot replay failed, rescheduling")
	return false
}

// replayBufferLocked runs the canonical recipe: discard diffs the snapshot
// already covers, require the first applied diff to straddle
// snapshotID + 1, then apply in order with continuity checks.
func (e *Engine) replayBufferLocked(snapshotID int64) bool {
	if len(e.buffer) == 0 {
		return true
	}

	sort.SliceStable(e.buffer, func(i, j int) bool {
		return e.buffer[i].FinalUpdateID < e.buffer[j].FinalUpdateID
	})

	pending := e.buffer[:0:0]
	for _, event := range e.buffer {
		if event.FinalUpdateID > snapshotID {
			pending = append(pending, event)
		}
	}
	if len(pending) == 0 {
		// The snapshot is ahead of every buffered diff, so nothing proves
		// continuity between it and the live stream. The book content is
		// the snapshot either way; fetch again until a diff straddles.
		return false
	}

	start := -1
	for i, event := range pending {
		if event.FirstUpdateID <= snapshotID+1 && snapshotID+1 <= event.FinalUpdateID {
			start = i
			break
		}
	}
	if start == -1 {
		// Every buffered diff starts beyond the snapshot: the snapshot is
		// too old relative to what we queued.
		return false
	}

	e.applyEvent(pending[start])
	for _, event := range pending[start+1:] {
		if event.FirstUpdateID > e.lastUpdateID+1 || event.FinalUpdateID <= e.lastUpdateID {
			return false
		}
		e.applyEvent(event)
	}
	return true
}

// GetBook returns the top levels of both sides. The read is consistent: it
// never observes a half-applied diff.
func (e *Engine) GetBook(depthN int) *BookView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &BookView{
		Symbol:       e.symbol,
		Bids:         e.bids.Depth(depthN),
		Asks:         e.asks.Depth(depthN),
		LastUpdateID: e.lastUpdateID,
		EventTime:    e.eventTime,
	}
}

// Valid reports whether the book may be used by downstream consumers: fully
// synced, no fetch outstanding, both sides populated and not crossed.
func (e *Engine) Valid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateSynced {
		return false
	}
	bestBid, okBid := e.bids.Best()
	bestAsk, okAsk := e.asks.Best()
	if !okBid || !okAsk {
		return false
	}
	if bestBid.LessThanOrEqual(decimal.Zero) || bestAsk.LessThanOrEqual(decimal.Zero) {
		return false
	}
	return bestBid.LessThan(bestAsk)
}

// Stats is a diagnostic view for /health.
type Stats struct {
	Symbol       string `json:"symbol"`
	State        string `json:"state"`
	LastUpdateID int64  `json:"lastUpdateId"`
	BufferLen    int    `json:"bufferLen"`
	BackoffMs    int64  `json:"backoffMs"`
	Degraded     bool   `json:"degraded"`
}

// Stats returns the diagnostic view.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Symbol:       e.symbol,
		State:        e.state.String(),
		LastUpdateID: e.lastUpdateID,
		BufferLen:    len(e.buffer),
		BackoffMs:    e.backoff.Milliseconds(),
		Degraded:     e.degraded,
	}
}
