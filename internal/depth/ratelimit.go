package depth

import (
	"sync"
	"time"
)

// rateLimitState tracks one symbol's most recent upstream call and the
// current backoff. The backoff always stays within [min, max].
type rateLimitState struct {
	lastRequest time.Time
	backoff     time.Duration
}

// Tracker throttles upstream REST calls per symbol. Every outcome callback
// also records the call time; only the backoff evolution differs.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*rateLimitState

	interval   time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewTracker creates a tracker with the base request interval and the
// backoff bounds.
func NewTracker(interval, minBackoff, maxBackoff time.Duration) *Tracker {
	return &Tracker{
		entries:    make(map[string]*rateLimitState),
		interval:   interval,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

func (t *Tracker) state(symbol string) *rateLimitState {
	st, ok := t.entries[symbol]
	if !ok {
		st = &rateLimitState{backoff: t.minBackoff}
		t.entries[symbol] = st
	}
	return st
}

// ShouldThrottle reports whether a new upstream call for the symbol should be
// held back at the given time.
func (t *Tracker) ShouldThrottle(symbol string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(symbol)
	if st.lastRequest.IsZero() {
		return false
	}
	window := t.interval
	if st.backoff > window {
		window = st.backoff
	}
	return now.Sub(st.lastRequest) < window
}

// OnSuccess resets the backoff and records the call time.
func (t *Tracker) OnSuccess(symbol string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(symbol)
	st.lastRequest = now
	st.backoff = t.minBackoff
}

// OnRateLimited doubles the backoff, capped at the maximum, and records the
// call time.
func (t *Tracker) OnRateLimited(symbol string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(symbol)
	st.lastRequest = now
	st.backoff *= 2
	if st.backoff > t.maxBackoff {
		st.backoff = t.maxBackoff
	}
}

// OnError treats any other upstream failure the same as a rate limit.
func (t *Tracker) OnError(symbol string, now time.Time) {
	t.OnRateLimited(symbol, now)
}

// Backoff returns the current backoff for a symbol.
func (t *Tracker) Backoff(symbol string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(symbol).backoff
}
