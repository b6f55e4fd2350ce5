package depth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestTracker() *Tracker {
	return NewTracker(500*time.Millisecond, 2*time.Second, 30*time.Second)
}

func TestTrackerFirstRequestNeverThrottled(t *testing.T) {
	tr := newTestTracker()
	assert.False(t, tr.ShouldThrottle("BTCUSDT", time.Now()))
}

func TestTrackerThrottleWindow(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	tr.OnSuccess("BTCUSDT", now)
	// After a success the window is max(interval, minBackoff) = 2s.
	assert.True(t, tr.ShouldThrottle("BTCUSDT", now.Add(time.Second)))
	assert.False(t, tr.ShouldThrottle("BTCUSDT", now.Add(2*time.Second)))
}

func TestTrackerBackoffDoublesAndCaps(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	assert.Equal(t, 2*time.Second, tr.Backoff("BTCUSDT"))

	expected := []time.Duration{4, 8, 16, 30, 30}
	for i, want := range expected {
		tr.OnRateLimited("BTCUSDT", now)
		assert.Equal(t, want*time.Second, tr.Backoff("BTCUSDT"), "step %d", i)
		assert.GreaterOrEqual(t, tr.Backoff("BTCUSDT"), 2*time.Second)
		assert.LessOrEqual(t, tr.Backoff("BTCUSDT"), 30*time.Second)
	}

	tr.OnSuccess("BTCUSDT", now)
	assert.Equal(t, 2*time.Second, tr.Backoff("BTCUSDT"))
}

func TestTrackerErrorBehavesLikeRateLimit(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	tr.OnError("BTCUSDT", now)
	assert.Equal(t, 4*time.Second, tr.Backoff("BTCUSDT"))
	assert.True(t, tr.ShouldThrottle("BTCUSDT", now.Add(3*time.Second)))
	assert.False(t, tr.ShouldThrottle("BTCUSDT", now.Add(5*time.Second)))
}

func TestTrackerPerSymbolIsolation(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	tr.OnRateLimited("BTCUSDT", now)
	assert.Equal(t, 4*time.Second, tr.Backoff("BTCUSDT"))
	assert.Equal(t, 2*time.Second, tr.Backoff("ETHUSDT"))
	assert.False(t, tr.ShouldThrottle("ETHUSDT", now))
}
