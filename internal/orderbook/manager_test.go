package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLazyCreate(t *testing.T) {
	m := NewManager(EngineOptions{}, time.Minute)

	_, ok := m.Get("BTCUSDT")
	assert.False(t, ok)

	e := m.Ensure("BTCUSDT")
	require.NotNil(t, e)
	again := m.Ensure("BTCUSDT")
	assert.Same(t, e, again)

	got, ok := m.Get("BTCUSDT")
	require.True(t, ok)
	assert.Same(t, e, got)
}

func TestManagerGracePeriodRetire(t *testing.T) {
	m := NewManager(EngineOptions{}, time.Minute)
	m.Ensure("BTCUSDT")
	m.Ensure("ETHUSDT")

	now := time.Now()
	m.SetWanted(map[string]struct{}{"BTCUSDT": {}}, now)

	// Inside the grace period nothing is removed.
	assert.Zero(t, m.Sweep(now.Add(30*time.Second)))
	_, ok := m.Get("ETHUSDT")
	assert.True(t, ok)

	// Re-subscribing cancels the countdown.
	m.SetWanted(map[string]struct{}{"BTCUSDT": {}, "ETHUSDT": {}}, now.Add(40*time.Second))
	assert.Zero(t, m.Sweep(now.Add(2*time.Minute)))

	// Unwanted past the grace period goes away.
	m.SetWanted(map[string]struct{}{"BTCUSDT": {}}, now.Add(3*time.Minute))
	assert.Equal(t, 1, m.Sweep(now.Add(5*time.Minute)))
	_, ok = m.Get("ETHUSDT")
	assert.False(t, ok)
	_, ok = m.Get("BTCUSDT")
	assert.True(t, ok)
}

func TestManagerReadLastGood(t *testing.T) {
	m := NewManager(EngineOptions{}, time.Minute)
	e := m.Ensure("BTCUSDT")

	require.True(t, e.BeginResync())
	require.True(t, e.CommitSnapshot(snapshotAt(100,
		[][]string{{"10", "1"}},
		[][]string{{"11", "1"}},
	)))

	view, valid := m.Read("BTCUSDT", 5)
	require.True(t, valid)
	require.Len(t, view.Bids, 1)

	// Close the gate by emptying the ask side; the last good view is served.
	e.ApplyDiff(diffEvent(101, 101, nil, [][]string{{"11", "0"}}))
	stale, valid := m.Read("BTCUSDT", 5)
	assert.False(t, valid)
	require.NotNil(t, stale)
	assert.Len(t, stale.Asks, 1)
}

func TestManagerResyncCandidates(t *testing.T) {
	m := NewManager(EngineOptions{MinBackoff: 2 * time.Second}, time.Minute)
	a := m.Ensure("BTCUSDT")
	m.Ensure("ETHUSDT")

	due := m.ResyncCandidates(time.Now())
	assert.Len(t, due, 2)

	// Syncing one drops it from the candidate set.
	require.True(t, a.BeginResync())
	require.True(t, a.CommitSnapshot(snapshotAt(100,
		[][]string{{"10", "1"}},
		[][]string{{"11", "1"}},
	)))
	due = m.ResyncCandidates(time.Now())
	require.Len(t, due, 1)
	assert.Equal(t, "ETHUSDT", due[0].Symbol())
}
