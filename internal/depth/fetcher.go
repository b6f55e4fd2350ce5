package depth

import (
	"context"
	"errors"
	"time"

	"github.com/BullionBear/depthgate/pkg/exchange/binancefuture"
	"github.com/BullionBear/depthgate/pkg/logger"
)

// ErrMalformedSnapshot marks an upstream depth payload that parsed but is
// missing its sequence number or either book side.
var ErrMalformedSnapshot = errors.New("malformed depth snapshot")

// Fetcher performs one-shot snapshot fetches. It classifies every outcome
// into the rate-limit tracker and writes successes through to the cache, but
// it never retries on its own; retry pacing belongs to the callers reading
// tracker state.
type Fetcher struct {
	client  *binancefuture.Client
	cache   *Cache
	tracker *Tracker
}

// NewFetcher creates a snapshot fetcher over the given client, cache and
// tracker.
func NewFetcher(client *binancefuture.Client, cache *Cache, tracker *Tracker) *Fetcher {
	return &Fetcher{
		client:  client,
		cache:   cache,
		tracker: tracker,
	}
}

// Fetch retrieves a bounded depth snapshot for the symbol. The limit is
// capped at the upstream maximum. On any failure the returned snapshot is nil
// and the tracker has been told which class of failure occurred.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, limit int) (*Snapshot, error) {
	if limit > binancefuture.MaxDepthLimit {
		limit = binancefuture.MaxDepthLimit
	}

	resp, err := f.client.GetOrderBook(ctx, symbol, limit)
	now := time.Now()
	if err != nil {
		var apiErr *binancefuture.APIError
		if errors.As(err, &apiErr) && apiErr.IsRateLimit() {
			f.tracker.OnRateLimited(symbol, now)
			logger.Log.Warn().
				Str("symbol", symbol).
				Int("status", apiErr.HTTPStatus).
				Dur("backoff", f.tracker.Backoff(symbol)).
				Msg("snapshot fetch rate limited")
		} else {
			f.tracker.OnError(symbol, now)
			logger.Log.Warn().
				Str("symbol", symbol).
				Err(err).
				Msg("snapshot fetch failed")
		}
		return nil, err
	}

	// A depth payload without a sequence number or without both sides is
	// useless for synchronization; classify it as an upstream error.
	if resp.LastUpdateID == 0 || resp.Bids == nil || resp.Asks == nil {
		f.tracker.OnError(symbol, now)
		logger.Log.Warn().
			Str("symbol", symbol).
			Msg("snapshot fetch returned malformed payload")
		return nil, ErrMalformedSnapshot
	}

	f.tracker.OnSuccess(symbol, now)

	snap := &Snapshot{
		Symbol:       symbol,
		LastUpdateID: resp.LastUpdateID,
		Bids:         resp.Bids,
		Asks:         resp.Asks,
		CachedAt:     now,
	}
	f.cache.Put(snap)
	return snap, nil
}
