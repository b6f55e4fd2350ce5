package orderbook

import (
	"context"
	"time"

	"github.com/BullionBear/depthgate/internal/depth"
	"github.com/BullionBear/depthgate/pkg/exchange/binancefuture"
	"github.com/BullionBear/depthgate/pkg/logger"
)

const schedulerTick = 100 * time.Millisecond

// Scheduler drives snapshot fetches for every engine that needs one. The
// upstream rate-limits aggressive concurrent depth calls, so dispatching is
// strictly serial: at most one snapshot is in flight process-wide.
type Scheduler struct {
	manager *Manager
	fetcher *depth.Fetcher
	limit   int
}

// NewScheduler creates a snapshot scheduler. limit is the snapshot depth to
// request, capped at the upstream maximum.
func NewScheduler(manager *Manager, fetcher *depth.Fetcher, limit int) *Scheduler {
	if limit <= 0 || limit > binancefuture.MaxDepthLimit {
		limit = binancefuture.MaxDepthLimit
	}
	return &Scheduler{
		manager: manager,
		fetcher: fetcher,
		limit:   limit,
	}
}

// Run ticks until the context is cancelled. Each tick collects the engines
// due a resync, dispatches their snapshots one at a time, and sweeps
// retired engines.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, engine := range s.manager.ResyncCandidates(now) {
				select {
				case <-ctx.Done():
					return
				default:
				}
				s.resync(ctx, engine)
			}
			s.manager.Sweep(now)
		}
	}
}

// resync runs one snapshot attempt for one engine.
func (s *Scheduler) resync(ctx context.Context, engine *Engine) {
	if !engine.BeginResync() {
		return
	}

	snap, err := s.fetcher.Fetch(ctx, engine.Symbol(), s.limit)
	if err != nil {
		engine.FailResync()
		return
	}

	if !engine.CommitSnapshot(snap) {
		logger.Log.Debug().
			Str("symbol", engine.Symbol()).
			Msg("snapshot did not fuse, will retry")
	}
}
