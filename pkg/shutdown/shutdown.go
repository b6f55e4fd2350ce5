package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/BullionBear/depthgate/pkg/logger"
)

// Shutdown coordinates process teardown: it owns the root context and runs
// registered callbacks, each bounded by its own timeout, once a signal
// arrives.
type Shutdown struct {
	rootCtx   context.Context
	cancel    func()
	mutex     sync.Mutex
	callbacks []callback
	sigCh     chan os.Signal
}

type callback struct {
	name    string
	f       func()
	timeout time.Duration
}

func NewShutdown() *Shutdown {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	return &Shutdown{
		rootCtx:   ctx,
		cancel:    cancel,
		callbacks: make([]callback, 0),
		sigCh:     sigCh,
	}
}

// HookShutdownCallback registers a callback function to be executed during shutdown.
// If timeout is 0, the callback runs without a timeout; otherwise an overrun
// is logged and abandoned.
func (s *Shutdown) HookShutdownCallback(name string, f func(), timeout time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.callbacks = append(s.callbacks, callback{
		name:    name,
		f:       f,
		timeout: timeout,
	})
}

func (s *Shutdown) Context() context.Context {
	return s.rootCtx
}

func (s *Shutdown) SysDown() <-chan struct{} {
	return s.rootCtx.Done()
}

func (s *Shutdown) WaitForShutdown(sigs ...os.Signal) {
	if len(sigs) > 0 {
		signal.Notify(s.sigCh, sigs...)
	}
	<-s.sigCh
	s.cancel()
	logger.Log.Info().Msg("shutdown signal received")
	s.shutdown()
	logger.Log.Info().Msg("shutdown completed")
}

// ShutdownNow manually triggers the shutdown process without waiting for a
// signal.
func (s *Shutdown) ShutdownNow() {
	s.cancel()
	logger.Log.Info().Msg("manual shutdown triggered")
	s.shutdown()
	logger.Log.Info().Msg("shutdown completed")
}

func (s *Shutdown) shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	wg := sync.WaitGroup{}
	for _, f := range s.callbacks {
		wg.Add(1)
		go func(f callback) {
			defer wg.Done()
			logger.Log.Info().Str("name", f.name).Msg("begin shutdown callback")

			var ctx context.Context
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(context.Background(), f.timeout)
				defer cancel()
			} else {
				ctx = context.Background()
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				f.f()
			}()

			select {
			case <-done:
				logger.Log.Info().Str("name", f.name).Msg("shutdown callback done")
			case <-ctx.Done():
				if f.timeout > 0 {
					logger.Log.Error().
						Str("name", f.name).
						Dur("timeout", f.timeout).
						Msg("shutdown callback timeout")
				}
			}
		}(f)
	}
	wg.Wait()
}
