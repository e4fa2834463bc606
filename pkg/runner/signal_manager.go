package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalManager turns SIGINT and SIGTERM into context cancellation. The first
// signal cancels Context, so a Runner terminates the solver and postprocesses
// it before returning. A second signal while that is underway calls the force
// handler, which exits with status 130 unless WithForce replaces it.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	force  func(os.Signal)

	sigs     chan os.Signal
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	received int
}

// SignalOption configures a SignalManager.
type SignalOption func(*SignalManager)

// WithForce replaces the handler for a repeated signal.
func WithForce(fn func(os.Signal)) SignalOption {
	return func(sm *SignalManager) {
		sm.force = fn
	}
}

// NewSignalManager derives a cancellable context from parent and starts
// listening for signals.
func NewSignalManager(parent context.Context, opts ...SignalOption) *SignalManager {
	ctx, cancel := context.WithCancelCause(parent)
	sm := &SignalManager{
		ctx:    ctx,
		cancel: cancel,
		force:  func(os.Signal) { os.Exit(130) },
		sigs:   make(chan os.Signal, 2),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sm)
	}
	signal.Notify(sm.sigs, os.Interrupt, syscall.SIGTERM)

	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		for {
			select {
			case sig := <-sm.sigs:
				sm.handle(sig)
			case <-sm.stop:
				return
			}
		}
	}()
	return sm
}

// Context is cancelled by the first signal; context.Cause names it.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Received reports how many signals arrived.
func (sm *SignalManager) Received() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.received
}

func (sm *SignalManager) handle(sig os.Signal) {
	sm.mu.Lock()
	sm.received++
	n := sm.received
	sm.mu.Unlock()

	if n == 1 {
		sm.cancel(fmt.Errorf("received %s", sig))
		return
	}
	sm.force(sig)
}

// Stop stops listening and releases the context. It is safe to call twice.
func (sm *SignalManager) Stop() {
	sm.stopOnce.Do(func() {
		signal.Stop(sm.sigs)
		close(sm.stop)
		sm.wg.Wait()
		sm.cancel(context.Canceled)
	})
}
