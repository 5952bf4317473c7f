package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrSignaled is the shutdown cause recorded for OS termination signals.
var ErrSignaled = errors.New("termination signal received")

// State is the process-wide state shared by the sampler, watchdog, HTTP
// handlers and main loop. It is created once at startup and passed around
// by pointer.
type State struct {
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelCauseFunc
	stopping  atomic.Bool
}

func NewState(parent context.Context) *State {
	ctx, cancel := context.WithCancelCause(parent)
	return &State{
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context is cancelled when shutdown is requested. Every loop derives from it.
func (s *State) Context() context.Context {
	return s.ctx
}

func (s *State) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *State) StartedAt() time.Time {
	return s.startedAt
}

// Uptime is the program uptime at now.
func (s *State) Uptime(now time.Time) time.Duration {
	d := now.Sub(s.startedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Shutdown requests process shutdown. Only the first call records its cause;
// it reports whether this call performed the transition.
func (s *State) Shutdown(cause error) bool {
	if !s.stopping.CompareAndSwap(false, true) {
		return false
	}
	if cause == nil {
		cause = context.Canceled
	}
	s.cancel(cause)
	return true
}

func (s *State) Stopping() bool {
	return s.stopping.Load()
}

// Cause returns the error passed to the first Shutdown call, or nil.
func (s *State) Cause() error {
	if !s.Stopping() {
		return nil
	}
	return context.Cause(s.ctx)
}
