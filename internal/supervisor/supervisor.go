// Package supervisor starts the per-role goroutines of one plant process
// (spec §5: one goroutine per thread role, none sharing state except the
// rings and a single running flag) and coordinates the two-stage graceful
// shutdown original_source/src/exchange_main.cpp performs on SIGINT: a
// grace period, flip the running flag, a second grace period, then tear
// down. golang.org/x/sync/errgroup supplies the fan-out/first-error
// capture (grounded on yanun0323-go-hft's direct dependency on
// golang.org/x/sync); the hot loops it wraps are still the spec's
// "infinite spin-poll loop", not cooperative tasks — errgroup only owns
// shutdown coordination and the fatal-abort propagation path of §7.3.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Supervisor owns the one running flag (spec §5: "a volatile running
// flag... is the only cross-thread datum outside rings") and the set of
// goroutines reading it.
type Supervisor struct {
	g       *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
}

// New creates a Supervisor with the running flag set.
func New() *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	s := &Supervisor{g: g, ctx: ctx, cancel: cancel}
	s.running.Store(true)
	return s
}

// Done returns the channel hot loops select on to detect shutdown — the
// same channel every Run(stop <-chan struct{}) method in this repo
// already expects.
func (s *Supervisor) Done() <-chan struct{} { return s.ctx.Done() }

// Running reports the current value of the running flag.
func (s *Supervisor) Running() bool { return s.running.Load() }

// Go starts fn as one of the supervised roles. The first fn to return a
// non-nil error cancels Done() for every other role (errgroup's standard
// first-error-wins behavior), matching spec §7's "the failure of any one
// thread makes the plant unusable".
func (s *Supervisor) Go(fn func() error) {
	s.g.Go(fn)
}

// GoLoop adapts a Run(stop <-chan struct{}) style hot loop (the shape
// every component in this repo already exposes) into a supervised role.
func (s *Supervisor) GoLoop(run func(stop <-chan struct{})) {
	s.g.Go(func() error {
		run(s.ctx.Done())
		return nil
	})
}

// Stop flips the running flag and cancels Done().
func (s *Supervisor) Stop() {
	s.running.Store(false)
	s.cancel()
}

// Shutdown performs the two-stage graceful shutdown original_source's
// main()s use: sleep grace, flip the flag, sleep grace again, so
// downstream consumers have had the first window to drain before the flag
// changes and a second window to actually exit before the caller moves on
// to teardown (spec §6 "two-stage graceful shutdown").
func (s *Supervisor) Shutdown(grace time.Duration) {
	time.Sleep(grace)
	s.Stop()
	time.Sleep(grace)
}

// Wait blocks until every Go/GoLoop role has returned, propagating the
// first non-nil error if any role reported one.
func (s *Supervisor) Wait() error {
	return s.g.Wait()
}
