// Package tradingengine implements spec §4.11: the participant's trading
// engine dispatch loop. It drains the mirrored client-response stream
// from the order gateway, invokes the order-update callback for each
// response, and tracks the time since the last event observed from either the
// order-response stream or the reconstructed book, so a caller can detect
// a silently stalled connection (original_source's trading_main.cpp polls
// this and aborts past a threshold). Grounded on
// internal/matchingengine's dispatch-loop shape, generalized from
// "drain ring, mutate book" to "drain ring, invoke strategy callbacks".
package tradingengine

import (
	"sync/atomic"
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/ring"
)

// OrderUpdateCallback is invoked for every client response concerning
// this participant's own orders (ACCEPTED, CANCELED, CANCEL_REJECTED, and
// the FILLED emitted for the participant's own side of a trade).
type OrderUpdateCallback func(domain.MEClientResponse)

// Clock abstracts wall-clock time for liveness tracking so tests don't
// depend on real elapsed time.
type Clock func() time.Time

// Engine dispatches the participant's inbound client-response stream to
// strategy callbacks and tracks event liveness.
type Engine struct {
	logger  *logging.Logger
	onOrder OrderUpdateCallback
	clock   Clock

	// lastTimeNanos is UnixNano of the last observed event. It's written
	// from the engine's own dispatch goroutine (Poll) and from whichever
	// goroutine drives the book (NotifyBookUpdate), and read from the
	// liveness watchdog's own goroutine — three goroutines touching one
	// value, so a plain time.Time (a multi-word struct) would be subject
	// to a torn read; atomic.Int64 makes the access itself indivisible.
	lastTimeNanos atomic.Int64

	responses *ring.Ring[domain.MEClientResponse]
}

// New creates a trading engine draining responses (the participant-side
// mirror of ring R2, populated by internal/gatewayclient) and invoking
// onOrder for each. clock defaults to time.Now if nil.
func New(logger *logging.Logger, responses *ring.Ring[domain.MEClientResponse], onOrder OrderUpdateCallback, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	e := &Engine{
		logger:    logger,
		onOrder:   onOrder,
		clock:     clock,
		responses: responses,
	}
	e.lastTimeNanos.Store(clock().UnixNano())
	return e
}

// Poll drains everything currently queued, non-blocking.
func (e *Engine) Poll() {
	for {
		slot := e.responses.PeekRead()
		if slot == nil {
			return
		}
		resp := *slot
		e.responses.CommitRead()
		e.lastTimeNanos.Store(e.clock().UnixNano())
		if e.onOrder != nil {
			e.onOrder(resp)
		}
	}
}

// Run spins Poll until stop is closed.
func (e *Engine) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			e.Poll()
		}
	}
}

// NotifyBookUpdate should be called by the strategy's
// pbook.UpdateCallback so book-driven activity also counts toward
// liveness, even on a quiet order stream.
func (e *Engine) NotifyBookUpdate() {
	e.lastTimeNanos.Store(e.clock().UnixNano())
}

// SilentSeconds reports how long it has been since the last observed
// event from either stream.
func (e *Engine) SilentSeconds() float64 {
	last := time.Unix(0, e.lastTimeNanos.Load())
	return e.clock().Sub(last).Seconds()
}
