// Package sequencer implements the FIFO ingress sequencer of spec §4.5: a
// bounded buffer of (recv_time, request) pairs that is stably sorted by
// receive timestamp and flushed into ring R1 once per outer epoll round,
// guaranteeing cross-client FIFO fairness within one round even though TCP
// receive callbacks don't fire in timestamp order. There is no direct
// teacher precedent (femto_go dispatches requests to its engine
// immediately on receipt with no batching stage); this is built fresh in
// the teacher's plain style, directly grounded on
// original_source/src/include/order_server/fifo_sequencer.hpp's
// add()/sequence_and_publish() contract (spec §4.5).
package sequencer

import (
	"sort"
	"sync"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/ring"
)

type pending struct {
	recvTimeNanos int64
	request       domain.MEClientRequest
}

// Sequencer buffers requests across one epoll round and flushes them,
// stably sorted by receive time, into the matching engine's inbound ring.
// buf is guarded by mu: Add is called from every order-server connection
// goroutine while SequenceAndPublish runs from the single flush loop, and
// spec §5 forbids multi-producer concurrency on any queue — the mutex is
// what actually enforces "funnel to one owner" here, since the buffer
// itself has many writers.
type Sequencer struct {
	mu      sync.Mutex
	buf     []pending
	inbound *ring.Ring[domain.MEClientRequest]
}

// New creates a sequencer with the spec §3 MaxPendingSeq capacity.
func New(inbound *ring.Ring[domain.MEClientRequest]) *Sequencer {
	return &Sequencer{
		buf:     make([]pending, 0, domain.MaxPendingSeq),
		inbound: inbound,
	}
}

// Add enqueues one fully-framed request with its receive timestamp.
// Capacity overflow is fatal (spec §4.5, §7.3): the caller is expected to
// have sized rounds to stay within MaxPendingSeq.
func (s *Sequencer) Add(recvTimeNanos int64, request domain.MEClientRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= cap(s.buf) {
		logging.Fatalf("sequencer: pending buffer overflow (capacity %d)", cap(s.buf))
	}
	s.buf = append(s.buf, pending{recvTimeNanos: recvTimeNanos, request: request})
}

// Pending reports how many requests are currently buffered this round.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// SequenceAndPublish stably sorts the round's buffered requests by receive
// timestamp and flushes them into the inbound ring in that order, then
// empties the buffer. Called once per outer poll iteration, after all of
// that round's receive events have been drained (spec §4.5) — a
// per-message flush would give first-to-arrive-wins instead of
// earliest-kernel-timestamp-wins (design note §9).
func (s *Sequencer) SequenceAndPublish() {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	// Take the round's buffer for this goroutine alone to sort and drain;
	// Add continues appending into a fresh slice under the lock while this
	// one is published, rather than racing on the same backing array.
	round := s.buf
	s.buf = make([]pending, 0, cap(round))
	s.mu.Unlock()

	sort.SliceStable(round, func(i, j int) bool {
		return round[i].recvTimeNanos < round[j].recvTimeNanos
	})
	for _, p := range round {
		slot := s.inbound.ReserveWrite()
		if slot == nil {
			logging.Fatalf("sequencer: inbound ring overrun on publish")
		}
		*slot = p.request
		s.inbound.CommitWrite()
	}
}
