// Package ring implements the single-producer/single-consumer lock-free
// ring of spec §4.1. It is a direct generalization of
// ejyy-femto_go/ringbuffer.go: same cache-line padded atomic write/read
// cursors and power-of-two index mask, but exposing the
// reserve_write/commit_write/peek_read/commit_read contract the spec
// calls for (a slot-at-a-time handshake, rather than the teacher's
// blocking bulk Push/Read) so that a non-blocking-spin consumer such as
// the matching engine (spec §4.4) can observe "nothing available" without
// writing into caller-supplied memory and without the producer ever
// retrying.
package ring

import (
	"sync/atomic"
)

const cacheLineSize = 64

// Ring is a bounded SPSC ring buffer of capacity N (rounded up internally
// to the next power of two). Exactly one goroutine may produce and exactly
// one may consume; the contract is enforced by convention, not by the
// type system, matching the source's single-threaded design.
type Ring[T any] struct {
	mask uint64
	buf  []T

	_pad0 [cacheLineSize]byte
	write uint64 // next slot index the producer will fill
	_pad1 [cacheLineSize - 8]byte
	read  uint64 // next slot index the consumer will take
	_pad2 [cacheLineSize - 8]byte
}

// New allocates a ring whose capacity is the next power of two >= n.
func New[T any](n int) *Ring[T] {
	cap := 1
	for cap < n {
		cap <<= 1
	}
	return &Ring[T]{
		mask: uint64(cap - 1),
		buf:  make([]T, cap),
	}
}

// Size returns the number of elements currently queued. Valid from either
// side: both cursors are loaded atomically. (ReserveWrite and PeekRead read
// their own side's cursor non-atomically, per the SPSC contract, and
// always load the cross-thread cursor atomically.)
func (r *Ring[T]) Size() int {
	write := atomic.LoadUint64(&r.write)
	read := atomic.LoadUint64(&r.read)
	return int(write - read)
}

// ReserveWrite returns a pointer to the next free slot for the producer to
// fill in place, or nil if the ring is full (caller must size the ring to
// absorb its worst burst; overflow is the caller's problem, not this
// type's — spec §4.1).
func (r *Ring[T]) ReserveWrite() *T {
	read := atomic.LoadUint64(&r.read)
	if r.write-read >= uint64(len(r.buf)) {
		return nil
	}
	return &r.buf[r.write&r.mask]
}

// CommitWrite publishes the slot most recently returned by ReserveWrite.
// Must be called exactly once per successful ReserveWrite, after the slot
// has been fully written.
func (r *Ring[T]) CommitWrite() {
	atomic.AddUint64(&r.write, 1)
}

// PeekRead returns a pointer to the next unconsumed slot, or nil if the
// ring is empty.
func (r *Ring[T]) PeekRead() *T {
	write := atomic.LoadUint64(&r.write)
	if r.read >= write {
		return nil
	}
	return &r.buf[r.read&r.mask]
}

// CommitRead releases the slot most recently returned by PeekRead. Must be
// called exactly once per successful PeekRead, after the slot's contents
// have been fully consumed.
func (r *Ring[T]) CommitRead() {
	atomic.AddUint64(&r.read, 1)
}
