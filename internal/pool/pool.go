// Package pool implements the fixed-capacity object pool of spec §4.2: a
// slab of N slots, each {value, is_free}, allocated from with a rotating
// cursor and freed by index. Per design note §9, this is an arena+index
// reimplementation of the source's pointer-pool: a slice-backed slab
// addressed by a uint32 index rather than raw pointer arithmetic against
// the slab base. No pack library offers a fixed-slab allocator (this is a
// hot-path memory-management primitive, not a concern any ecosystem
// dependency owns); the rotating-cursor scan is original to the domain,
// grounded in the arena-by-index idiom the teacher already uses for its
// own `Engine.orders [MAX_ORDERS]Order` arena.
package pool

import "github.com/ejyy/femto-plant/internal/logging"

// Pool is a fixed-capacity slab of T, indexed by uint32.
type Pool[T any] struct {
	slots  []T
	free   []bool
	cursor uint32
}

// New allocates a pool with capacity n. All slots start free.
func New[T any](n int) *Pool[T] {
	p := &Pool[T]{
		slots: make([]T, n),
		free:  make([]bool, n),
	}
	for i := range p.free {
		p.free[i] = true
	}
	return p
}

// Cap returns the pool's fixed capacity.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Allocate finds the next free slot starting from the rotating cursor,
// stores init in it, marks it used, and returns its index and a pointer to
// the stored value. It aborts via logging.Fatalf (a fatal, per spec
// §7.3 — pool exhaustion is an invariant violation, same taxonomy as
// every other hot-path abort in this repo) if a full scan finds no free
// slot.
func (p *Pool[T]) Allocate(init T) (uint32, *T) {
	n := uint32(len(p.slots))
	for i := uint32(0); i < n; i++ {
		idx := (p.cursor + i) % n
		if p.free[idx] {
			p.slots[idx] = init
			p.free[idx] = false
			p.cursor = (idx + 1) % n
			return idx, &p.slots[idx]
		}
	}
	logging.Fatalf("pool: exhausted — no free slot after full scan")
	panic("unreachable")
}

// Deallocate marks idx free again. The slot's value is left in place until
// the next Allocate overwrites it (matching the source's
// deallocate-by-flag-flip, no eager zeroing on the hot path).
func (p *Pool[T]) Deallocate(idx uint32) {
	p.free[idx] = true
}

// At returns a pointer to the value stored at idx, regardless of free
// state — callers that already hold a validated index (e.g. from an
// intrusive link) use this for direct access without a second bounds
// check.
func (p *Pool[T]) At(idx uint32) *T {
	return &p.slots[idx]
}

// IsFree reports whether idx currently holds no live value.
func (p *Pool[T]) IsFree(idx uint32) bool {
	return p.free[idx]
}
