package book

import "github.com/ejyy/femto-plant/internal/pool"

// orderArena and levelArena wrap internal/pool for the two record kinds a
// book allocates from, giving each its own capacity while keeping the
// pool.Pool machinery (rotating-cursor allocate, free-by-index) shared.
type orderArena struct{ p *pool.Pool[order] }

func newOrderArena(capacity int) orderArena {
	return orderArena{p: pool.New[order](capacity)}
}

func (a orderArena) allocate(o order) (uint32, *order) { return a.p.Allocate(o) }
func (a orderArena) at(idx uint32) *order              { return a.p.At(idx) }
func (a orderArena) free(idx uint32)                   { a.p.Deallocate(idx) }

type levelArena struct{ p *pool.Pool[level] }

func newLevelArena(capacity int) levelArena {
	return levelArena{p: pool.New[level](capacity)}
}

func (a levelArena) allocate(l level) (uint32, *level) { return a.p.Allocate(l) }
func (a levelArena) at(idx uint32) *level              { return a.p.At(idx) }
func (a levelArena) free(idx uint32)                   { a.p.Deallocate(idx) }
