// Package book implements the exchange-side limit order book of spec §3
// and §4.3: one instance per ticker, orders and price levels served from
// fixed-capacity pools (internal/pool), intrusive doubly-linked circular
// FIFOs at each price level, and a circular doubly-linked list of active
// price levels per side so the best price is always the list head (design
// note §9). This generalizes the teacher's direct-indexed
// `bidLevels/askLevels [MAX_PRICE_LEVELS]PriceLevel` arrays (which work
// because femto_go's price domain equals its level-array size) to the
// spec's direct-mapped `price % MAX_PRICE_LEVELS` index plus an explicit
// sorted level list, since this spec's price domain is wider than
// MAX_PRICE_LEVELS and two live prices must never collide in the same
// bucket (spec §3 invariant 3, ported rather than relaxed).
package book

import (
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
)

// nullIdx is the "no link" sentinel for pool-backed indices (design note §9).
const nullIdx = ^uint32(0)

// order is one resting (or momentarily in-flight) order, a node in two
// intrusive circular doubly-linked lists at once: the FIFO of orders at its
// price level (prev/next) and, indirectly, membership in that level.
type order struct {
	clientID      domain.ClientID
	clientOrderID domain.OrderID
	marketOrderID domain.OrderID
	tickerID      domain.TickerID
	side          domain.Side
	price         domain.Price
	qty           domain.Qty
	priority      domain.Priority

	prev  uint32 // order pool index, circular within its level
	next  uint32
	level uint32 // level pool index this order belongs to
}

// level is one price level: a side, a price, the head of its FIFO, and
// membership in the circular per-side list of active levels sorted with
// the best price at the head.
type level struct {
	side  domain.Side
	price domain.Price

	firstOrder uint32 // order pool index, circular FIFO head

	prevEntry uint32 // level pool index, circular per-side level list
	nextEntry uint32
}

// Config controls pool capacities; production defaults to the spec §3
// constants, tests use smaller pools.
type Config struct {
	OrderPoolCapacity int
	LevelPoolCapacity int
}

// DefaultConfig returns the spec-mandated capacities.
func DefaultConfig() Config {
	return Config{
		OrderPoolCapacity: domain.MaxOrderIDs,
		LevelPoolCapacity: domain.MaxPriceLevels,
	}
}

// ResponseSink receives client responses produced by Add/Cancel/Match, in
// emission order (spec §4.3/§4.4 — the book calls this synchronously and
// in-order; the caller is responsible for forwarding to ring R2).
type ResponseSink func(domain.MEClientResponse)

// MarketUpdateSink receives public market updates, in emission order
// (forwarded to ring R3).
type MarketUpdateSink func(domain.MEMarketUpdate)

// Book is one ticker's limit order book.
type Book struct {
	tickerID domain.TickerID
	logger   *logging.Logger

	sendResponse     ResponseSink
	sendMarketUpdate MarketUpdateSink

	orders orderArena
	levels levelArena

	priceIndex [domain.MaxPriceLevels]uint32 // price % MaxPriceLevels -> level idx, or nullIdx

	bidsByPrice uint32 // level idx, nullIdx if no bids
	asksByPrice uint32 // level idx, nullIdx if no asks

	// cidOidToOrder resolves (client_id, client_order_id) -> order pool
	// index. A nested map replaces the source's dense 2D array (spec §3
	// invariant 4): MAX_CLIENTS * MAX_ORDER_IDS direct-indexed storage
	// would be 2^28 entries per ticker, which is not a reasonable Go
	// slice; the map preserves O(1)-amortized lookup semantics over the
	// sparse subset of (client, order) pairs that are ever live.
	cidOidToOrder map[domain.ClientID]map[domain.OrderID]uint32

	nextMarketOrderID domain.OrderID
}

// New creates an empty book for one ticker.
func New(tickerID domain.TickerID, cfg Config, logger *logging.Logger, onResponse ResponseSink, onMarketUpdate MarketUpdateSink) *Book {
	b := &Book{
		tickerID:          tickerID,
		logger:            logger,
		sendResponse:      onResponse,
		sendMarketUpdate:  onMarketUpdate,
		orders:            newOrderArena(cfg.OrderPoolCapacity),
		levels:            newLevelArena(cfg.LevelPoolCapacity),
		bidsByPrice:       nullIdx,
		asksByPrice:       nullIdx,
		cidOidToOrder:     make(map[domain.ClientID]map[domain.OrderID]uint32),
		nextMarketOrderID: 1,
	}
	for i := range b.priceIndex {
		b.priceIndex[i] = nullIdx
	}
	return b
}

func priceToIndex(price domain.Price) int {
	idx := int64(price) % domain.MaxPriceLevels
	if idx < 0 {
		idx += domain.MaxPriceLevels
	}
	return int(idx)
}

func (b *Book) levelAt(price domain.Price) *level {
	idx := b.priceIndex[priceToIndex(price)]
	if idx == nullIdx {
		return nil
	}
	return b.levels.at(idx)
}

func bestHead(b *Book, side domain.Side) *uint32 {
	if side == domain.SideBuy {
		return &b.bidsByPrice
	}
	return &b.asksByPrice
}

// moreAggressive reports whether price a should sit ahead of price b in
// the sorted level list for side (descending for BUY, ascending for SELL).
func moreAggressive(side domain.Side, a, b domain.Price) bool {
	if side == domain.SideBuy {
		return a > b
	}
	return a < b
}

// insertLevel links a newly allocated, not-yet-linked level into the
// sorted circular per-side list, updating the side's best-price head if
// the new level is now most aggressive. Mirrors
// original_source/.../order_book.hpp AddOrdersAtPrice, adapted to index
// links instead of raw pointers.
func (b *Book) insertLevel(newIdx uint32) {
	newLevel := b.levels.at(newIdx)
	b.priceIndex[priceToIndex(newLevel.price)] = newIdx

	headPtr := bestHead(b, newLevel.side)
	if *headPtr == nullIdx {
		*headPtr = newIdx
		newLevel.prevEntry = newIdx
		newLevel.nextEntry = newIdx
		return
	}

	head := *headPtr
	target := head
	targetLevel := b.levels.at(target)
	addAfter := moreAggressive(newLevel.side, targetLevel.price, newLevel.price)
	if addAfter {
		target = targetLevel.nextEntry
		targetLevel = b.levels.at(target)
		addAfter = moreAggressive(newLevel.side, targetLevel.price, newLevel.price)
	}
	for addAfter && target != head {
		target = targetLevel.nextEntry
		targetLevel = b.levels.at(target)
		addAfter = moreAggressive(newLevel.side, targetLevel.price, newLevel.price)
	}

	if addAfter {
		if target == head {
			target = targetLevel.prevEntry
			targetLevel = b.levels.at(target)
		}
		nextOfTarget := b.levels.at(targetLevel.nextEntry)
		newLevel.prevEntry = target
		newLevel.nextEntry = targetLevel.nextEntry
		nextOfTarget.prevEntry = newIdx
		targetLevel.nextEntry = newIdx
		return
	}

	// insert before target
	prevOfTarget := b.levels.at(targetLevel.prevEntry)
	newLevel.prevEntry = targetLevel.prevEntry
	newLevel.nextEntry = target
	prevOfTarget.nextEntry = newIdx
	targetLevel.prevEntry = newIdx

	if moreAggressive(newLevel.side, newLevel.price, b.levels.at(head).price) {
		*headPtr = newIdx
	}
}

// removeLevel unlinks the level at price/side from the sorted list and the
// direct price map, returning its pool slot.
func (b *Book) removeLevel(side domain.Side, price domain.Price) {
	headPtr := bestHead(b, side)
	idx := b.priceIndex[priceToIndex(price)]
	lvl := b.levels.at(idx)

	if lvl.nextEntry == idx { // last level on this side
		*headPtr = nullIdx
	} else {
		prev := b.levels.at(lvl.prevEntry)
		next := b.levels.at(lvl.nextEntry)
		prev.nextEntry = lvl.nextEntry
		next.prevEntry = lvl.prevEntry
		if idx == *headPtr {
			*headPtr = lvl.nextEntry
		}
	}

	b.priceIndex[priceToIndex(price)] = nullIdx
	b.levels.free(idx)
}

// nextPriority returns the priority the next order appended to price's
// FIFO should receive: the current tail's priority + 1, or 1 if the level
// does not yet exist (design note §9 — priority never resets except on an
// empty level).
func (b *Book) nextPriority(price domain.Price) domain.Priority {
	lvl := b.levelAt(price)
	if lvl == nil {
		return 1
	}
	first := b.orders.at(lvl.firstOrder)
	tail := b.orders.at(first.prev)
	return tail.priority + 1
}

// linkOrderToLevel appends ord (already populated) to the FIFO tail of its
// price level, creating the level if it does not exist yet.
func (b *Book) linkOrderToLevel(ordIdx uint32) {
	ord := b.orders.at(ordIdx)
	lvl := b.levelAt(ord.price)
	if lvl == nil {
		ord.prev, ord.next = ordIdx, ordIdx
		newIdx, newLevel := b.levels.allocate(level{side: ord.side, price: ord.price, firstOrder: ordIdx})
		ord.level = newIdx
		b.insertLevel(newIdx)
		_ = newLevel
		return
	}
	first := b.orders.at(lvl.firstOrder)
	tail := b.orders.at(first.prev)
	tail.next = ordIdx
	ord.prev = first.prev
	ord.next = lvl.firstOrder
	first.prev = ordIdx
	ord.level = b.priceIndex[priceToIndex(ord.price)]
}

// unlinkOrder removes ord from its level's FIFO, removing the level itself
// if ord was the only resident.
func (b *Book) unlinkOrder(ordIdx uint32) {
	ord := b.orders.at(ordIdx)
	lvl := b.levels.at(ord.level)

	if ord.prev == ordIdx { // only order at this level
		b.removeLevel(ord.side, ord.price)
	} else {
		before := b.orders.at(ord.prev)
		after := b.orders.at(ord.next)
		before.next = ord.next
		after.prev = ord.prev
		if lvl.firstOrder == ordIdx {
			lvl.firstOrder = ord.next
		}
	}
	ord.prev, ord.next = nullIdx, nullIdx
}

func (b *Book) forgetClientOrder(clientID domain.ClientID, clientOrderID domain.OrderID) {
	if m, ok := b.cidOidToOrder[clientID]; ok {
		delete(m, clientOrderID)
	}
}

func (b *Book) rememberClientOrder(clientID domain.ClientID, clientOrderID domain.OrderID, ordIdx uint32) {
	m, ok := b.cidOidToOrder[clientID]
	if !ok {
		m = make(map[domain.OrderID]uint32)
		b.cidOidToOrder[clientID] = m
	}
	m[clientOrderID] = ordIdx
}

func (b *Book) lookupClientOrder(clientID domain.ClientID, clientOrderID domain.OrderID) (uint32, bool) {
	m, ok := b.cidOidToOrder[clientID]
	if !ok {
		return 0, false
	}
	idx, ok := m[clientOrderID]
	return idx, ok
}

// BBO is the top-of-book snapshot derived value of spec §3.
type BBO struct {
	BidPrice domain.Price
	BidQty   domain.Qty
	AskPrice domain.Price
	AskQty   domain.Qty
}

// TopOfBook recomputes the current BBO by summing qty over each side's
// best-level FIFO.
func (b *Book) TopOfBook() BBO {
	var bbo BBO
	if b.bidsByPrice != nullIdx {
		lvl := b.levels.at(b.bidsByPrice)
		bbo.BidPrice = lvl.price
		bbo.BidQty = b.sumLevelQty(lvl.firstOrder)
	}
	if b.asksByPrice != nullIdx {
		lvl := b.levels.at(b.asksByPrice)
		bbo.AskPrice = lvl.price
		bbo.AskQty = b.sumLevelQty(lvl.firstOrder)
	}
	return bbo
}

func (b *Book) sumLevelQty(firstOrder uint32) domain.Qty {
	var total domain.Qty
	cur := firstOrder
	for {
		ord := b.orders.at(cur)
		total += ord.qty
		cur = ord.next
		if cur == firstOrder {
			break
		}
	}
	return total
}
