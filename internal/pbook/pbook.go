// Package pbook implements spec §4.10: the participant's reconstructed
// order book. It mirrors internal/book's link-list discipline
// (index-based intrusive links, price-ordered level list addressed
// through a direct-mapped price%MaxPriceLevels index) but is keyed only
// by market_order_id, since the participant never sees client order ids
// for other participants' orders, and it is driven purely by incoming
// MEMarketUpdate events rather than direct Add/Cancel calls. Grounded
// directly on internal/book/book.go's insertLevel/removeLevel/
// linkOrderToLevel algorithms, generalized to the update-driven consumer
// side per original_source's market_order_book.
package pbook

import (
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
)

const nullIdx = ^uint32(0)

type order struct {
	marketOrderID domain.OrderID
	side          domain.Side
	price         domain.Price
	qty           domain.Qty
	priority      domain.Priority

	prev  uint32
	next  uint32
	level uint32
}

type level struct {
	side  domain.Side
	price domain.Price

	firstOrder uint32

	prevEntry uint32
	nextEntry uint32
}

// Config sizes the participant book's backing pools.
type Config struct {
	OrderPoolCapacity int
	LevelPoolCapacity int
}

// DefaultConfig mirrors the exchange book's default sizing.
func DefaultConfig() Config {
	return Config{OrderPoolCapacity: domain.MaxOrderIDs, LevelPoolCapacity: domain.MaxPriceLevels}
}

// BBO is the participant's view of the best bid/offer.
type BBO struct {
	BidPrice domain.Price
	BidQty   domain.Qty
	AskPrice domain.Price
	AskQty   domain.Qty
}

// UpdateCallback is invoked after every mutation with the new top of book.
type UpdateCallback func(BBO)

// TradeCallback is invoked for every TRADE update observed for this
// ticker, forwarded verbatim (spec §4.10: "TRADE: forwarded to the
// trading engine without touching the book").
type TradeCallback func(domain.MEMarketUpdate)

// Book is one ticker's participant-side reconstructed order book.
type Book struct {
	tickerID domain.TickerID
	cfg      Config
	logger   *logging.Logger
	onUpdate UpdateCallback
	onTrade  TradeCallback

	orders orderArena
	levels levelArena

	priceIndex [domain.MaxPriceLevels]uint32

	bidsByPrice uint32
	asksByPrice uint32

	orderIDToSlot map[domain.OrderID]uint32
}

// New creates an empty participant book for tickerID.
func New(tickerID domain.TickerID, cfg Config, logger *logging.Logger, onUpdate UpdateCallback) *Book {
	b := &Book{
		tickerID:      tickerID,
		cfg:           cfg,
		logger:        logger,
		onUpdate:      onUpdate,
		orders:        newOrderArena(cfg.OrderPoolCapacity),
		levels:        newLevelArena(cfg.LevelPoolCapacity),
		bidsByPrice:   nullIdx,
		asksByPrice:   nullIdx,
		orderIDToSlot: make(map[domain.OrderID]uint32),
	}
	for i := range b.priceIndex {
		b.priceIndex[i] = nullIdx
	}
	return b
}

// SetOnTrade registers cb to be invoked for every TRADE update observed
// on this ticker. Separate from the New constructor so cmd/participant
// can wire it after the strategy is selected.
func (b *Book) SetOnTrade(cb TradeCallback) {
	b.onTrade = cb
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

func moreAggressive(side domain.Side, a, bPrice domain.Price) bool {
	if side == domain.SideBuy {
		return a > bPrice
	}
	return a < bPrice
}

// insertLevel links a newly allocated, not-yet-linked level into the
// sorted circular per-side list. Identical algorithm to
// internal/book.Book.insertLevel.
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

	prevOfTarget := b.levels.at(targetLevel.prevEntry)
	newLevel.prevEntry = targetLevel.prevEntry
	newLevel.nextEntry = target
	prevOfTarget.nextEntry = newIdx
	targetLevel.prevEntry = newIdx

	if moreAggressive(newLevel.side, newLevel.price, b.levels.at(head).price) {
		*headPtr = newIdx
	}
}

func (b *Book) removeLevel(side domain.Side, price domain.Price) {
	headPtr := bestHead(b, side)
	idx := b.priceIndex[priceToIndex(price)]
	lvl := b.levels.at(idx)

	if lvl.nextEntry == idx {
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

func (b *Book) linkOrderToLevel(ordIdx uint32) {
	ord := b.orders.at(ordIdx)
	lvl := b.levelAt(ord.price)
	if lvl == nil {
		ord.prev, ord.next = ordIdx, ordIdx
		newIdx, _ := b.levels.allocate(level{side: ord.side, price: ord.price, firstOrder: ordIdx})
		ord.level = newIdx
		b.insertLevel(newIdx)
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

func (b *Book) unlinkOrder(ordIdx uint32) {
	ord := b.orders.at(ordIdx)
	lvl := b.levels.at(ord.level)

	if ord.prev == ordIdx {
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

// Apply consumes one incremental market update, mutating the mirrored
// book state and invoking onUpdate with the resulting top of book. CLEAR
// resets the entire ticker's book (used at snapshot boundaries); TRADE
// carries no structural mutation of its own — the resting order's
// MODIFY/CANCEL that accompanies it in the same match is applied
// separately.
func (b *Book) Apply(u domain.MEMarketUpdate) {
	switch u.Type {
	case domain.MarketUpdateClear:
		b.reset()
	case domain.MarketUpdateAdd:
		b.add(u)
	case domain.MarketUpdateModify:
		b.modify(u)
	case domain.MarketUpdateCancel:
		b.cancel(u)
	case domain.MarketUpdateTrade:
		if b.onTrade != nil {
			b.onTrade(u)
		}
		return
	default:
		logging.Fatalf("pbook: unexpected update type %v", u.Type)
	}
	if b.onUpdate != nil {
		b.onUpdate(b.TopOfBook())
	}
}

func (b *Book) reset() {
	b.orders = newOrderArena(b.orders.cap())
	b.levels = newLevelArena(b.levels.cap())
	for i := range b.priceIndex {
		b.priceIndex[i] = nullIdx
	}
	b.bidsByPrice = nullIdx
	b.asksByPrice = nullIdx
	b.orderIDToSlot = make(map[domain.OrderID]uint32)
}

func (b *Book) add(u domain.MEMarketUpdate) {
	ordIdx, ord := b.orders.allocate(order{marketOrderID: u.OrderID, side: u.Side, price: u.Price, qty: u.Qty, priority: u.Priority})
	b.linkOrderToLevel(ordIdx)
	b.orderIDToSlot[u.OrderID] = ordIdx
	_ = ord
}

func (b *Book) modify(u domain.MEMarketUpdate) {
	ordIdx, ok := b.orderIDToSlot[u.OrderID]
	if !ok {
		if b.logger != nil {
			b.logger.Logf("pbook: MODIFY for unknown order %d", u.OrderID)
		}
		return
	}
	ord := b.orders.at(ordIdx)
	ord.qty = u.Qty
	ord.priority = u.Priority
}

func (b *Book) cancel(u domain.MEMarketUpdate) {
	ordIdx, ok := b.orderIDToSlot[u.OrderID]
	if !ok {
		if b.logger != nil {
			b.logger.Logf("pbook: CANCEL for unknown order %d", u.OrderID)
		}
		return
	}
	b.unlinkOrder(ordIdx)
	delete(b.orderIDToSlot, u.OrderID)
	b.orders.free(ordIdx)
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
