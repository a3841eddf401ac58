// Package snapshot implements spec §4.8: the snapshot synthesiser. It
// mirrors the book state implied by the incremental stream (R4) into a
// per-ticker sparse table keyed by market_order_id, tracks the last
// incremental sequence it has observed (fatal on a detected gap, since the
// synthesiser itself must never fall behind), and periodically emits a
// full snapshot cycle (SNAPSHOT_START, CLEAR+ADD per ticker, SNAPSHOT_END)
// on its own independently-numbered local sequence. Grounded on
// original_source's snapshot synthesizer design and built in the style of
// internal/matchingengine's drain loop.
package snapshot

import (
	"sort"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/netutil"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/wire"
)

// orderState mirrors one resting order as last reported by the
// incremental stream, enough to resynthesise an ADD on snapshot.
type orderState struct {
	tickerID domain.TickerID
	side     domain.Side
	price    domain.Price
	qty      domain.Qty
	priority domain.Priority
}

// Synthesiser builds periodic full-book snapshots from the incremental
// market-update stream.
type Synthesiser struct {
	logger *logging.Logger
	sender *netutil.McastSender

	fromPublisher *ring.Ring[domain.MDPMarketUpdate]

	lastIncSeq uint64
	haveSeen   bool

	// orders is indexed first by ticker, then by market order id.
	orders [domain.MaxTickers]map[domain.OrderID]orderState

	localSeq uint64
}

// New creates a synthesiser draining fromPublisher (ring R4).
func New(logger *logging.Logger, sender *netutil.McastSender, fromPublisher *ring.Ring[domain.MDPMarketUpdate]) *Synthesiser {
	s := &Synthesiser{
		logger:        logger,
		sender:        sender,
		fromPublisher: fromPublisher,
	}
	for i := range s.orders {
		s.orders[i] = make(map[domain.OrderID]orderState)
	}
	return s
}

// Poll drains everything currently queued on R4, updating the mirrored
// book state. A gap in the incremental sequence is fatal (spec §4.8,
// §7.3): the synthesiser's mirror would otherwise silently diverge from
// the true book.
func (s *Synthesiser) Poll() {
	for {
		slot := s.fromPublisher.PeekRead()
		if slot == nil {
			return
		}
		mdp := *slot
		s.fromPublisher.CommitRead()
		s.applyIncremental(mdp)
	}
}

func (s *Synthesiser) applyIncremental(mdp domain.MDPMarketUpdate) {
	if s.haveSeen && mdp.Seq != s.lastIncSeq+1 {
		logging.Fatalf("snapshot: incremental sequence gap, expected %d got %d", s.lastIncSeq+1, mdp.Seq)
	}
	s.lastIncSeq = mdp.Seq
	s.haveSeen = true

	u := mdp.Update
	if int(u.TickerID) >= domain.MaxTickers {
		logging.Fatalf("snapshot: ticker id %d out of range", u.TickerID)
	}
	table := s.orders[u.TickerID]

	switch u.Type {
	case domain.MarketUpdateAdd:
		table[u.OrderID] = orderState{tickerID: u.TickerID, side: u.Side, price: u.Price, qty: u.Qty, priority: u.Priority}
	case domain.MarketUpdateModify:
		if st, ok := table[u.OrderID]; ok {
			st.qty = u.Qty
			st.priority = u.Priority
			table[u.OrderID] = st
		}
	case domain.MarketUpdateCancel:
		delete(table, u.OrderID)
	case domain.MarketUpdateTrade:
		// Trade carries no resting-order mutation of its own; the
		// corresponding MODIFY/CANCEL for the resting order follows it in
		// the same match and is applied separately.
	default:
		logging.Fatalf("snapshot: unexpected incremental update type %v", u.Type)
	}
}

// PublishSnapshot emits one full snapshot cycle: SNAPSHOT_START, then for
// each ticker a CLEAR followed by one ADD per resting order, then
// SNAPSHOT_END carrying the incremental sequence as of cycle start (spec
// §4.8) so consumers know exactly where to splice in subsequent
// incrementals. Call on a periodic (>=60s) timer.
func (s *Synthesiser) PublishSnapshot() {
	asOfSeq := s.lastIncSeq
	// Local sequence restarts at 0 for every snapshot cycle (spec §4.8
	// step 1, §6): it numbers messages within this snapshot only, distinct
	// from the incremental sequence carried in order_id on start/end.
	s.localSeq = 0

	s.emit(domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: domain.OrderID(asOfSeq)})
	for tickerID, table := range s.orders {
		s.emit(domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: domain.TickerID(tickerID)})
		// Emitted in ascending priority order so a consumer rebuilding via
		// pbook's FIFO-tail append (which does not itself reorder on
		// priority) ends up with intra-level link order matching priority,
		// preserving invariant 2 across a snapshot-driven rebuild.
		orderIDs := make([]domain.OrderID, 0, len(table))
		for orderID := range table {
			orderIDs = append(orderIDs, orderID)
		}
		sort.Slice(orderIDs, func(i, j int) bool {
			return table[orderIDs[i]].priority < table[orderIDs[j]].priority
		})
		for _, orderID := range orderIDs {
			st := table[orderID]
			s.emit(domain.MEMarketUpdate{
				Type:     domain.MarketUpdateAdd,
				OrderID:  orderID,
				TickerID: st.tickerID,
				Side:     st.side,
				Price:    st.price,
				Qty:      st.qty,
				Priority: st.priority,
			})
		}
	}
	s.emit(domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotEnd, OrderID: domain.OrderID(asOfSeq)})
}

func (s *Synthesiser) emit(u domain.MEMarketUpdate) {
	seq := s.localSeq
	s.localSeq++

	var buf [wire.SizeMDPMarketUpdate]byte
	wire.PutMDPMarketUpdate(buf[:], domain.MDPMarketUpdate{Seq: seq, Update: u})
	if err := s.sender.Send(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.Logf("snapshot: multicast send failed: %v", err)
		}
	}
}
