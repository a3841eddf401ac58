// Package matchingengine implements spec §4.4: a single thread that drains
// ring R1 (client requests), dispatches NEW/CANCEL onto the ticker's book,
// and forwards the book's emitted responses/market updates onto rings R2
// and R3. Directly grounded on the teacher's
// events_ring.go:StartInputDistributor/StartOutputDistributor dispatch
// loop shape, generalized from femto_go's single flat Engine to per-
// ticker book.Book instances addressed by domain.TickerID, and from
// blocking Read to the spec's non-blocking-spin PeekRead/CommitRead.
package matchingengine

import (
	"github.com/ejyy/femto-plant/internal/book"
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/ring"
)

// Engine owns one book per ticker and the two output rings their
// responses/market updates are published to.
type Engine struct {
	logger *logging.Logger

	books [domain.MaxTickers]*book.Book

	inbound    *ring.Ring[domain.MEClientRequest]
	responses  *ring.Ring[domain.MEClientResponse]
	marketData *ring.Ring[domain.MEMarketUpdate]
}

// New creates a matching engine with one freshly allocated book per
// ticker id in 0..domain.MaxTickers, wired to the given rings.
func New(logger *logging.Logger, cfg book.Config, inbound *ring.Ring[domain.MEClientRequest], responses *ring.Ring[domain.MEClientResponse], marketData *ring.Ring[domain.MEMarketUpdate]) *Engine {
	e := &Engine{
		logger:     logger,
		inbound:    inbound,
		responses:  responses,
		marketData: marketData,
	}
	for t := domain.TickerID(0); t < domain.MaxTickers; t++ {
		tid := t
		e.books[t] = book.New(tid, cfg, logger,
			func(r domain.MEClientResponse) { e.publishResponse(r) },
			func(u domain.MEMarketUpdate) { e.publishMarketUpdate(u) },
		)
	}
	return e
}

func (e *Engine) publishResponse(r domain.MEClientResponse) {
	slot := e.responses.ReserveWrite()
	if slot == nil {
		logging.Fatalf("matchingengine: response ring overrun")
	}
	*slot = r
	e.responses.CommitWrite()
}

func (e *Engine) publishMarketUpdate(u domain.MEMarketUpdate) {
	slot := e.marketData.ReserveWrite()
	if slot == nil {
		logging.Fatalf("matchingengine: market data ring overrun")
	}
	*slot = u
	e.marketData.CommitWrite()
}

// Poll drains everything currently available on the inbound ring and
// dispatches it. It never blocks — spec §4.4's "non-blocking-spin": if
// nothing is queued it returns immediately having done no work.
func (e *Engine) Poll() {
	for {
		slot := e.inbound.PeekRead()
		if slot == nil {
			return
		}
		req := *slot
		e.inbound.CommitRead()
		e.dispatch(req)
	}
}

// Run spins Poll in a tight loop until stop is closed, the spec's
// "infinite spin-poll loop" (§5).
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

func (e *Engine) dispatch(req domain.MEClientRequest) {
	if req.TickerID >= domain.MaxTickers {
		logging.Fatalf("matchingengine: ticker id %d out of range", req.TickerID)
	}
	b := e.books[req.TickerID]
	switch req.Type {
	case domain.ClientRequestNew:
		b.Add(req.ClientID, req.OrderID, req.Side, req.Price, req.Qty)
	case domain.ClientRequestCancel:
		b.Cancel(req.ClientID, req.OrderID)
	default:
		logging.Fatalf("matchingengine: unknown request type %d", req.Type)
	}
}
