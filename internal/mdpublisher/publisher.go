// Package mdpublisher implements spec §4.7: the market-data publisher
// that drains the matching engine's market-update ring (R3), assigns a
// monotonically increasing incremental sequence number shared across all
// tickers, and multicasts each (seq, update) pair to subscribers while
// also feeding a copy to the snapshot synthesiser via ring R4. Grounded on
// the teacher's dispatch-loop style (matchingengine.Engine.Poll) and
// netutil.McastSender for the transport.
package mdpublisher

import (
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/netutil"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/wire"
)

// Publisher drains R3, multicasts incremental updates, and mirrors them
// onto R4 for the snapshot synthesiser.
type Publisher struct {
	logger *logging.Logger
	sender *netutil.McastSender

	marketUpdates *ring.Ring[domain.MEMarketUpdate]
	toSnapshot    *ring.Ring[domain.MDPMarketUpdate]

	nextIncSeq uint64
}

// New creates a publisher. nextIncSeq starts at 1 (spec §4.7).
func New(logger *logging.Logger, sender *netutil.McastSender, marketUpdates *ring.Ring[domain.MEMarketUpdate], toSnapshot *ring.Ring[domain.MDPMarketUpdate]) *Publisher {
	return &Publisher{
		logger:        logger,
		sender:        sender,
		marketUpdates: marketUpdates,
		toSnapshot:    toSnapshot,
		nextIncSeq:    1,
	}
}

// Poll drains everything currently queued on R3, non-blocking.
func (p *Publisher) Poll() {
	for {
		slot := p.marketUpdates.PeekRead()
		if slot == nil {
			return
		}
		update := *slot
		p.marketUpdates.CommitRead()
		p.publish(update)
	}
}

func (p *Publisher) publish(update domain.MEMarketUpdate) {
	seq := p.nextIncSeq
	p.nextIncSeq++

	var buf [wire.SizeMDPMarketUpdate]byte
	wire.PutMDPMarketUpdate(buf[:], domain.MDPMarketUpdate{Seq: seq, Update: update})
	if err := p.sender.Send(buf[:]); err != nil {
		if p.logger != nil {
			p.logger.Logf("mdpublisher: multicast send failed: %v", err)
		}
	}

	slot := p.toSnapshot.ReserveWrite()
	if slot == nil {
		logging.Fatalf("mdpublisher: snapshot ring overrun")
	}
	*slot = domain.MDPMarketUpdate{Seq: seq, Update: update}
	p.toSnapshot.CommitWrite()
}

// Run spins Poll until stop is closed.
func (p *Publisher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			p.Poll()
		}
	}
}
