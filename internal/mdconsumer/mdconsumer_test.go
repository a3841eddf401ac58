package mdconsumer

import (
	"testing"

	"github.com/ejyy/femto-plant/internal/domain"
)

type fakeBook struct {
	applied []domain.MEMarketUpdate
}

func (f *fakeBook) Apply(u domain.MEMarketUpdate) { f.applied = append(f.applied, u) }

func newTestConsumer() (*Consumer, *fakeBook) {
	fb := &fakeBook{}
	c := New(nil, "", "", map[domain.TickerID]BookApplier{0: fb})
	c.nextExpectedIncSeq = 1
	return c, fb
}

func TestOnIncrementalInOrderApplies(t *testing.T) {
	c, fb := newTestConsumer()
	c.onIncremental(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 1}})
	c.onIncremental(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 2}})

	if len(fb.applied) != 2 {
		t.Fatalf("expected 2 applied updates, got %d", len(fb.applied))
	}
	if c.nextExpectedIncSeq != 3 {
		t.Fatalf("expected next expected seq 3, got %d", c.nextExpectedIncSeq)
	}
}

func TestGapBuffersAndReplaysInOrder(t *testing.T) {
	c, fb := newTestConsumer()

	c.onIncremental(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 1}})

	// seq 2 is lost; seq 3 and 4 arrive and are buffered while recovery is
	// assumed to be in progress (avoiding a real multicast dial here by
	// setting the buffered map and inRecovery flag directly, the same
	// state onIncremental's gap branch would produce).
	c.buffered[3] = domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 3}
	c.buffered[4] = domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 4}
	c.inRecovery = true

	// The snapshot completes as-of seq 2, so the contiguous buffered run
	// 3,4 replays immediately after.
	c.completeRecovery(2)

	if c.inRecovery {
		t.Fatalf("expected recovery to complete")
	}
	if c.nextExpectedIncSeq != 5 {
		t.Fatalf("expected next expected seq 5 after replaying 3,4, got %d", c.nextExpectedIncSeq)
	}
	if len(fb.applied) != 3 { // seq1 (live) + seq3 + seq4 (replayed)
		t.Fatalf("expected 3 applied updates, got %d", len(fb.applied))
	}
	if fb.applied[1].OrderID != 3 || fb.applied[2].OrderID != 4 {
		t.Fatalf("expected replay order 3 then 4, got %+v", fb.applied)
	}
}

func TestOnSnapshotDoesNotApplyBeforeSyncCompletes(t *testing.T) {
	c, fb := newTestConsumer()
	// START, CLEAR and ADD arrive, but SNAPSHOT_END has not yet: nothing
	// should reach the book while the run is still open.
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 9}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: 0}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 7}})
	if len(fb.applied) != 0 {
		t.Fatalf("expected nothing applied before SNAPSHOT_END, got %+v", fb.applied)
	}
}

func TestOnSnapshotAppliesOnceRunIsContiguousAndTerminated(t *testing.T) {
	c, fb := newTestConsumer()
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 9}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: 0}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 7}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 3, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotEnd, OrderID: 9}})

	if len(fb.applied) != 2 {
		t.Fatalf("expected CLEAR then ADD applied, got %+v", fb.applied)
	}
	if fb.applied[0].Type != domain.MarketUpdateClear {
		t.Fatalf("expected first applied record to be CLEAR, got %+v", fb.applied[0])
	}
	if fb.applied[1].OrderID != 7 {
		t.Fatalf("expected second applied record to be the ADD, got %+v", fb.applied[1])
	}
	if c.inRecovery {
		t.Fatalf("expected recovery to complete once the snapshot synced")
	}
	if c.nextExpectedIncSeq != 10 {
		t.Fatalf("expected next expected seq 10 (asOfSeq 9 + 1), got %d", c.nextExpectedIncSeq)
	}
}

func TestOnSnapshotReorderedRecordsStillSync(t *testing.T) {
	c, fb := newTestConsumer()
	// Datagrams arrive out of order; the buffer must still sync once all
	// four are present.
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 7}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 9}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 3, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotEnd, OrderID: 9}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: 0}})

	if len(fb.applied) != 2 {
		t.Fatalf("expected CLEAR then ADD applied despite reordering, got %+v", fb.applied)
	}
	if fb.applied[0].Type != domain.MarketUpdateClear || fb.applied[1].OrderID != 7 {
		t.Fatalf("expected replay in seq order regardless of arrival order, got %+v", fb.applied)
	}
}

func TestOnSnapshotDuplicateSeqResetsBuffer(t *testing.T) {
	c, fb := newTestConsumer()
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 5}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: 0}})

	// A duplicate of seq 0 arrives (e.g. a retransmitted/late-arriving
	// datagram from the same cycle, or the start of a new cycle with a
	// different as-of sequence): the previous attempt is abandoned.
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 11}})
	if len(c.snapshotBuf) != 1 {
		t.Fatalf("expected snapshot buffer reset to just the new seq 0, got %d entries", len(c.snapshotBuf))
	}
	if len(fb.applied) != 0 {
		t.Fatalf("expected nothing applied after a reset, got %+v", fb.applied)
	}

	c.onSnapshot(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: 0}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotEnd, OrderID: 11}})

	if c.nextExpectedIncSeq != 12 {
		t.Fatalf("expected the surviving (second) attempt's as-of seq to win, got nextExpectedIncSeq=%d", c.nextExpectedIncSeq)
	}
}

func TestOnSnapshotGapWaitsForNextCycle(t *testing.T) {
	c, fb := newTestConsumer()
	// Snapshot records are only read while recovering; put the consumer in
	// that state directly, as TestGapBuffersAndReplaysInOrder does.
	c.inRecovery = true
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 9}})
	// seq 1 is permanently lost; seq 2 arrives, leaving a hole that can
	// never close within this cycle.
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, TickerID: 0, OrderID: 7}})

	if len(fb.applied) != 0 {
		t.Fatalf("expected nothing applied while the run is stuck on a gap, got %+v", fb.applied)
	}
	if !c.inRecovery {
		t.Fatalf("expected recovery to still be in progress, waiting for the next snapshot cycle")
	}

	// The next periodic snapshot cycle starts over at seq 0; per spec
	// §4.9 the duplicate sequence resets the stalled buffer so the new,
	// complete cycle can sync.
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 0, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotStart, OrderID: 15}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 1, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateClear, TickerID: 0}})
	c.onSnapshot(domain.MDPMarketUpdate{Seq: 2, Update: domain.MEMarketUpdate{Type: domain.MarketUpdateSnapshotEnd, OrderID: 15}})

	if len(fb.applied) != 1 || fb.applied[0].Type != domain.MarketUpdateClear {
		t.Fatalf("expected the fresh cycle to sync and apply its CLEAR, got %+v", fb.applied)
	}
	if c.inRecovery {
		t.Fatalf("expected recovery to complete once the fresh cycle synced")
	}
}
