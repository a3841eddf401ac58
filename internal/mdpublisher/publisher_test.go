package mdpublisher

import (
	"testing"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/netutil"
	"github.com/ejyy/femto-plant/internal/ring"
)

func TestPollAssignsMonotonicSeqAndMirrorsToSnapshotRing(t *testing.T) {
	md := ring.New[domain.MEMarketUpdate](16)
	snap := ring.New[domain.MDPMarketUpdate](16)

	sender, err := netutil.DialMcastSender("239.255.0.1:31234")
	if err != nil {
		t.Fatalf("dial multicast sender: %v", err)
	}
	defer sender.Close()

	p := New(nil, sender, md, snap)

	for i := 0; i < 3; i++ {
		slot := md.ReserveWrite()
		*slot = domain.MEMarketUpdate{Type: domain.MarketUpdateAdd, OrderID: domain.OrderID(i)}
		md.CommitWrite()
	}
	p.Poll()

	for i, want := range []uint64{1, 2, 3} {
		slot := snap.PeekRead()
		if slot == nil {
			t.Fatalf("element %d: snapshot ring empty", i)
		}
		if slot.Seq != want {
			t.Fatalf("element %d: expected seq %d, got %d", i, want, slot.Seq)
		}
		snap.CommitRead()
	}
}
