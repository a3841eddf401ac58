package orderserver

import (
	"net"
	"testing"
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/sequencer"
	"github.com/ejyy/femto-plant/internal/wire"
)

func TestFrameParsingAndSequencing(t *testing.T) {
	in := ring.New[domain.MEClientRequest](16)
	seq := sequencer.New(in)
	out := ring.New[domain.MEClientResponse](16)
	s := New(nil, seq, out)

	if err := s.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := s.listener.Addr().String()

	stop := make(chan struct{})
	go s.Serve(stop)
	defer close(stop)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := domain.OMClientRequest{
		Seq: 1,
		Request: domain.MEClientRequest{
			Type:     domain.ClientRequestNew,
			ClientID: 7,
			TickerID: 0,
			OrderID:  1,
			Side:     domain.SideBuy,
			Price:    100,
			Qty:      5,
		},
	}
	var buf [wire.SizeOMClientRequest]byte
	wire.PutOMClientRequest(buf[:], req)
	if _, err := conn.Write(buf[:]); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Give the server goroutine a moment to process and sequence the frame.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if seq.Pending() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if seq.Pending() != 1 {
		t.Fatalf("expected 1 pending sequenced request, got %d", seq.Pending())
	}

	seq.SequenceAndPublish()
	slot := in.PeekRead()
	if slot == nil || slot.ClientID != 7 || slot.OrderID != 1 {
		t.Fatalf("unexpected sequenced request: %+v", slot)
	}
}

func TestOutOfOrderSeqIsDropped(t *testing.T) {
	in := ring.New[domain.MEClientRequest](16)
	seq := sequencer.New(in)
	out := ring.New[domain.MEClientResponse](16)
	s := New(nil, seq, out)

	if err := s.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := s.listener.Addr().String()

	stop := make(chan struct{})
	go s.Serve(stop)
	defer close(stop)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := domain.OMClientRequest{
		Seq:     5, // expected seq starts at 1, this must be dropped
		Request: domain.MEClientRequest{Type: domain.ClientRequestNew, ClientID: 1},
	}
	var buf [wire.SizeOMClientRequest]byte
	wire.PutOMClientRequest(buf[:], req)
	if _, err := conn.Write(buf[:]); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if seq.Pending() != 0 {
		t.Fatalf("expected out-of-order frame to be dropped, got %d pending", seq.Pending())
	}
}
