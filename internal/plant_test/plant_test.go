// Package plant_test wires a full exchange (order server, FIFO
// sequencer, matching engine, market-data publisher, snapshot
// synthesiser) and real participant-side components over actual TCP and
// UDP-multicast loopback sockets, exercising end-to-end scenarios S1, S2,
// S3 and S5 of spec §8 the way no single internal/ package's unit tests
// can: across the wire codec, across rings, and across process-shaped
// boundaries. Grounded on the pack's habit (orderserver/server_test.go,
// mdpublisher/publisher_test.go) of dialing real sockets in tests rather
// than mocking the transport. Assertions use testify's require/assert
// (grounded on yanun0323-go-hft, which depends on and uses testify
// throughout) since assembling the expected event sequences of spec §8
// benefits from require.Equal on whole structs over hand-rolled
// t.Errorf bookkeeping.
package plant_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejyy/femto-plant/internal/book"
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/gatewayclient"
	"github.com/ejyy/femto-plant/internal/matchingengine"
	"github.com/ejyy/femto-plant/internal/mdconsumer"
	"github.com/ejyy/femto-plant/internal/mdpublisher"
	"github.com/ejyy/femto-plant/internal/netutil"
	"github.com/ejyy/femto-plant/internal/orderserver"
	"github.com/ejyy/femto-plant/internal/pbook"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/sequencer"
	"github.com/ejyy/femto-plant/internal/snapshot"
)

// testExchange bundles one fully-wired exchange process's worth of
// components, running as goroutines in the test binary.
type testExchange struct {
	gatewayAddr string
	incGroup    string
	snapGroup   string

	seq    *sequencer.Sequencer
	server *orderserver.Server
	synth  *snapshot.Synthesiser
	stop   chan struct{}
	wg     sync.WaitGroup
}

// multicast groups for market-data transport, one pair per test to avoid
// cross-test interference when tests run in the same process.
var mcastPort uint32 = 31000

func nextMcastGroup() (inc, snap string) {
	base := mcastPortNext()
	return fmt.Sprintf("239.255.0.1:%d", base), fmt.Sprintf("239.255.0.2:%d", base)
}

var mcastPortMu sync.Mutex

func mcastPortNext() uint32 {
	mcastPortMu.Lock()
	defer mcastPortMu.Unlock()
	mcastPort++
	return mcastPort
}

func startExchange(t *testing.T) *testExchange {
	t.Helper()

	r1 := ring.New[domain.MEClientRequest](256)
	r2 := ring.New[domain.MEClientResponse](256)
	r3 := ring.New[domain.MEMarketUpdate](256)
	r4 := ring.New[domain.MDPMarketUpdate](256)

	bookCfg := book.Config{OrderPoolCapacity: 1024, LevelPoolCapacity: 64}
	engine := matchingengine.New(nil, bookCfg, r1, r2, r3)

	seq := sequencer.New(r1)
	srv := orderserver.New(nil, seq, r2)
	require.NoError(t, srv.Listen("127.0.0.1:0"), "listen")
	serveStop := make(chan struct{})
	go srv.Serve(serveStop)
	t.Cleanup(func() { close(serveStop) })

	incGroup, snapGroup := nextMcastGroup()
	incSender, err := netutil.DialMcastSender(incGroup)
	require.NoError(t, err, "dial incremental sender")
	t.Cleanup(func() { incSender.Close() })
	publisher := mdpublisher.New(nil, incSender, r3, r4)

	snapSender, err := netutil.DialMcastSender(snapGroup)
	require.NoError(t, err, "dial snapshot sender")
	t.Cleanup(func() { snapSender.Close() })
	synth := snapshot.New(nil, snapSender, r4)

	ex := &testExchange{
		gatewayAddr: srv.Addr(),
		incGroup:    incGroup,
		snapGroup:   snapGroup,
		seq:         seq,
		server:      srv,
		synth:       synth,
		stop:        make(chan struct{}),
	}

	ex.wg.Add(3)
	go func() { defer ex.wg.Done(); engine.Run(ex.stop) }()
	go func() { defer ex.wg.Done(); publisher.Run(ex.stop) }()
	go func() {
		defer ex.wg.Done()
		for {
			select {
			case <-ex.stop:
				return
			default:
				seq.SequenceAndPublish()
				srv.DrainResponses()
				synth.Poll()
			}
		}
	}()

	t.Cleanup(func() {
		close(ex.stop)
		ex.wg.Wait()
	})
	return ex
}

func dialParticipant(t *testing.T, ex *testExchange, clientID domain.ClientID) (*gatewayclient.Client, chan domain.MEClientResponse) {
	t.Helper()
	responses := make(chan domain.MEClientResponse, 32)
	c, err := gatewayclient.Dial(nil, clientID, ex.gatewayAddr, func(r domain.MEClientResponse) {
		responses <- r
	})
	require.NoError(t, err, "dial client %d", clientID)
	go c.Run()
	t.Cleanup(func() { c.Close() })
	return c, responses
}

func awaitResponse(t *testing.T, ch chan domain.MEClientResponse, wantType domain.ClientResponseType) domain.MEClientResponse {
	t.Helper()
	select {
	case r := <-ch:
		require.Equal(t, wantType, r.Type, "unexpected response: %+v", r)
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response type %v", wantType)
	}
	return domain.MEClientResponse{}
}

// TestEndToEndFullFillAndCancelReject drives scenario S1 (full fill at
// resting price) and S3 (cancel of an unknown order) across real TCP
// sockets and the full order-server/sequencer/matching-engine pipeline.
func TestEndToEndFullFillAndCancelReject(t *testing.T) {
	ex := startExchange(t)

	client1, resp1 := dialParticipant(t, ex, 1)
	client2, resp2 := dialParticipant(t, ex, 2)

	_, err := client1.SendNew(0, 10, domain.SideBuy, 100, 5)
	require.NoError(t, err, "client1 send new")
	awaitResponse(t, resp1, domain.ClientResponseAccepted)

	_, err = client2.SendNew(0, 20, domain.SideSell, 99, 5)
	require.NoError(t, err, "client2 send new")
	awaitResponse(t, resp2, domain.ClientResponseAccepted)

	filled2 := awaitResponse(t, resp2, domain.ClientResponseFilled)
	assert.Equal(t, domain.Qty(5), filled2.ExecQty, "client 2 fill exec qty")
	assert.Equal(t, domain.Qty(0), filled2.LeavesQty, "client 2 fill leaves qty")
	assert.Equal(t, domain.Price(100), filled2.Price, "client 2 fill price")

	filled1 := awaitResponse(t, resp1, domain.ClientResponseFilled)
	assert.Equal(t, domain.Qty(5), filled1.ExecQty, "client 1 fill exec qty")
	assert.Equal(t, domain.Qty(0), filled1.LeavesQty, "client 1 fill leaves qty")
	assert.Equal(t, domain.Price(100), filled1.Price, "client 1 fill price")

	// S3: cancel of an order that was never placed.
	require.NoError(t, client1.SendCancel(0, 99), "client1 send cancel")
	awaitResponse(t, resp1, domain.ClientResponseCancelRejected)
}

// TestMarketDataConvergesAfterSnapshot drives scenario S5: a participant
// joining fresh, with no incremental history, recovers entirely from a
// snapshot and ends up state-equivalent (invariant 6) to the exchange
// book that produced it.
func TestMarketDataConvergesAfterSnapshot(t *testing.T) {
	ex := startExchange(t)

	client1, resp1 := dialParticipant(t, ex, 1)
	client2, resp2 := dialParticipant(t, ex, 2)

	// S2: partial fill, leaving a resting order 1 with leaves_qty=2 at
	// price 100.
	_, err := client1.SendNew(0, 10, domain.SideBuy, 100, 5)
	require.NoError(t, err, "client1 send new")
	awaitResponse(t, resp1, domain.ClientResponseAccepted)
	_, err = client2.SendNew(0, 20, domain.SideSell, 100, 3)
	require.NoError(t, err, "client2 send new")
	awaitResponse(t, resp2, domain.ClientResponseAccepted)
	awaitResponse(t, resp2, domain.ClientResponseFilled)
	awaitResponse(t, resp1, domain.ClientResponseFilled)

	// Let the incrementals propagate, then force a snapshot cycle so a
	// fresh consumer has something to recover from.
	time.Sleep(100 * time.Millisecond)
	ex.synth.PublishSnapshot()

	bboCh := make(chan pbook.BBO, 8)
	pb := pbook.New(0, pbook.DefaultConfig(), nil, func(b pbook.BBO) { bboCh <- b })

	consumer := mdconsumer.New(nil, ex.incGroup, ex.snapGroup, map[domain.TickerID]mdconsumer.BookApplier{0: pb})
	require.NoError(t, consumer.Start(), "consumer start")
	defer consumer.Close()

	stop := make(chan struct{})
	go consumer.Run(stop)
	defer close(stop)

	// Force another snapshot cycle now that the fresh consumer is joined,
	// guaranteeing it observes a SNAPSHOT_START/.../SNAPSHOT_END cycle
	// rather than racing the first one.
	time.Sleep(50 * time.Millisecond)
	ex.synth.PublishSnapshot()

	deadline := time.After(3 * time.Second)
	var last pbook.BBO
	for {
		select {
		case last = <-bboCh:
			if last.BidPrice == 100 && last.BidQty == 2 {
				return
			}
		case <-deadline:
			t.Fatalf("participant book never converged to exchange book, last BBO: %+v", last)
		}
	}
}
