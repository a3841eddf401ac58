// Command exchange runs the matching plant's exchange side (spec §2,
// §5): the order server/FIFO sequencer, matching engine, market-data
// publisher, and snapshot synthesiser, each its own goroutine connected
// only by the SPSC rings of internal/ring. CLI surface per spec §6: no
// arguments, SIGINT triggers a two-stage graceful shutdown. Grounded on
// Projectsrxg-kalshi_v2/cmd/gatherer/main.go's flag-parse/signal.Notify/
// graceful-shutdown shape.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ejyy/femto-plant/internal/book"
	"github.com/ejyy/femto-plant/internal/config"
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/matchingengine"
	"github.com/ejyy/femto-plant/internal/mdpublisher"
	"github.com/ejyy/femto-plant/internal/netutil"
	"github.com/ejyy/femto-plant/internal/orderserver"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/sequencer"
	"github.com/ejyy/femto-plant/internal/snapshot"
	"github.com/ejyy/femto-plant/internal/supervisor"
)

func main() {
	gatewayAddr := flag.String("gateway-addr", config.DefaultOrderGatewayAddr, "TCP order gateway listen address")
	incrementalGroup := flag.String("incremental-group", config.DefaultIncrementalGroup, "incremental market-data multicast group")
	snapshotGroup := flag.String("snapshot-group", config.DefaultSnapshotGroup, "snapshot market-data multicast group")
	snapshotInterval := flag.Duration("snapshot-interval", config.DefaultSnapshotInterval, "snapshot publication period")
	ringCapacity := flag.Int("ring-capacity", config.DefaultRingCapacity, "SPSC ring capacity (R1-R4)")
	shutdownGrace := flag.Duration("shutdown-grace", config.DefaultShutdownGrace, "each stage of the two-stage shutdown")
	flag.Parse()

	cfg := config.NewExchange(config.Exchange{
		OrderGatewayAddr: *gatewayAddr,
		IncrementalGroup: *incrementalGroup,
		SnapshotGroup:    *snapshotGroup,
		SnapshotInterval: *snapshotInterval,
		RingCapacity:     *ringCapacity,
		ShutdownGrace:    *shutdownGrace,
	})
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("exchange: invalid configuration: %v", err)
	}

	logger := logging.New(cfg.LogQueueDepth)
	defer logger.Close()

	// Ring R1: order-server/sequencer -> matching engine.
	r1 := ring.New[domain.MEClientRequest](cfg.RingCapacity)
	// Ring R2: matching engine -> order-server outbound.
	r2 := ring.New[domain.MEClientResponse](cfg.RingCapacity)
	// Ring R3: matching engine -> market-data publisher.
	r3 := ring.New[domain.MEMarketUpdate](cfg.RingCapacity)
	// Ring R4: market-data publisher -> snapshot synthesiser.
	r4 := ring.New[domain.MDPMarketUpdate](cfg.RingCapacity)

	bookCfg := book.Config{OrderPoolCapacity: cfg.OrderPoolCapacity, LevelPoolCapacity: cfg.LevelPoolCapacity}
	matchingEngine := matchingengine.New(logger, bookCfg, r1, r2, r3)

	seq := sequencer.New(r1)
	orderServer := orderserver.New(logger, seq, r2)
	if err := orderServer.Listen(cfg.OrderGatewayAddr); err != nil {
		logging.Fatalf("exchange: listen on %s: %v", cfg.OrderGatewayAddr, err)
	}

	incSender, err := netutil.DialMcastSender(cfg.IncrementalGroup)
	if err != nil {
		logging.Fatalf("exchange: dial incremental multicast %s: %v", cfg.IncrementalGroup, err)
	}
	defer incSender.Close()
	publisher := mdpublisher.New(logger, incSender, r3, r4)

	snapSender, err := netutil.DialMcastSender(cfg.SnapshotGroup)
	if err != nil {
		logging.Fatalf("exchange: dial snapshot multicast %s: %v", cfg.SnapshotGroup, err)
	}
	defer snapSender.Close()
	synth := snapshot.New(logger, snapSender, r4)

	sup := supervisor.New()

	// Matching-engine thread (spec §5).
	sup.GoLoop(matchingEngine.Run)

	// Market-data-publisher thread.
	sup.GoLoop(publisher.Run)

	// Snapshot-synthesiser thread: drains R4 continuously and publishes a
	// full snapshot every cfg.SnapshotInterval.
	sup.Go(func() error {
		ticker := time.NewTicker(cfg.SnapshotInterval)
		defer ticker.Stop()
		stop := sup.Done()
		for {
			synth.Poll()
			select {
			case <-stop:
				return nil
			case <-ticker.C:
				synth.PublishSnapshot()
			default:
			}
		}
	})

	// Order-server thread: accepts connections, and once per outer tick
	// runs the FIFO sequencer's flush and drains outbound responses (spec
	// §4.5/§4.6 — the epoll-round boundary approximated as one iteration
	// of this loop, since Go's net package exposes no single epoll
	// generation the way raw epoll_wait does).
	sup.Go(func() error {
		orderServer.Serve(sup.Done())
		return nil
	})
	sup.Go(func() error {
		stop := sup.Done()
		for {
			select {
			case <-stop:
				return nil
			default:
				seq.SequenceAndPublish()
				orderServer.DrainResponses()
			}
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Logf("exchange: received %s, beginning two-stage shutdown", sig)
		sup.Shutdown(cfg.ShutdownGrace)
	}()

	if err := sup.Wait(); err != nil {
		logging.Fatalf("exchange: fatal role error: %v", err)
	}
}
