// Command participant runs the plant's participant side (spec §2, §6):
// it dials the exchange order gateway, recovers and follows market data
// per ticker, and drives one of the RANDOM/MAKER/TAKER strategies against
// the reconstructed books. CLI surface per spec §6:
//
//	participant CLIENT_ID ALGO_TYPE [clip thresh max_order_size max_position max_loss]...
//
// one 5-tuple of per-ticker limits, starting at ticker 0, one per
// argument group. Grounded on yanun0323-go-hft/cmd/trader/main.go's
// positional-argument CLI shape.
package main

import (
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ejyy/femto-plant/internal/config"
	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/gatewayclient"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/mdconsumer"
	"github.com/ejyy/femto-plant/internal/pbook"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/strategy"
	"github.com/ejyy/femto-plant/internal/supervisor"
	"github.com/ejyy/femto-plant/internal/tradingengine"
)

const limitsPerTicker = 5

func main() {
	gatewayAddr := flag.String("gateway-addr", config.DefaultOrderGatewayAddr, "TCP order gateway address")
	incrementalGroup := flag.String("incremental-group", config.DefaultIncrementalGroup, "incremental market-data multicast group")
	snapshotGroup := flag.String("snapshot-group", config.DefaultSnapshotGroup, "snapshot market-data multicast group")
	silentWindow := flag.Duration("silent-window", config.DefaultSilentWindow, "shut down if no event observed for this long")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		logging.Fatalf("participant: usage: participant CLIENT_ID ALGO_TYPE [clip thresh max_order_size max_position max_loss]...")
	}

	clientID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		logging.Fatalf("participant: invalid CLIENT_ID %q: %v", args[0], err)
	}
	algoType := args[1]
	limits := parseTickerLimits(args[2:])

	cfg := config.NewParticipant(config.Participant{
		ClientID:         domain.ClientID(clientID),
		GatewayAddr:      *gatewayAddr,
		IncrementalGroup: *incrementalGroup,
		SnapshotGroup:    *snapshotGroup,
		SilentWindow:     *silentWindow,
	})
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("participant: invalid configuration: %v", err)
	}

	logger := logging.New(cfg.LogQueueDepth)
	defer logger.Close()

	responses := ring.New[domain.MEClientResponse](cfg.RingCapacity)

	var algo strategy.Strategy
	var random *strategy.Random

	client, err := gatewayclient.Dial(logger, cfg.ClientID, cfg.GatewayAddr, func(resp domain.MEClientResponse) {
		// Only enqueue here: the trading engine draining responses below is
		// the spec §4.11 single dispatcher to the strategy's OnOrderUpdate.
		// Calling it here too would deliver every response twice and invoke
		// the strategy from this read goroutine concurrently with the
		// trading-engine goroutine.
		if slot := responses.ReserveWrite(); slot != nil {
			*slot = resp
			responses.CommitWrite()
		}
	})
	if err != nil {
		logging.Fatalf("participant: dial %s: %v", cfg.GatewayAddr, err)
	}
	defer client.Close()

	var engine *tradingengine.Engine
	engine = tradingengine.New(logger, responses, func(resp domain.MEClientResponse) {
		if algo != nil {
			algo.OnOrderUpdate(resp)
		}
	}, nil)

	books := make(map[domain.TickerID]mdconsumer.BookApplier, len(limits))
	bookCfg := pbook.Config{OrderPoolCapacity: cfg.OrderPoolCapacity, LevelPoolCapacity: cfg.LevelPoolCapacity}
	for tickerID := range limits {
		tid := tickerID
		b := pbook.New(tid, bookCfg, logger, func(bbo pbook.BBO) {
			engine.NotifyBookUpdate()
			if algo != nil {
				algo.OnOrderBookUpdate(tid, bbo)
			}
		})
		b.SetOnTrade(func(u domain.MEMarketUpdate) {
			engine.NotifyBookUpdate()
			if algo != nil {
				algo.OnTradeUpdate(tid, u)
			}
		})
		books[tid] = b
	}

	switch algoType {
	case "RANDOM":
		random = strategy.NewRandom(logger, client, limits, int64(cfg.ClientID))
		algo = random
	case "MAKER":
		algo = strategy.NewMaker(limits)
	case "TAKER":
		algo = strategy.NewTaker(limits)
	default:
		logging.Fatalf("participant: unknown ALGO_TYPE %q (want RANDOM, MAKER, or TAKER)", algoType)
	}

	consumer := mdconsumer.New(logger, cfg.IncrementalGroup, cfg.SnapshotGroup, books)
	if err := consumer.Start(); err != nil {
		logging.Fatalf("participant: join multicast %s: %v", cfg.IncrementalGroup, err)
	}
	defer consumer.Close()

	sup := supervisor.New()

	// Order-gateway read loop: the I/O thread that turns inbound TCP
	// frames into ring R2 entries (spec §4.11).
	sup.Go(func() error {
		if err := client.Run(); err != nil {
			logger.Logf("participant: gateway connection closed: %v", err)
		}
		return nil
	})

	// Trading-engine dispatch thread: drains ring R2 and invokes the
	// strategy's order-update callback.
	sup.GoLoop(engine.Run)

	// Market-data thread: recovers and replays the incremental/snapshot
	// feeds into each ticker's book (spec §4.9, single-goroutine poll per
	// spec §5).
	sup.GoLoop(consumer.Run)

	// Strategy thread, only for algos that generate their own traffic.
	if random != nil {
		sup.GoLoop(random.Run)
	}

	// Silent-window liveness watchdog: if neither the order-response
	// stream nor book activity has produced an event for cfg.SilentWindow,
	// treat the connection as stalled and shut down (original_source's
	// trading_main.cpp liveness check, spec §6 supplement).
	sup.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		stop := sup.Done()
		for {
			select {
			case <-stop:
				return nil
			case <-ticker.C:
				if engine.SilentSeconds() >= cfg.SilentWindow.Seconds() {
					logger.Logf("participant: no activity for %.0fs, shutting down", engine.SilentSeconds())
					go sup.Shutdown(config.DefaultShutdownGrace)
					return nil
				}
			}
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Logf("participant: received %s, beginning two-stage shutdown", sig)
		sup.Shutdown(config.DefaultShutdownGrace)
	}()

	if err := sup.Wait(); err != nil {
		logging.Fatalf("participant: fatal role error: %v", err)
	}
}

// parseTickerLimits parses trailing CLI arguments as 5-tuples of
// (clip, thresh, max_order_size, max_position, max_loss), one per
// ticker starting at ticker 0.
func parseTickerLimits(args []string) map[domain.TickerID]strategy.TickerLimits {
	limits := make(map[domain.TickerID]strategy.TickerLimits)
	for i := 0; i+limitsPerTicker <= len(args); i += limitsPerTicker {
		tickerID := domain.TickerID(i / limitsPerTicker)
		limits[tickerID] = strategy.TickerLimits{
			Clip:         domain.Qty(mustParseInt(args[i])),
			Thresh:       domain.Price(mustParseInt(args[i+1])),
			MaxOrderSize: domain.Qty(mustParseInt(args[i+2])),
			MaxPosition:  domain.Qty(mustParseInt(args[i+3])),
			MaxLoss:      domain.Price(mustParseInt(args[i+4])),
		}
	}
	return limits
}

func mustParseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		logging.Fatalf("participant: invalid ticker limit %q: %v", s, err)
	}
	return n
}
