package strategy

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/gatewayclient"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/pbook"
)

// maxRandomPairs is the spec §6 ceiling: "up to 10000 (new, cancel)
// pairs".
const maxRandomPairs = 10000

// randomInterval is the spec §6 "~20ms intervals" pacing.
const randomInterval = 20 * time.Millisecond

// Random is the RANDOM algo of spec §6: it generates up to maxRandomPairs
// (new, cancel) pairs at randomInterval, with random side/price/qty
// bounded by each ticker's TickerLimits, and occasionally cancels one of
// its own still-live orders rather than always waiting for a fill.
// Grounded on original_source's RANDOM algo description and on
// internal/gatewayclient.StateMachine for picking a live order id to
// cancel.
type Random struct {
	logger  *logging.Logger
	client  *gatewayclient.Client
	tickers []domain.TickerID
	limits  map[domain.TickerID]TickerLimits
	rng     *rand.Rand

	// mu guards everything below. Run's own ticking goroutine and the
	// trading engine's dispatch goroutine (which calls OnOrderUpdate) both
	// touch this state, so it needs its own lock rather than relying on
	// single-goroutine ownership the way the rest of the participant's
	// hot path does (spec §5 only forbids multi-producer queues; a
	// strategy observed from two threads still needs its own mutex).
	mu                sync.Mutex
	nextClientOrderID domain.OrderID
	pairsSent         int

	// live tracks this strategy's own outstanding client order ids per
	// ticker so a later tick can pick one to cancel instead of only ever
	// adding.
	live map[domain.TickerID][]domain.OrderID
}

// NewRandom creates a RANDOM strategy submitting through client, bounded
// per ticker by limits. seed makes the generated sequence reproducible
// for tests.
func NewRandom(logger *logging.Logger, client *gatewayclient.Client, limits map[domain.TickerID]TickerLimits, seed int64) *Random {
	tickers := make([]domain.TickerID, 0, len(limits))
	for t := range limits {
		tickers = append(tickers, t)
	}
	return &Random{
		logger:            logger,
		client:            client,
		tickers:           tickers,
		limits:            limits,
		rng:               rand.New(rand.NewSource(seed)),
		nextClientOrderID: 1,
		live:              make(map[domain.TickerID][]domain.OrderID),
	}
}

// Run submits up to maxRandomPairs (new, cancel) pairs at randomInterval
// until stop is closed or the cap is reached.
func (r *Random) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(randomInterval)
	defer ticker.Stop()
	for r.sent() < maxRandomPairs {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Random) sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pairsSent
}

func (r *Random) tick() {
	if len(r.tickers) == 0 {
		return
	}
	tickerID := r.tickers[r.rng.Intn(len(r.tickers))]
	limits := r.limits[tickerID]

	r.mu.Lock()
	live := append([]domain.OrderID(nil), r.live[tickerID]...)
	r.mu.Unlock()

	if len(live) > 0 && r.rng.Intn(2) == 0 {
		r.cancelOne(tickerID, live)
		return
	}
	r.sendNew(tickerID, limits)
}

func (r *Random) sendNew(tickerID domain.TickerID, limits TickerLimits) {
	side := domain.SideBuy
	if r.rng.Intn(2) == 1 {
		side = domain.SideSell
	}

	qty := domain.Qty(1 + r.rng.Intn(int(clampQty(limits.Clip, limits.MaxOrderSize))))
	offset := domain.Price(r.rng.Intn(int(limits.Thresh)+1) - int(limits.Thresh)/2)
	price := domain.Price(100) + offset

	r.mu.Lock()
	clientOrderID := r.nextClientOrderID
	r.nextClientOrderID++
	r.mu.Unlock()

	if _, err := r.client.SendNew(tickerID, clientOrderID, side, price, qty); err != nil {
		if r.logger != nil {
			r.logger.Logf("strategy.random: send new failed: %v", err)
		}
		return
	}

	r.mu.Lock()
	r.live[tickerID] = append(r.live[tickerID], clientOrderID)
	r.pairsSent++
	r.mu.Unlock()
}

func (r *Random) cancelOne(tickerID domain.TickerID, liveSnapshot []domain.OrderID) {
	clientOrderID := liveSnapshot[r.rng.Intn(len(liveSnapshot))]

	r.mu.Lock()
	if remaining, ok := removeLive(r.live[tickerID], clientOrderID); ok {
		r.live[tickerID] = remaining
	}
	r.mu.Unlock()

	if err := r.client.SendCancel(tickerID, clientOrderID); err != nil && r.logger != nil {
		r.logger.Logf("strategy.random: send cancel failed: %v", err)
	}
}

// removeLive removes id from ids, if present, without disturbing the order
// of what remains.
func removeLive(ids []domain.OrderID, id domain.OrderID) ([]domain.OrderID, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...), true
		}
	}
	return ids, false
}

func clampQty(clip, maxOrderSize domain.Qty) domain.Qty {
	if clip == 0 {
		clip = 1
	}
	if maxOrderSize != 0 && clip > maxOrderSize {
		return maxOrderSize
	}
	return clip
}

// OnOrderBookUpdate satisfies Strategy; RANDOM does not react to book
// state (spec §6: its orders are generated independent of the book).
func (r *Random) OnOrderBookUpdate(domain.TickerID, pbook.BBO) {}

// OnTradeUpdate satisfies Strategy; informational only.
func (r *Random) OnTradeUpdate(domain.TickerID, domain.MEMarketUpdate) {}

// OnOrderUpdate drops a filled or canceled order from the live-order
// tracking set so it is never offered up for a second cancel.
func (r *Random) OnOrderUpdate(resp domain.MEClientResponse) {
	switch resp.Type {
	case domain.ClientResponseCanceled, domain.ClientResponseCancelRejected:
	case domain.ClientResponseFilled:
		if resp.LeavesQty != 0 {
			return
		}
	default:
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if remaining, ok := removeLive(r.live[resp.TickerID], resp.ClientOrderID); ok {
		r.live[resp.TickerID] = remaining
	}
}

var _ Strategy = (*Random)(nil)
