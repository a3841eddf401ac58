package config

import "time"

// Default values, spec §6 network endpoints and §3 capacity constants.
const (
	DefaultOrderGatewayAddr = "127.0.0.1:12345"
	DefaultIncrementalGroup = "233.252.14.3:20001"
	DefaultSnapshotGroup    = "233.252.14.1:20000"
	DefaultSnapshotInterval = 60 * time.Second

	DefaultRingCapacity  = 1 << 12
	DefaultLogQueueDepth = 4096

	DefaultShutdownGrace = 10 * time.Second
	DefaultSilentWindow  = 60 * time.Second
)

func (c *Exchange) applyDefaults() {
	if c.OrderGatewayAddr == "" {
		c.OrderGatewayAddr = DefaultOrderGatewayAddr
	}
	if c.IncrementalGroup == "" {
		c.IncrementalGroup = DefaultIncrementalGroup
	}
	if c.SnapshotGroup == "" {
		c.SnapshotGroup = DefaultSnapshotGroup
	}
	if c.SnapshotInterval == 0 {
		c.SnapshotInterval = DefaultSnapshotInterval
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = DefaultRingCapacity
	}
	if c.OrderPoolCapacity == 0 {
		c.OrderPoolCapacity = defaultOrderPoolCapacity
	}
	if c.LevelPoolCapacity == 0 {
		c.LevelPoolCapacity = defaultLevelPoolCapacity
	}
	if c.LogQueueDepth == 0 {
		c.LogQueueDepth = DefaultLogQueueDepth
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
}

func (c *Participant) applyDefaults() {
	if c.GatewayAddr == "" {
		c.GatewayAddr = DefaultOrderGatewayAddr
	}
	if c.IncrementalGroup == "" {
		c.IncrementalGroup = DefaultIncrementalGroup
	}
	if c.SnapshotGroup == "" {
		c.SnapshotGroup = DefaultSnapshotGroup
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = DefaultRingCapacity
	}
	if c.OrderPoolCapacity == 0 {
		c.OrderPoolCapacity = defaultOrderPoolCapacity
	}
	if c.LevelPoolCapacity == 0 {
		c.LevelPoolCapacity = defaultLevelPoolCapacity
	}
	if c.LogQueueDepth == 0 {
		c.LogQueueDepth = DefaultLogQueueDepth
	}
	if c.SilentWindow == 0 {
		c.SilentWindow = DefaultSilentWindow
	}
}

// defaultOrderPoolCapacity/defaultLevelPoolCapacity mirror the spec §3
// MaxOrderIDs/MaxPriceLevels constants, named locally to avoid this
// package depending on internal/book or internal/pbook for a plain int.
const (
	defaultOrderPoolCapacity = 1 << 20
	defaultLevelPoolCapacity = 256
)

// NewExchange builds an Exchange config from the given overrides, filling
// in defaults for anything left zero.
func NewExchange(overrides Exchange) Exchange {
	c := overrides
	c.applyDefaults()
	return c
}

// NewParticipant builds a Participant config from the given overrides,
// filling in defaults for anything left zero.
func NewParticipant(overrides Participant) Participant {
	c := overrides
	c.applyDefaults()
	return c
}
