package config

import (
	"errors"
	"fmt"
)

// Validate checks that an Exchange config is usable.
func (c *Exchange) Validate() error {
	if c.OrderGatewayAddr == "" {
		return errors.New("order_gateway_addr is required")
	}
	if c.IncrementalGroup == "" {
		return errors.New("incremental_group is required")
	}
	if c.SnapshotGroup == "" {
		return errors.New("snapshot_group is required")
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot_interval must be > 0, got %s", c.SnapshotInterval)
	}
	if c.RingCapacity < 1 {
		return errors.New("ring_capacity must be >= 1")
	}
	if c.OrderPoolCapacity < 1 {
		return errors.New("order_pool_capacity must be >= 1")
	}
	if c.LevelPoolCapacity < 1 {
		return errors.New("level_pool_capacity must be >= 1")
	}
	return nil
}

// Validate checks that a Participant config is usable.
func (c *Participant) Validate() error {
	if c.GatewayAddr == "" {
		return errors.New("gateway_addr is required")
	}
	if c.IncrementalGroup == "" {
		return errors.New("incremental_group is required")
	}
	if c.SnapshotGroup == "" {
		return errors.New("snapshot_group is required")
	}
	if c.RingCapacity < 1 {
		return errors.New("ring_capacity must be >= 1")
	}
	if c.OrderPoolCapacity < 1 {
		return errors.New("order_pool_capacity must be >= 1")
	}
	if c.LevelPoolCapacity < 1 {
		return errors.New("level_pool_capacity must be >= 1")
	}
	if c.SilentWindow <= 0 {
		return fmt.Errorf("silent_window must be > 0, got %s", c.SilentWindow)
	}
	return nil
}
