// Package config loads exchange and participant configuration, grounded
// on Projectsrxg-kalshi_v2/internal/config's struct-of-named-sections +
// applyDefaults()/Validate() split (config.go/defaults.go/validate.go).
// Unlike that teacher package, this plant has no YAML deployment file:
// per SPEC_FULL.md §6 the CLI surface is flags and positional arguments
// (spec.md §6), so NewExchange/NewParticipant build a config directly from
// parsed flag values rather than from a file on disk.
package config

import (
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
)

// Exchange is the root configuration for the exchange binary.
type Exchange struct {
	OrderGatewayAddr string
	IncrementalGroup string
	SnapshotGroup    string
	SnapshotInterval time.Duration

	RingCapacity      int
	OrderPoolCapacity int
	LevelPoolCapacity int
	LogQueueDepth     int

	ShutdownGrace time.Duration
}

// Participant is the root configuration for the participant binary.
type Participant struct {
	ClientID         domain.ClientID
	GatewayAddr      string
	IncrementalGroup string
	SnapshotGroup    string

	RingCapacity      int
	OrderPoolCapacity int
	LevelPoolCapacity int
	LogQueueDepth     int

	SilentWindow time.Duration
}
