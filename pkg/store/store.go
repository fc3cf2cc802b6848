// Package store provides the hub persistence layer: per-node configuration
// and the append-only sample archive.
//
// Two backends are supported through the same GORM codebase:
//   - SQLite (single file, default)
//   - PostgreSQL
//
// Implementations must be safe for concurrent use from multiple goroutines.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/sdrhub/pkg/protocol"
)

// ErrConfigNotFound is returned when a node has no persisted configuration.
var ErrConfigNotFound = errors.New("node config not found")

// ConfigEntry is one row of the config storage listing.
type ConfigEntry struct {
	NodeID   uuid.UUID
	LastSeen time.Time
	Config   protocol.NodeConfig
}

// Sample is one archived payload together with the SDR parameters the
// node reported on its data connection. The payload bytes are opaque to
// the hub.
type Sample struct {
	NodeID     uuid.UUID
	Kind       protocol.StreamKind
	Freq       uint64
	Amp        uint8
	Lna        uint8
	Vga        uint8
	SampleRate uint64
	Timestamp  time.Time
	Data       []byte
}

// Store is the persistence interface consumed by the session handlers.
type Store interface {
	// GetConfig returns the persisted configuration for a node.
	// Returns ErrConfigNotFound if none exists.
	GetConfig(ctx context.Context, nodeID uuid.UUID) (protocol.NodeConfig, error)

	// GetOrSeedConfig returns the persisted configuration, seeding the
	// store with def when none exists. Concurrent calls for the same node
	// are idempotent: both return a config that is present in the store.
	GetOrSeedConfig(ctx context.Context, nodeID uuid.UUID, def protocol.NodeConfig) (protocol.NodeConfig, error)

	// PutConfig overwrites the node's configuration and stamps last_seen.
	PutConfig(ctx context.Context, nodeID uuid.UUID, cfg protocol.NodeConfig) error

	// ListConfigs returns every stored node configuration.
	ListConfigs(ctx context.Context) ([]ConfigEntry, error)

	// AppendSample durably archives one payload.
	AppendSample(ctx context.Context, sample *Sample) error

	// QuerySamples returns the node's archived payloads of the given kind
	// with from <= timestamp < to, in ascending timestamp order.
	QuerySamples(ctx context.Context, nodeID uuid.UUID, kind protocol.StreamKind, from, to time.Time) ([]*Sample, error)

	// Close releases the underlying database handle.
	Close() error
}
