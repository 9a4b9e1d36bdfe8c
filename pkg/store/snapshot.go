package store

import (
	"context"
	"time"
)

// Snapshot represents a serialized aggregate state at a specific version.
type Snapshot struct {
	AggregateID   string
	AggregateType string
	Version       int64
	Data          []byte
	CreatedAt     time.Time
}

// SnapshotStore defines the interface for snapshot persistence.
// Only the latest snapshot per aggregate is kept.
type SnapshotStore interface {
	// SaveSnapshot persists a snapshot, replacing any previous one for the aggregate.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetSnapshot returns the latest snapshot for an aggregate or domain.ErrSnapshotNotFound.
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
}

// SnapshotStrategy defines when snapshots should be created.
type SnapshotStrategy interface {
	// ShouldCreateSnapshot determines if a snapshot should be created
	// based on the aggregate's current state.
	ShouldCreateSnapshot(currentVersion int64, eventsSinceLastSnapshot int64) bool
}

// IntervalSnapshotStrategy creates snapshots every N events.
type IntervalSnapshotStrategy struct {
	Interval int64
}

// NewIntervalSnapshotStrategy creates a strategy that snapshots every N events.
func NewIntervalSnapshotStrategy(interval int64) *IntervalSnapshotStrategy {
	return &IntervalSnapshotStrategy{Interval: interval}
}

// ShouldCreateSnapshot checks if we've passed the interval threshold.
func (s *IntervalSnapshotStrategy) ShouldCreateSnapshot(currentVersion int64, eventsSinceLastSnapshot int64) bool {
	if s.Interval <= 0 {
		return false
	}
	return eventsSinceLastSnapshot >= s.Interval
}

// Snapshotable is an interface for aggregates that can be snapshotted.
type Snapshotable interface {
	// MarshalSnapshot serializes the aggregate state to bytes.
	MarshalSnapshot() ([]byte, error)

	// UnmarshalSnapshot restores the aggregate state from bytes.
	UnmarshalSnapshot(data []byte) error

	// SetVersion moves the aggregate to the snapshot's version.
	SetVersion(v int64)
}
