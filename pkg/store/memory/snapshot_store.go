package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/store"
)

// SnapshotStore keeps the latest snapshot per aggregate in memory.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*store.Snapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]*store.Snapshot)}
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

// SaveSnapshot replaces the aggregate's snapshot unless a newer one is stored.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snapshot *store.Snapshot) error {
	if snapshot == nil || snapshot.AggregateID == "" {
		return fmt.Errorf("snapshot requires an aggregate id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.snapshots[snapshot.AggregateID]; ok && prev.Version > snapshot.Version {
		return nil
	}
	s.snapshots[snapshot.AggregateID] = cloneSnapshot(snapshot)
	return nil
}

// GetSnapshot returns the latest snapshot for an aggregate.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, aggregateID string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[aggregateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, aggregateID)
	}
	return cloneSnapshot(snap), nil
}

func cloneSnapshot(s *store.Snapshot) *store.Snapshot {
	c := *s
	c.Data = append([]byte(nil), s.Data...)
	return &c
}
