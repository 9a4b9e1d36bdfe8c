package readmodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/plaenen/eventcore/pkg/domain"
)

// Memory is an in-process ReadModel.
type Memory struct {
	name    string
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty in-memory read model.
func NewMemory(name string) *Memory {
	return &Memory{name: name, records: make(map[string]Record)}
}

var _ ReadModel = (*Memory)(nil)

func (m *Memory) Name() string { return m.name }

func (m *Memory) Get(ctx context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, m.name, key)
	}
	return rec.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, key string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = record.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *Memory) Query(ctx context.Context, filter map[string]any) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0)
	for _, key := range SortedKeys(m.records) {
		if rec := m.records[key]; Matches(rec, filter) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *Memory) All(ctx context.Context) ([]Record, error) {
	return m.Query(ctx, nil)
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	return nil
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
