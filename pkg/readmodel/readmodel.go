// Package readmodel defines query-optimized views maintained by projections.
package readmodel

import (
	"context"
	"maps"
	"reflect"
	"slices"
)

// Record is one read model entry.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// ReadModel is a named key to record store with equality filtering.
// Implementations must be safe for concurrent use.
type ReadModel interface {
	// Name returns the unique read model name.
	Name() string

	// Get returns the record stored under key or domain.ErrRecordNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Put inserts or replaces the record stored under key.
	Put(ctx context.Context, key string, record Record) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Query returns records whose fields equal every filter entry, ordered by key.
	// An empty filter matches every record.
	Query(ctx context.Context, filter map[string]any) ([]Record, error)

	// All returns every record ordered by key.
	All(ctx context.Context) ([]Record, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
}

// Matches reports whether record satisfies filter. Numbers compare by value
// regardless of their Go type, so a filter of 15 matches a stored 15.0.
func Matches(record Record, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := record[k]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Equal compares two field values.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// SortedKeys returns the map keys in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
