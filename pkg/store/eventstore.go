package store

import (
	"context"

	"github.com/plaenen/eventcore/pkg/domain"
)

// AnyVersion disables the optimistic concurrency check on append.
const AnyVersion int64 = -1

// EventHandler receives every event appended to a store, in log order.
type EventHandler func(ctx context.Context, event *domain.Event)

// EventStore defines the interface for persisting and retrieving events.
type EventStore interface {
	// AppendEvents appends events to an aggregate's stream atomically.
	// Returns domain.ErrConcurrencyConflict if expectedVersion doesn't match the
	// current version, unless expectedVersion is AnyVersion, and
	// domain.ErrCommandAlreadyProcessed if an event ID is already stored. On success every
	// subscriber is notified synchronously before AppendEvents returns.
	AppendEvents(ctx context.Context, aggregateID string, events []*domain.Event, expectedVersion int64) error

	// LoadEvents loads all events for an aggregate with version > afterVersion.
	LoadEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]*domain.Event, error)

	// LoadAllEvents loads events from all aggregates with position > fromPosition,
	// in the order they were appended. limit <= 0 returns everything.
	LoadAllEvents(ctx context.Context, fromPosition int64, limit int) ([]*domain.Event, error)

	// GetAggregateVersion returns the current version of an aggregate.
	// Returns 0 if the aggregate doesn't exist.
	GetAggregateVersion(ctx context.Context, aggregateID string) (int64, error)

	// Subscribe registers a handler for appended events. The returned function
	// removes the subscription.
	Subscribe(handler EventHandler) (unsubscribe func())
}
