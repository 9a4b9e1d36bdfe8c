// Package memory provides in-process implementations of the event store and
// snapshot store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
	"github.com/plaenen/eventcore/pkg/store"
)

// EventStore is an in-memory, append-only event log.
//
// Appends are serialized. Subscribers are invoked synchronously after the
// events are stored and before AppendEvents returns; they may read from the
// store but must not append to it.
type EventStore struct {
	appendMu sync.Mutex   // held for the whole append + dispatch
	mu       sync.RWMutex // protects the fields below

	streams     map[string][]*domain.Event
	eventIDs    map[string]struct{}
	log         []*domain.Event
	subscribers []subscription
	nextSubID   uint64

	logger  *slog.Logger
	emitter *observability.Emitter
}

type subscription struct {
	id      uint64
	handler store.EventHandler
}

type eventStoreConfig struct {
	logger  *slog.Logger
	emitter *observability.Emitter
}

// EventStoreOption is a function that configures an EventStore.
type EventStoreOption func(*eventStoreConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.logger = logger
	}
}

// WithEmitter reports an event-appended notification per stored event.
func WithEmitter(emitter *observability.Emitter) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.emitter = emitter
	}
}

// NewEventStore creates an empty event store.
func NewEventStore(opts ...EventStoreOption) *EventStore {
	cfg := eventStoreConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &EventStore{
		streams:  make(map[string][]*domain.Event),
		eventIDs: make(map[string]struct{}),
		logger:  cfg.logger,
		emitter: cfg.emitter,
	}
}

var _ store.EventStore = (*EventStore)(nil)

// AppendEvents appends events to an aggregate's stream atomically.
// A batch carrying an event ID that is already stored (or repeated within the
// batch) fails with domain.ErrCommandAlreadyProcessed and nothing is stored.
func (s *EventStore) AppendEvents(ctx context.Context, aggregateID string, events []*domain.Event, expectedVersion int64) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: no events to append", domain.ErrInvalidEvent)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	stored, subscribers, err := s.store(aggregateID, events, expectedVersion)
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "events appended",
		slog.String("aggregate_id", aggregateID),
		slog.Int("count", len(stored)),
		slog.Int64("version", stored[len(stored)-1].Version))

	for _, evt := range stored {
		s.emitter.Emit(ctx, observability.Notification{
			Signal:      observability.SignalEventAppended,
			EventID:     evt.ID,
			EventType:   evt.EventType,
			AggregateID: evt.AggregateID,
			Version:     evt.Version,
			Position:    evt.Position,
		})
		for _, sub := range subscribers {
			sub.handler(ctx, evt.Clone())
		}
	}

	return nil
}

// store validates and stores the batch under the write lock.
func (s *EventStore) store(aggregateID string, events []*domain.Event, expectedVersion int64) ([]*domain.Event, []subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(len(s.streams[aggregateID]))
	if expectedVersion != store.AnyVersion && expectedVersion != current {
		return nil, nil, domain.NewConcurrencyError(aggregateID, expectedVersion, current)
	}

	stored := make([]*domain.Event, len(events))
	batchIDs := make(map[string]struct{}, len(events))
	for i, evt := range events {
		if evt == nil {
			return nil, nil, fmt.Errorf("%w: nil event at index %d", domain.ErrInvalidEvent, i)
		}
		if evt.AggregateID != aggregateID {
			return nil, nil, fmt.Errorf("%w: event %d belongs to aggregate %q, not %q",
				domain.ErrInvalidEvent, i, evt.AggregateID, aggregateID)
		}
		if want := current + int64(i) + 1; evt.Version != want {
			if expectedVersion == store.AnyVersion {
				// The caller built the batch against a different version.
				return nil, nil, domain.NewConcurrencyError(aggregateID, evt.Version-int64(i)-1, current)
			}
			return nil, nil, fmt.Errorf("%w: event %d has version %d, want %d",
				domain.ErrInvalidVersion, i, evt.Version, want)
		}
		if evt.ID != "" {
			_, seen := s.eventIDs[evt.ID]
			_, repeated := batchIDs[evt.ID]
			if seen || repeated {
				return nil, nil, fmt.Errorf("%w: event %s already stored for aggregate %s",
					domain.ErrCommandAlreadyProcessed, evt.ID, aggregateID)
			}
			batchIDs[evt.ID] = struct{}{}
		}
		stored[i] = evt.Clone()
	}

	for _, evt := range stored {
		if evt.ID != "" {
			s.eventIDs[evt.ID] = struct{}{}
		}
		evt.Position = int64(len(s.log)) + 1
		s.log = append(s.log, evt)
		s.streams[aggregateID] = append(s.streams[aggregateID], evt)
	}

	subscribers := make([]subscription, len(s.subscribers))
	copy(subscribers, s.subscribers)

	return stored, subscribers, nil
}

// LoadEvents loads all events for an aggregate with version > afterVersion.
func (s *EventStore) LoadEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	if afterVersion < 0 {
		afterVersion = 0
	}
	if afterVersion >= int64(len(stream)) {
		return []*domain.Event{}, nil
	}
	// Versions are 1..N, so version v lives at index v-1.
	return domain.CloneEvents(stream[afterVersion:]), nil
}

// LoadAllEvents loads events from all aggregates in append order.
func (s *EventStore) LoadAllEvents(ctx context.Context, fromPosition int64, limit int) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}
	if fromPosition >= int64(len(s.log)) {
		return []*domain.Event{}, nil
	}
	end := int64(len(s.log))
	if limit > 0 && fromPosition+int64(limit) < end {
		end = fromPosition + int64(limit)
	}
	return domain.CloneEvents(s.log[fromPosition:end]), nil
}

// GetAggregateVersion returns the current version of an aggregate.
func (s *EventStore) GetAggregateVersion(ctx context.Context, aggregateID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.streams[aggregateID])), nil
}

// Subscribe registers a handler for appended events.
func (s *EventStore) Subscribe(handler store.EventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}
