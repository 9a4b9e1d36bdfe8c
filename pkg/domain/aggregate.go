package domain

import (
	"fmt"
	"slices"

	"github.com/plaenen/eventcore/pkg/codec"
)

// Aggregate defines the interface that all aggregates must implement.
type Aggregate interface {
	// ID returns the unique identifier of the aggregate.
	ID() string

	// Type returns the type name of the aggregate.
	Type() string

	// Version returns the current version of the aggregate.
	Version() int64

	// Apply applies an event to the aggregate's state.
	Apply(event *Event) error

	// LoadFromHistory rebuilds state from persisted events.
	LoadFromHistory(events []*Event) error

	// UncommittedEvents returns events that have been applied but not yet persisted.
	UncommittedEvents() []*Event

	// ClearUncommittedEvents clears the uncommitted events after they've been persisted.
	ClearUncommittedEvents()
}

// EventApplier mutates aggregate state for one event type.
type EventApplier func(event *Event) error

// AggregateRoot provides base functionality for all aggregates.
// Use this as an embedded type in your aggregate implementations and register
// state transitions with On from the aggregate's constructor.
type AggregateRoot struct {
	id                string
	aggregateType     string
	version           int64
	uncommittedEvents []*Event
	commandID         string // Current command being processed (for deterministic event IDs)
	codec             codec.Codec
	transitions       map[string]EventApplier
}

// NewAggregateRoot creates a new aggregate root with the given ID and type.
func NewAggregateRoot(id, aggregateType string) AggregateRoot {
	return AggregateRoot{
		id:                id,
		aggregateType:     aggregateType,
		uncommittedEvents: make([]*Event, 0),
		transitions:       make(map[string]EventApplier),
	}
}

// ID returns the aggregate's unique identifier.
func (a *AggregateRoot) ID() string {
	return a.id
}

// Type returns the aggregate's type name.
func (a *AggregateRoot) Type() string {
	return a.aggregateType
}

// Version returns the aggregate's current version.
func (a *AggregateRoot) Version() int64 {
	return a.version
}

// SetVersion moves the aggregate to version v. Used when restoring from a snapshot.
func (a *AggregateRoot) SetVersion(v int64) {
	a.version = v
}

// UncommittedEvents returns events that haven't been persisted yet.
func (a *AggregateRoot) UncommittedEvents() []*Event {
	return a.uncommittedEvents
}

// ClearUncommittedEvents clears the uncommitted events list.
func (a *AggregateRoot) ClearUncommittedEvents() {
	a.uncommittedEvents = make([]*Event, 0)
}

// SetCommandID sets the command ID for deterministic event ID generation.
// This should be called before processing a command.
func (a *AggregateRoot) SetCommandID(commandID string) {
	a.commandID = commandID
}

// UseCodec sets the codec used to encode payloads in ApplyChange. The codec's
// name is recorded on each event so Event.Decode picks it again.
func (a *AggregateRoot) UseCodec(c codec.Codec) {
	a.codec = c
}

// On registers the state transition for an event type.
func (a *AggregateRoot) On(eventType string, fn EventApplier) {
	if a.transitions == nil {
		a.transitions = make(map[string]EventApplier)
	}
	a.transitions[eventType] = fn
}

// HandledEventTypes lists the event types with a registered transition, sorted.
func (a *AggregateRoot) HandledEventTypes() []string {
	types := make([]string, 0, len(a.transitions))
	for t := range a.transitions {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Apply dispatches the event to its registered transition.
// Events without a transition are ignored.
func (a *AggregateRoot) Apply(event *Event) error {
	fn, ok := a.transitions[event.EventType]
	if !ok {
		return nil
	}
	return fn(event)
}

// ApplyChange records a new event produced by a domain operation.
// The event is applied to state, appended to the uncommitted events and the
// version is incremented.
func (a *AggregateRoot) ApplyChange(eventType string, payload any, metadata EventMetadata) error {
	c := a.codec
	if c == nil {
		c = codec.Default
	}
	data, err := c.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var eventID string
	if a.commandID != "" {
		eventID = GenerateDeterministicEventID(a.commandID, a.id, len(a.uncommittedEvents))
	} else {
		eventID = GenerateID()
	}

	evt := &Event{
		ID:            eventID,
		AggregateID:   a.id,
		AggregateType: a.aggregateType,
		EventType:     eventType,
		Version:       a.version + 1,
		Timestamp:     Now(),
		Data:          data,
		Codec:         c.Name(),
		Metadata:      metadata,
	}

	if err := a.Apply(evt); err != nil {
		return fmt.Errorf("failed to apply %s: %w", eventType, err)
	}

	a.uncommittedEvents = append(a.uncommittedEvents, evt)
	a.version++

	return nil
}

// LoadFromHistory reconstructs aggregate state from historical events.
// Events must continue the current version without gaps. Nothing is recorded
// as uncommitted.
func (a *AggregateRoot) LoadFromHistory(events []*Event) error {
	for _, evt := range events {
		if evt.Version != a.version+1 {
			return fmt.Errorf("%w: aggregate %s expected version %d, got %d",
				ErrInvalidVersion, a.id, a.version+1, evt.Version)
		}
		if err := a.Apply(evt); err != nil {
			return fmt.Errorf("failed to apply %s v%d: %w", evt.EventType, evt.Version, err)
		}
		a.version = evt.Version
	}
	return nil
}
