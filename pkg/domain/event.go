package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"time"

	"github.com/plaenen/eventcore/pkg/codec"
)

// Event represents a domain event that has occurred in the system.
// Events are immutable facts about state changes.
type Event struct {
	// ID is the unique identifier for this event
	ID string

	// AggregateID is the identifier of the aggregate this event belongs to
	AggregateID string

	// AggregateType is the type name of the aggregate (e.g., "Product")
	AggregateType string

	// EventType names the fact that happened (e.g., "ProductCreated")
	EventType string

	// Version is the version number of the aggregate after applying this event
	Version int64

	// Position is the global position in the event log, assigned on append
	Position int64

	// Timestamp is when the event was created
	Timestamp time.Time

	// Data is the encoded payload of the event
	Data []byte

	// Codec names the codec that encoded Data; empty means codec.Default
	Codec string

	// Metadata contains additional contextual information
	Metadata EventMetadata
}

// EventMetadata contains contextual information about an event.
type EventMetadata struct {
	// CausationID is the ID of the command that caused this event
	CausationID string

	// CorrelationID is used to trace related events across aggregates
	CorrelationID string

	// PrincipalID is the identifier of the principal who triggered this event
	PrincipalID string

	// Custom allows for application-specific metadata
	Custom map[string]string
}

// Decode decodes the payload into v using the codec that encoded it.
func (e *Event) Decode(v any) error {
	c, err := codec.ByName(e.Codec)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return e.DecodeWith(c, v)
}

// DecodeWith decodes the payload into v using c.
func (e *Event) DecodeWith(c codec.Codec, v any) error {
	if err := c.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.Data != nil {
		c.Data = append([]byte(nil), e.Data...)
	}
	if e.Metadata.Custom != nil {
		c.Metadata.Custom = maps.Clone(e.Metadata.Custom)
	}
	return &c
}

// CloneEvents deep copies a slice of events.
func CloneEvents(events []*Event) []*Event {
	out := make([]*Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// GenerateDeterministicEventID generates a deterministic event ID from command context.
// The same command always produces the same event IDs.
func GenerateDeterministicEventID(commandID, aggregateID string, sequence int) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s:%s:%d", commandID, aggregateID, sequence)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
