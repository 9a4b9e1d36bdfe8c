package domain

import (
	"maps"
	"time"

	"github.com/plaenen/eventcore/pkg/idgen"
)

// Command represents an intention to change the system state.
// Commands are consumed once by the command bus.
type Command struct {
	// ID is the unique identifier for this command
	ID string

	// Type selects the command handler
	Type string

	// AggregateID is the ID of the aggregate this command targets (optional)
	AggregateID string

	// Payload carries the command arguments
	Payload any

	Metadata CommandMetadata
}

// CommandMetadata contains contextual information about a command.
type CommandMetadata struct {
	// Timestamp is when the command was created
	Timestamp time.Time

	// PrincipalID is the identifier of the principal executing this command
	PrincipalID string

	// CorrelationID is used to trace related commands and events
	CorrelationID string

	// Custom allows for application-specific metadata
	Custom map[string]string
}

// CommandOption customizes a command created by NewCommand.
type CommandOption func(*Command)

// WithCommandID overrides the generated command ID.
func WithCommandID(id string) CommandOption {
	return func(c *Command) { c.ID = id }
}

// WithPrincipal sets the principal executing the command.
func WithPrincipal(principalID string) CommandOption {
	return func(c *Command) { c.Metadata.PrincipalID = principalID }
}

// WithCorrelationID sets the correlation ID.
func WithCorrelationID(correlationID string) CommandOption {
	return func(c *Command) { c.Metadata.CorrelationID = correlationID }
}

// WithCustomMetadata adds an application-specific metadata entry.
func WithCustomMetadata(key, value string) CommandOption {
	return func(c *Command) {
		if c.Metadata.Custom == nil {
			c.Metadata.Custom = make(map[string]string)
		}
		c.Metadata.Custom[key] = value
	}
}

// NewCommand creates a command with a sortable ID and the current timestamp.
func NewCommand(commandType, aggregateID string, payload any, opts ...CommandOption) *Command {
	cmd := &Command{
		ID:          idgen.MustGenerateSortableID(),
		Type:        commandType,
		AggregateID: aggregateID,
		Payload:     payload,
		Metadata: CommandMetadata{
			Timestamp: Now(),
		},
	}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

// EventMetadata derives the metadata for events caused by this command.
func (c *Command) EventMetadata() EventMetadata {
	correlationID := c.Metadata.CorrelationID
	if correlationID == "" {
		correlationID = c.ID
	}
	return EventMetadata{
		CausationID:   c.ID,
		CorrelationID: correlationID,
		PrincipalID:   c.Metadata.PrincipalID,
		Custom:        maps.Clone(c.Metadata.Custom),
	}
}

// Query is a read-only request answered from read models.
type Query struct {
	ID         string
	Type       string
	Parameters map[string]any
	Timestamp  time.Time
}

// NewQuery creates a query with a sortable ID and the current timestamp.
func NewQuery(queryType string, params map[string]any) *Query {
	if params == nil {
		params = make(map[string]any)
	}
	return &Query{
		ID:         idgen.MustGenerateSortableID(),
		Type:       queryType,
		Parameters: params,
		Timestamp:  Now(),
	}
}

// StringParam returns a string parameter, or "" when absent or not a string.
func (q *Query) StringParam(key string) string {
	s, _ := q.Parameters[key].(string)
	return s
}
