package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAggregateNotFound is returned when an aggregate doesn't exist.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrConcurrencyConflict is returned when there's an optimistic concurrency conflict.
	ErrConcurrencyConflict = errors.New("concurrency conflict: aggregate version mismatch")

	// ErrInvalidVersion is returned when event versions are not contiguous.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidEvent is returned when an event cannot be appended as given.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrCommandAlreadyProcessed is returned when a batch carries an event ID that
	// is already stored, i.e. a command ID was replayed.
	ErrCommandAlreadyProcessed = errors.New("command already processed")

	// ErrInvalidCommand is returned when a command is invalid.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrInvalidQuery is returned when a query is invalid.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrCommandRejected is returned when a command middleware stops a command.
	ErrCommandRejected = errors.New("command rejected")

	// ErrNoHandlerFound is returned when no handler is registered for a command or query type.
	ErrNoHandlerFound = errors.New("no handler found")

	// ErrDuplicateHandler is returned when a second handler is registered for the same type.
	ErrDuplicateHandler = errors.New("handler already registered")

	// ErrDomainViolation is returned when a domain operation breaks an aggregate invariant.
	ErrDomainViolation = errors.New("domain rule violated")

	// ErrSnapshotNotFound is returned when a snapshot cannot be found.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrReadModelNotFound is returned when a read model name is unknown.
	ErrReadModelNotFound = errors.New("read model not found")

	// ErrRecordNotFound is returned when a read model has no record for a key.
	ErrRecordNotFound = errors.New("record not found")
)

// ConcurrencyError reports the versions involved in an optimistic lock failure.
type ConcurrencyError struct {
	AggregateID string
	Expected    int64
	Actual      int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, actual %d",
		e.AggregateID, e.Expected, e.Actual)
}

func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// NewConcurrencyError creates a new concurrency error.
func NewConcurrencyError(aggregateID string, expected, actual int64) error {
	return &ConcurrencyError{AggregateID: aggregateID, Expected: expected, Actual: actual}
}

// DomainError is a business rule violation raised by an aggregate.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Is(target error) bool {
	return target == ErrDomainViolation
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// RejectionError is returned when a command middleware rejects a command.
type RejectionError struct {
	CommandType string
	Reason      string
	Err         error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %s rejected: %v", e.CommandType, e.Err)
	}
	return fmt.Sprintf("command %s rejected: %s", e.CommandType, e.Reason)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrCommandRejected
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}
