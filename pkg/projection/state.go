package projection

import "time"

// Status represents the current operational status of a read model's projections.
type Status string

const (
	// StatusReady indicates the read model is up-to-date and ready to serve queries
	StatusReady Status = "READY"

	// StatusRebuilding indicates the read model is being rebuilt from the event log
	StatusRebuilding Status = "REBUILDING"

	// StatusFailed indicates the last projection or rebuild for the read model failed
	StatusFailed Status = "FAILED"
)

// State tracks the operational state of a read model.
type State struct {
	ReadModel string
	Status    Status

	// Checkpoint is the global position of the last event the read model has seen.
	Checkpoint int64

	// Message holds the last error, if any.
	Message   string
	UpdatedAt time.Time

	// Progress is set while rebuilding.
	Progress *RebuildProgress
}

// RebuildProgress tracks progress during a rebuild.
type RebuildProgress struct {
	EventsProcessed int64
	StartedAt       time.Time
}
