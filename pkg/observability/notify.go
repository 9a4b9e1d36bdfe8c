package observability

import (
	"context"
	"sync"
	"time"
)

// Signal names an observable occurrence in the runtime.
type Signal string

const (
	SignalCommandExecuted   Signal = "command-executed"
	SignalCommandFailed     Signal = "command-failed"
	SignalQueryExecuted     Signal = "query-executed"
	SignalQueryFailed       Signal = "query-failed"
	SignalEventAppended     Signal = "event-appended"
	SignalProjectionUpdated Signal = "projection-updated"
	SignalProjectionError   Signal = "projection-error"
)

// Notification describes one occurrence. Only the fields relevant to the
// signal are set.
type Notification struct {
	Signal Signal
	Time   time.Time

	CommandID   string
	CommandType string
	QueryType   string
	CacheHit    bool

	EventID     string
	EventType   string
	AggregateID string
	Version     int64
	Position    int64

	ReadModel string

	Duration time.Duration
	Err      error
}

// Observer receives notifications. Observers run synchronously on the
// emitting goroutine and must not block.
type Observer func(ctx context.Context, n Notification)

// Emitter fans notifications out to observers. A nil *Emitter discards everything.
type Emitter struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEmitter creates an emitter with the given observers.
func NewEmitter(observers ...Observer) *Emitter {
	return &Emitter{observers: observers}
}

// Subscribe adds an observer.
func (e *Emitter) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Emit delivers n to every observer in subscription order. A panicking
// observer does not affect the others or the caller.
func (e *Emitter) Emit(ctx context.Context, n Notification) {
	if e == nil {
		return
	}
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()

	for _, o := range observers {
		notify(ctx, o, n)
	}
}

func notify(ctx context.Context, o Observer, n Notification) {
	defer func() { _ = recover() }()
	o(ctx, n)
}
