// Package projection keeps read models up to date by applying events from the
// event store.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
	"github.com/plaenen/eventcore/pkg/readmodel"
	"github.com/plaenen/eventcore/pkg/store"
)

// DefaultBatchSize is the number of events loaded per page during a rebuild.
const DefaultBatchSize = 1000

// Func applies one event to a read model.
type Func func(ctx context.Context, rm readmodel.ReadModel, event *domain.Event) error

type registration struct {
	readModel string
	fn        Func
}

type engineConfig struct {
	logger    *slog.Logger
	emitter   *observability.Emitter
	batchSize int
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithEmitter reports projection-updated and projection-error notifications.
func WithEmitter(emitter *observability.Emitter) Option {
	return func(c *engineConfig) {
		c.emitter = emitter
	}
}

// WithBatchSize sets the rebuild page size.
func WithBatchSize(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// Engine routes events to the projections registered for their type.
//
// Each read model carries a checkpoint (the last global position applied), so
// an event is never applied twice to the same read model, including while a
// rebuild races with live appends. Projection functions must not append to the
// event store.
type Engine struct {
	eventStore  store.EventStore
	unsubscribe func()
	cfg         engineConfig

	// mu serializes event application (live and rebuild).
	mu sync.Mutex

	// regMu protects the registry below.
	regMu       sync.RWMutex
	projections map[string][]registration
	readModels  map[string]readmodel.ReadModel
	states      map[string]*State
}

// NewEngine creates an engine subscribed to eventStore.
func NewEngine(eventStore store.EventStore, opts ...Option) *Engine {
	cfg := engineConfig{logger: slog.Default(), batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		eventStore:  eventStore,
		cfg:         cfg,
		projections: make(map[string][]registration),
		readModels:  make(map[string]readmodel.ReadModel),
		states:      make(map[string]*State),
	}
	e.unsubscribe = eventStore.Subscribe(e.ProcessEvent)
	return e
}

// Close detaches the engine from the event store.
func (e *Engine) Close() {
	e.unsubscribe()
}

// AddReadModel registers a read model. Names must be unique.
func (e *Engine) AddReadModel(rm readmodel.ReadModel) error {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	if _, exists := e.readModels[rm.Name()]; exists {
		return fmt.Errorf("read model %q already registered", rm.Name())
	}
	e.readModels[rm.Name()] = rm
	e.states[rm.Name()] = &State{ReadModel: rm.Name(), Status: StatusReady, UpdatedAt: domain.Now()}
	return nil
}

// ReadModel returns the read model registered under name.
func (e *Engine) ReadModel(name string) (readmodel.ReadModel, error) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()

	rm, ok := e.readModels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrReadModelNotFound, name)
	}
	return rm, nil
}

// RegisterProjection adds fn for eventType targeting the named read model.
// Projections for one event type run in registration order.
func (e *Engine) RegisterProjection(eventType, readModelName string, fn Func) error {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	if _, ok := e.readModels[readModelName]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrReadModelNotFound, readModelName)
	}
	e.projections[eventType] = append(e.projections[eventType], registration{readModel: readModelName, fn: fn})
	return nil
}

// EventTypes lists the event types with at least one projection, sorted.
func (e *Engine) EventTypes() []string {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	return readmodel.SortedKeys(e.projections)
}

// ProcessEvent applies the event to every projection registered for its type.
// Errors and panics are isolated per projection: they are logged and reported
// but never returned, so the write path is unaffected.
func (e *Engine) ProcessEvent(ctx context.Context, event *domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.regMu.RLock()
	regs := e.projections[event.EventType]
	e.regMu.RUnlock()

	for _, reg := range regs {
		if !e.shouldApply(reg.readModel, event) {
			continue
		}
		e.apply(ctx, reg, event)
	}

	e.advance(event, func(s *State) bool { return s.Status != StatusRebuilding })
}

// shouldApply skips read models that are rebuilding (the rebuild will pick the
// event up) or that have already seen the event's position.
func (e *Engine) shouldApply(readModel string, event *domain.Event) bool {
	e.regMu.RLock()
	defer e.regMu.RUnlock()

	state, ok := e.states[readModel]
	if !ok {
		return false
	}
	if state.Status == StatusRebuilding {
		return false
	}
	return event.Position == 0 || event.Position > state.Checkpoint
}

// advance moves the checkpoint of every read model selected by include.
func (e *Engine) advance(event *domain.Event, include func(*State) bool) {
	if event.Position == 0 {
		return
	}
	e.regMu.Lock()
	defer e.regMu.Unlock()
	for _, s := range e.states {
		if include(s) && event.Position > s.Checkpoint {
			s.Checkpoint = event.Position
		}
	}
}

func (e *Engine) apply(ctx context.Context, reg registration, event *domain.Event) {
	e.regMu.RLock()
	rm := e.readModels[reg.readModel]
	e.regMu.RUnlock()

	start := time.Now()
	err := safeApply(ctx, reg.fn, rm, event)
	duration := time.Since(start)

	n := observability.Notification{
		EventID:     event.ID,
		EventType:   event.EventType,
		AggregateID: event.AggregateID,
		Version:     event.Version,
		Position:    event.Position,
		ReadModel:   reg.readModel,
		Duration:    duration,
	}

	if err != nil {
		e.cfg.logger.ErrorContext(ctx, "projection failed",
			slog.String("read_model", reg.readModel),
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int64("position", event.Position),
			slog.String("error", err.Error()))

		e.markFailed(reg.readModel, err)

		n.Signal = observability.SignalProjectionError
		n.Err = err
		e.cfg.emitter.Emit(ctx, n)
		return
	}

	n.Signal = observability.SignalProjectionUpdated
	e.cfg.emitter.Emit(ctx, n)
}

func safeApply(ctx context.Context, fn Func, rm readmodel.ReadModel, event *domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("projection panic: %v", r)
		}
	}()
	return fn(ctx, rm, event)
}

// markFailed records err. A rebuilding read model keeps its status until the
// rebuild finishes.
func (e *Engine) markFailed(readModel string, err error) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if s, ok := e.states[readModel]; ok {
		if s.Status != StatusRebuilding {
			s.Status = StatusFailed
		}
		s.Message = err.Error()
		s.UpdatedAt = domain.Now()
	}
}

func (e *Engine) setStatus(readModel string, status Status, message string) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if s, ok := e.states[readModel]; ok {
		s.Status = status
		s.Message = message
		s.UpdatedAt = domain.Now()
	}
}

// Rebuild clears the named read model and replays the whole event log through
// the projections targeting it. Other read models are untouched.
func (e *Engine) Rebuild(ctx context.Context, readModelName string) error {
	rm, err := e.ReadModel(readModelName)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if err := rm.Clear(ctx); err != nil {
		e.mu.Unlock()
		e.setStatus(readModelName, StatusFailed, err.Error())
		return fmt.Errorf("clear %s: %w", readModelName, err)
	}
	e.regMu.Lock()
	state := e.states[readModelName]
	state.Status = StatusRebuilding
	state.Message = ""
	state.Checkpoint = 0
	state.UpdatedAt = domain.Now()
	state.Progress = &RebuildProgress{StartedAt: time.Now()}
	e.regMu.Unlock()
	e.mu.Unlock()

	e.cfg.logger.InfoContext(ctx, "rebuilding read model", slog.String("read_model", readModelName))

	var processed int64
	for {
		done, n, err := e.rebuildPage(ctx, readModelName)
		processed += n
		if err != nil {
			e.setStatus(readModelName, StatusFailed, err.Error())
			return fmt.Errorf("rebuild %s: %w", readModelName, err)
		}
		if done {
			break
		}
	}

	e.cfg.logger.InfoContext(ctx, "read model rebuilt",
		slog.String("read_model", readModelName),
		slog.Int64("events", processed))
	return nil
}

// rebuildPage applies the next page of events under the processing lock. When
// no events remain the read model is switched back to READY before the lock is
// released, so no live event can slip between the last page and the switch.
func (e *Engine) rebuildPage(ctx context.Context, readModelName string) (done bool, processed int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	e.regMu.RLock()
	state := e.states[readModelName]
	from := state.Checkpoint
	e.regMu.RUnlock()

	events, err := e.eventStore.LoadAllEvents(ctx, from, e.cfg.batchSize)
	if err != nil {
		return false, 0, fmt.Errorf("load events after %d: %w", from, err)
	}

	if len(events) == 0 {
		e.regMu.Lock()
		state.Status = StatusReady
		if state.Message != "" {
			state.Status = StatusFailed
		}
		state.Progress = nil
		state.UpdatedAt = domain.Now()
		e.regMu.Unlock()
		return true, 0, nil
	}

	for _, event := range events {
		e.regMu.RLock()
		regs := slices.Clone(e.projections[event.EventType])
		e.regMu.RUnlock()

		for _, reg := range regs {
			if reg.readModel == readModelName {
				e.apply(ctx, reg, event)
			}
		}

		e.regMu.Lock()
		state.Checkpoint = event.Position
		state.Progress.EventsProcessed++
		e.regMu.Unlock()
	}
	return false, int64(len(events)), nil
}

// RebuildAll rebuilds every registered read model.
func (e *Engine) RebuildAll(ctx context.Context) error {
	for _, s := range e.States() {
		if err := e.Rebuild(ctx, s.ReadModel); err != nil {
			return err
		}
	}
	return nil
}

// State returns a copy of the named read model's state.
func (e *Engine) State(readModelName string) (State, error) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()

	s, ok := e.states[readModelName]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", domain.ErrReadModelNotFound, readModelName)
	}
	return copyState(s), nil
}

// States returns the state of every read model, ordered by name.
func (e *Engine) States() []State {
	e.regMu.RLock()
	defer e.regMu.RUnlock()

	out := make([]State, 0, len(e.states))
	for _, name := range readmodel.SortedKeys(e.states) {
		out = append(out, copyState(e.states[name]))
	}
	return out
}

func copyState(s *State) State {
	c := *s
	if s.Progress != nil {
		p := *s.Progress
		c.Progress = &p
	}
	return c
}
