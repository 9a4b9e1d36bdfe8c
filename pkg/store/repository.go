package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaenen/eventcore/pkg/domain"
)

// LoadHook is called after an aggregate was loaded.
type LoadHook func(ctx context.Context, aggregateType string, fromSnapshot bool, eventsReplayed int)

type repositoryConfig struct {
	snapshots SnapshotStore
	strategy  SnapshotStrategy
	logger    *slog.Logger
	onLoad    LoadHook
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repositoryConfig)

// WithSnapshots enables snapshot-aware loading and saving for aggregates that
// implement Snapshotable.
func WithSnapshots(snapshots SnapshotStore, strategy SnapshotStrategy) RepositoryOption {
	return func(c *repositoryConfig) {
		c.snapshots = snapshots
		c.strategy = strategy
	}
}

// WithRepositoryLogger sets the logger used for non-fatal snapshot failures.
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(c *repositoryConfig) {
		c.logger = logger
	}
}

// WithLoadHook registers a hook invoked after every successful Load.
func WithLoadHook(hook LoadHook) RepositoryOption {
	return func(c *repositoryConfig) {
		c.onLoad = hook
	}
}

// Repository loads aggregates from their history and persists their
// uncommitted events with an optimistic version check.
type Repository[T domain.Aggregate] struct {
	eventStore    EventStore
	aggregateType string
	factory       func(id string) T
	config        repositoryConfig
}

// NewRepository creates a new repository for the given aggregate type.
// factory creates an empty aggregate instance with its transitions registered.
func NewRepository[T domain.Aggregate](
	eventStore EventStore,
	aggregateType string,
	factory func(id string) T,
	opts ...RepositoryOption,
) *Repository[T] {
	cfg := repositoryConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[T]{
		eventStore:    eventStore,
		aggregateType: aggregateType,
		factory:       factory,
		config:        cfg,
	}
}

// Load loads an aggregate by ID, starting from its latest snapshot when one exists.
// Returns domain.ErrAggregateNotFound when the aggregate has no events.
func (r *Repository[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T

	aggregate := r.factory(id)

	afterVersion, err := r.restoreSnapshot(ctx, aggregate)
	if err != nil {
		return zero, err
	}

	events, err := r.eventStore.LoadEvents(ctx, id, afterVersion)
	if err != nil {
		return zero, fmt.Errorf("failed to load events: %w", err)
	}

	if afterVersion == 0 && len(events) == 0 {
		return zero, fmt.Errorf("%w: %s %s", domain.ErrAggregateNotFound, r.aggregateType, id)
	}

	if err := aggregate.LoadFromHistory(events); err != nil {
		return zero, fmt.Errorf("failed to load history: %w", err)
	}

	if r.config.onLoad != nil {
		r.config.onLoad(ctx, r.aggregateType, afterVersion > 0, len(events))
	}

	return aggregate, nil
}

// LoadOrCreate loads an aggregate, or returns a fresh instance when it has no history.
func (r *Repository[T]) LoadOrCreate(ctx context.Context, id string) (T, error) {
	aggregate, err := r.Load(ctx, id)
	if errors.Is(err, domain.ErrAggregateNotFound) {
		return r.factory(id), nil
	}
	return aggregate, err
}

func (r *Repository[T]) restoreSnapshot(ctx context.Context, aggregate T) (int64, error) {
	if r.config.snapshots == nil {
		return 0, nil
	}
	snapshotable, ok := any(aggregate).(Snapshotable)
	if !ok {
		return 0, nil
	}

	snap, err := r.config.snapshots.GetSnapshot(ctx, aggregate.ID())
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := snapshotable.UnmarshalSnapshot(snap.Data); err != nil {
		return 0, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	snapshotable.SetVersion(snap.Version)
	return snap.Version, nil
}

// Save persists an aggregate's uncommitted events.
func (r *Repository[T]) Save(ctx context.Context, aggregate T) error {
	uncommittedEvents := aggregate.UncommittedEvents()
	if len(uncommittedEvents) == 0 {
		return nil
	}

	// Version before the new events
	expectedVersion := aggregate.Version() - int64(len(uncommittedEvents))

	if err := r.eventStore.AppendEvents(ctx, aggregate.ID(), uncommittedEvents, expectedVersion); err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}

	aggregate.ClearUncommittedEvents()

	r.maybeSnapshot(ctx, aggregate)

	return nil
}

// maybeSnapshot never fails a save; snapshots only speed up loading.
func (r *Repository[T]) maybeSnapshot(ctx context.Context, aggregate T) {
	if r.config.snapshots == nil || r.config.strategy == nil {
		return
	}
	snapshotable, ok := any(aggregate).(Snapshotable)
	if !ok {
		return
	}

	var lastVersion int64
	prev, err := r.config.snapshots.GetSnapshot(ctx, aggregate.ID())
	switch {
	case err == nil:
		lastVersion = prev.Version
	case !errors.Is(err, domain.ErrSnapshotNotFound):
		r.config.logger.WarnContext(ctx, "snapshot lookup failed",
			slog.String("aggregate_id", aggregate.ID()),
			slog.String("error", err.Error()))
		return
	}

	if !r.config.strategy.ShouldCreateSnapshot(aggregate.Version(), aggregate.Version()-lastVersion) {
		return
	}

	data, err := snapshotable.MarshalSnapshot()
	if err == nil {
		err = r.config.snapshots.SaveSnapshot(ctx, &Snapshot{
			AggregateID:   aggregate.ID(),
			AggregateType: r.aggregateType,
			Version:       aggregate.Version(),
			Data:          data,
			CreatedAt:     domain.Now(),
		})
	}
	if err != nil {
		r.config.logger.WarnContext(ctx, "snapshot save failed",
			slog.String("aggregate_id", aggregate.ID()),
			slog.Int64("version", aggregate.Version()),
			slog.String("error", err.Error()))
	}
}

// Exists checks if an aggregate exists in the event store.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	version, err := r.eventStore.GetAggregateVersion(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check aggregate existence: %w", err)
	}
	return version > 0, nil
}

// RetryOnConflict executes fn with a freshly loaded aggregate and retries when it
// fails with domain.ErrConcurrencyConflict. fn is expected to call Save.
func (r *Repository[T]) RetryOnConflict(ctx context.Context, id string, maxRetries int, fn func(T) error) error {
	for attempt := 0; ; attempt++ {
		agg, err := r.Load(ctx, id)
		if err != nil {
			return err
		}

		err = fn(agg)
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= maxRetries {
			return err
		}

		// Backoff 10ms, 20ms, 40ms, ... capped at ~10s
		backoff := time.Duration(10*(1<<uint(min(attempt, 10)))) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
