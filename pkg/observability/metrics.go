package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the CQRS runtime
type Metrics struct {
	// Command metrics
	CommandDuration metric.Float64Histogram
	CommandTotal    metric.Int64Counter
	CommandErrors   metric.Int64Counter

	// Query metrics
	QueryDuration  metric.Float64Histogram
	QueryTotal     metric.Int64Counter
	QueryCacheHits metric.Int64Counter
	QueryErrors    metric.Int64Counter

	// Event metrics
	EventsAppended metric.Int64Counter

	// Aggregate metrics
	AggregateLoads metric.Int64Counter
	EventsReplayed metric.Int64Counter
	SnapshotHits   metric.Int64Counter
	SnapshotMisses metric.Int64Counter

	// Projection metrics
	ProjectionUpdates metric.Int64Counter
	ProjectionErrors  metric.Int64Counter
}

// NewMetrics creates all metric instruments
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CommandDuration, err = meter.Float64Histogram(
		"eventsourcing.command.duration",
		metric.WithDescription("Command execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	m.CommandTotal, err = meter.Int64Counter(
		"eventsourcing.command.total",
		metric.WithDescription("Total commands executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.total: %w", err)
	}

	m.CommandErrors, err = meter.Int64Counter(
		"eventsourcing.command.errors",
		metric.WithDescription("Total command errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.errors: %w", err)
	}

	m.QueryDuration, err = meter.Float64Histogram(
		"eventsourcing.query.duration",
		metric.WithDescription("Query execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query.duration: %w", err)
	}

	m.QueryTotal, err = meter.Int64Counter(
		"eventsourcing.query.total",
		metric.WithDescription("Total queries executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query.total: %w", err)
	}

	m.QueryCacheHits, err = meter.Int64Counter(
		"eventsourcing.query.cache_hits",
		metric.WithDescription("Queries answered from the query cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query.cache_hits: %w", err)
	}

	m.QueryErrors, err = meter.Int64Counter(
		"eventsourcing.query.errors",
		metric.WithDescription("Total query errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query.errors: %w", err)
	}

	m.EventsAppended, err = meter.Int64Counter(
		"eventsourcing.events.appended",
		metric.WithDescription("Total events appended to event store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.appended: %w", err)
	}

	m.AggregateLoads, err = meter.Int64Counter(
		"eventsourcing.aggregate.loads",
		metric.WithDescription("Total aggregate loads"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating aggregate.loads: %w", err)
	}

	m.EventsReplayed, err = meter.Int64Counter(
		"eventsourcing.aggregate.events_replayed",
		metric.WithDescription("Events replayed while loading aggregates"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating aggregate.events_replayed: %w", err)
	}

	m.SnapshotHits, err = meter.Int64Counter(
		"eventsourcing.snapshot.hits",
		metric.WithDescription("Snapshot cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot.hits: %w", err)
	}

	m.SnapshotMisses, err = meter.Int64Counter(
		"eventsourcing.snapshot.misses",
		metric.WithDescription("Snapshot cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot.misses: %w", err)
	}

	m.ProjectionUpdates, err = meter.Int64Counter(
		"eventsourcing.projection.updates",
		metric.WithDescription("Projection functions applied successfully"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.updates: %w", err)
	}

	m.ProjectionErrors, err = meter.Int64Counter(
		"eventsourcing.projection.errors",
		metric.WithDescription("Projection processing errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.errors: %w", err)
	}

	return m, nil
}

// RecordCommand records command execution metrics
func (m *Metrics) RecordCommand(ctx context.Context, commandType string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("command_type", commandType))

	m.CommandDuration.Record(ctx, duration.Seconds(), attrs)
	m.CommandTotal.Add(ctx, 1, attrs)

	if err != nil {
		m.CommandErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command_type", commandType),
			attribute.String("error_type", fmt.Sprintf("%T", err)),
		))
	}
}

// RecordQuery records query execution metrics
func (m *Metrics) RecordQuery(ctx context.Context, queryType string, duration time.Duration, cacheHit bool, err error) {
	attrs := metric.WithAttributes(attribute.String("query_type", queryType))

	m.QueryDuration.Record(ctx, duration.Seconds(), attrs)
	m.QueryTotal.Add(ctx, 1, attrs)
	if cacheHit {
		m.QueryCacheHits.Add(ctx, 1, attrs)
	}
	if err != nil {
		m.QueryErrors.Add(ctx, 1, attrs)
	}
}

// RecordAggregateLoad records aggregate load metrics with snapshot usage.
// Its signature matches store.LoadHook.
func (m *Metrics) RecordAggregateLoad(ctx context.Context, aggregateType string, snapshotUsed bool, eventsReplayed int) {
	attrs := metric.WithAttributes(attribute.String("aggregate_type", aggregateType))

	m.AggregateLoads.Add(ctx, 1, attrs)
	m.EventsReplayed.Add(ctx, int64(eventsReplayed), attrs)

	if snapshotUsed {
		m.SnapshotHits.Add(ctx, 1, attrs)
	} else {
		m.SnapshotMisses.Add(ctx, 1, attrs)
	}
}

// RecordProjectionUpdate records a successful projection function
func (m *Metrics) RecordProjectionUpdate(ctx context.Context, readModel, eventType string) {
	m.ProjectionUpdates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("read_model", readModel),
		attribute.String("event_type", eventType),
	))
}

// RecordProjectionError records projection processing errors
func (m *Metrics) RecordProjectionError(ctx context.Context, readModel string, err error) {
	m.ProjectionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("read_model", readModel),
		attribute.String("error_type", fmt.Sprintf("%T", err)),
	))
}

// Observer converts runtime notifications into measurements.
func (m *Metrics) Observer() Observer {
	return func(ctx context.Context, n Notification) {
		switch n.Signal {
		case SignalCommandExecuted, SignalCommandFailed:
			m.RecordCommand(ctx, n.CommandType, n.Duration, n.Err)
		case SignalQueryExecuted, SignalQueryFailed:
			m.RecordQuery(ctx, n.QueryType, n.Duration, n.CacheHit, n.Err)
		case SignalEventAppended:
			m.EventsAppended.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", n.EventType)))
		case SignalProjectionUpdated:
			m.RecordProjectionUpdate(ctx, n.ReadModel, n.EventType)
		case SignalProjectionError:
			m.RecordProjectionError(ctx, n.ReadModel, n.Err)
		}
	}
}
