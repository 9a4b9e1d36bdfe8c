package observability

import (
	"context"
	"log/slog"
)

// LogObserver logs every notification. Failures are logged at error level,
// everything else at debug.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, n Notification) {
		attrs := []slog.Attr{slog.String("signal", string(n.Signal))}
		if n.CommandType != "" {
			attrs = append(attrs, slog.String("command_type", n.CommandType), slog.String("command_id", n.CommandID))
		}
		if n.QueryType != "" {
			attrs = append(attrs, slog.String("query_type", n.QueryType), slog.Bool("cache_hit", n.CacheHit))
		}
		if n.EventType != "" {
			attrs = append(attrs,
				slog.String("event_type", n.EventType),
				slog.String("aggregate_id", n.AggregateID),
				slog.Int64("version", n.Version),
				slog.Int64("position", n.Position))
		}
		if n.ReadModel != "" {
			attrs = append(attrs, slog.String("read_model", n.ReadModel))
		}
		if n.Duration > 0 {
			attrs = append(attrs, slog.Int64("duration_ms", n.Duration.Milliseconds()))
		}

		level := slog.LevelDebug
		if n.Err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", n.Err.Error()))
		}
		logger.LogAttrs(ctx, level, string(n.Signal), attrs...)
	}
}
