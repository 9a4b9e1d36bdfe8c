// Package middleware provides command bus middleware and handler decorators.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
)

// Logging logs command execution with timing information using slog.
func Logging(logger *slog.Logger) cqrs.CommandDecorator {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.Command) (any, error) {
			start := time.Now()

			attrs := []any{
				slog.String("command_type", cmd.Type),
				slog.String("command_id", cmd.ID),
				slog.String("aggregate_id", cmd.AggregateID),
				slog.String("principal_id", cmd.Metadata.PrincipalID),
				slog.String("correlation_id", cmd.Metadata.CorrelationID),
			}
			if traceID := observability.TraceID(ctx); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			logger.InfoContext(ctx, "Executing command", attrs...)

			result, err := next.Handle(ctx, cmd)

			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "Command execution failed",
					slog.String("command_type", cmd.Type),
					slog.String("command_id", cmd.ID),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "Command executed successfully",
				slog.String("command_type", cmd.Type),
				slog.String("command_id", cmd.ID),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)

			return result, nil
		})
	}
}
