package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
)

// Tracing wraps each command handler invocation in a span named
// "command.<type>". The span is the parent of anything the handler traces.
func Tracing(tracer trace.Tracer) cqrs.CommandDecorator {
	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.Command) (any, error) {
			attrs := observability.CommandAttrs(cmd.Type, cmd.ID, cmd.AggregateID)
			if cmd.Metadata.PrincipalID != "" {
				attrs = append(attrs, attribute.String("command.principal_id", cmd.Metadata.PrincipalID))
			}
			if cmd.Metadata.CorrelationID != "" {
				attrs = append(attrs, attribute.String("command.correlation_id", cmd.Metadata.CorrelationID))
			}

			spanCtx, span := observability.StartSpan(ctx, tracer, "command."+cmd.Type, attrs...)

			result, err := next.Handle(spanCtx, cmd)
			if err != nil {
				span.SetAttributes(observability.ErrorAttrs(err)...)
			}
			observability.EndSpan(span, err)

			return result, err
		})
	}
}

// QueryTracing wraps query handlers in a span named "query.<type>".
func QueryTracing(tracer trace.Tracer, next cqrs.QueryHandler) cqrs.QueryHandler {
	return cqrs.QueryHandlerFunc(func(ctx context.Context, q *domain.Query) (any, error) {
		spanCtx, span := observability.StartSpan(ctx, tracer, "query."+q.Type,
			observability.AttrQueryType.String(q.Type))

		result, err := next.Handle(spanCtx, q)
		if err != nil {
			span.SetAttributes(observability.ErrorAttrs(err)...)
		}
		observability.EndSpan(span, err)

		return result, err
	})
}
