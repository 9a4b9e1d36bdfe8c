package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span with the given name and attributes.
// Returns a context containing the span and the span.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan ends a span, recording err when non-nil
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID extracts the trace ID from context as a string
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// Common attribute keys
var (
	AttrAggregateID = attribute.Key("aggregate.id")
	AttrCommandType = attribute.Key("command.type")
	AttrCommandID   = attribute.Key("command.id")
	AttrQueryType   = attribute.Key("query.type")
	AttrErrorType   = attribute.Key("error.type")
)

// CommandAttrs returns common command attributes
func CommandAttrs(commandType, commandID, aggregateID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrCommandType.String(commandType),
	}
	if commandID != "" {
		attrs = append(attrs, AttrCommandID.String(commandID))
	}
	if aggregateID != "" {
		attrs = append(attrs, AttrAggregateID.String(aggregateID))
	}
	return attrs
}

// ErrorAttrs returns common error attributes
func ErrorAttrs(err error) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrErrorType.String(fmt.Sprintf("%T", err)),
	}
}
