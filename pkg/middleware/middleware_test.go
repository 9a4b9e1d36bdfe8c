package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
)

func newBus(t *testing.T, handler cqrs.CommandHandlerFunc) *cqrs.CommandBus {
	t.Helper()
	bus := cqrs.NewCommandBus()
	bus.MustRegister("CreateProduct", handler)
	return bus
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	bus := newBus(t, func(context.Context, *domain.Command) (any, error) { return "P1", nil })
	bus.Wrap(Logging(logger))

	_, err := bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil, domain.WithPrincipal("alice")))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Executing command"`)
	assert.Contains(t, out, `"msg":"Command executed successfully"`)
	assert.Contains(t, out, `"command_type":"CreateProduct"`)
	assert.Contains(t, out, `"principal_id":"alice"`)

	buf.Reset()
	failing := newBus(t, func(context.Context, *domain.Command) (any, error) { return nil, errors.New("boom") })
	failing.Wrap(Logging(logger))
	_, err = failing.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := newBus(t, func(context.Context, *domain.Command) (any, error) { panic("kaboom") })
	bus.Wrap(Recovery(slog.New(slog.NewTextHandler(&buf, nil))))

	result, err := bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, buf.String(), "Command handler panicked")
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := tp.Tracer("test")

	boom := errors.New("boom")
	fail := false
	bus := newBus(t, func(context.Context, *domain.Command) (any, error) {
		if fail {
			return nil, boom
		}
		return nil, nil
	})
	bus.Wrap(Tracing(tracer))

	_, err := bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil, domain.WithPrincipal("alice")))
	require.NoError(t, err)
	fail = true
	_, err = bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil))
	require.ErrorIs(t, err, boom)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "command.CreateProduct", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "CreateProduct", attrs["command.type"])
	assert.Equal(t, "P1", attrs["aggregate.id"])
	assert.Equal(t, "alice", attrs["command.principal_id"])
}

func TestQueryTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)).Tracer("test")

	h := QueryTracing(tracer, cqrs.QueryHandlerFunc(func(context.Context, *domain.Query) (any, error) {
		return 42, nil
	}))
	res, err := h.Handle(context.Background(), domain.NewQuery("GetProduct", nil))
	require.NoError(t, err)
	assert.Equal(t, 42, res)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "query.GetProduct", spans[0].Name())
}

type createProduct struct{ Name string }

func (c createProduct) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestValidation(t *testing.T) {
	bus := newBus(t, func(context.Context, *domain.Command) (any, error) { return nil, nil })
	bus.Use(Validation(SelfValidator{}))

	_, err := bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", createProduct{Name: "Laptop"}))
	require.NoError(t, err)

	_, err = bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", createProduct{}))
	assert.ErrorIs(t, err, domain.ErrCommandRejected)
	assert.Contains(t, err.Error(), "name is required")

	_, err = bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", "no validate method"))
	assert.NoError(t, err)

	custom := newBus(t, func(context.Context, *domain.Command) (any, error) { return nil, nil })
	custom.Use(Validation(ValidatorFunc(func(any) error { return errors.New("always") })))
	_, err = custom.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil))
	assert.ErrorIs(t, err, domain.ErrCommandRejected)
}

func TestMetadataValidation(t *testing.T) {
	tests := []struct {
		name             string
		cmd              *domain.Command
		requirePrincipal bool
		wantErr          bool
	}{
		{"valid", domain.NewCommand("CreateProduct", "P1", nil), false, false},
		{"missing id", &domain.Command{Type: "CreateProduct"}, false, true},
		{"missing principal", domain.NewCommand("CreateProduct", "P1", nil), true, true},
		{"with principal", domain.NewCommand("CreateProduct", "P1", nil, domain.WithPrincipal("alice")), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MetadataValidation(tt.requirePrincipal)(context.Background(), tt.cmd)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidCommand)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingIncludesTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder())).Tracer("test")

	bus := newBus(t, func(context.Context, *domain.Command) (any, error) { return nil, nil })
	bus.Wrap(Tracing(tracer))
	bus.Wrap(Logging(logger))

	_, err := bus.Execute(context.Background(), domain.NewCommand("CreateProduct", "P1", nil))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"trace_id":"`)
}
