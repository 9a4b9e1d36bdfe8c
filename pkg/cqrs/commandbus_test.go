package cqrs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
)

func TestCommandBus(t *testing.T) {
	t.Run("RegisterAndExecute", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		executed := 0

		if err := bus.Register("test.Command", cqrs.CommandHandlerFunc(
			func(ctx context.Context, cmd *domain.Command) (any, error) {
				executed++
				return "ok:" + cmd.AggregateID, nil
			},
		)); err != nil {
			t.Fatalf("failed to register handler: %v", err)
		}

		result, err := bus.Execute(context.Background(), domain.NewCommand("test.Command", "agg-1", nil))
		if err != nil {
			t.Fatalf("failed to execute command: %v", err)
		}
		if result != "ok:agg-1" {
			t.Errorf("unexpected result %v", result)
		}
		if executed != 1 {
			t.Errorf("handler executed %d times, want 1", executed)
		}
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		h := cqrs.CommandHandlerFunc(func(context.Context, *domain.Command) (any, error) { return nil, nil })

		if err := bus.Register("test.Command", h); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		if err := bus.Register("test.Command", h); !errors.Is(err, domain.ErrDuplicateHandler) {
			t.Fatalf("expected ErrDuplicateHandler, got %v", err)
		}

		defer func() {
			if recover() == nil {
				t.Error("MustRegister did not panic on duplicate")
			}
		}()
		bus.MustRegister("test.Command", h)
	})

	t.Run("NoHandlerFound", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		_, err := bus.Execute(context.Background(), domain.NewCommand("nonexistent.Command", "", nil))
		if !errors.Is(err, domain.ErrNoHandlerFound) {
			t.Fatalf("expected ErrNoHandlerFound, got %v", err)
		}
	})

	t.Run("NilCommand", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		if _, err := bus.Execute(context.Background(), nil); !errors.Is(err, domain.ErrInvalidCommand) {
			t.Fatalf("expected ErrInvalidCommand, got %v", err)
		}
	})

	t.Run("MiddlewareRunsInOrderAndTransforms", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		var order []int

		bus.Use(func(ctx context.Context, cmd *domain.Command) (*domain.Command, error) {
			order = append(order, 1)
			return cmd, nil
		})
		bus.Use(func(ctx context.Context, cmd *domain.Command) (*domain.Command, error) {
			order = append(order, 2)
			next := *cmd
			next.Metadata.PrincipalID = "system"
			return &next, nil
		})

		var principal string
		bus.MustRegister("test.Command", cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.Command) (any, error) {
			order = append(order, 3)
			principal = cmd.Metadata.PrincipalID
			return nil, nil
		}))

		if _, err := bus.Execute(context.Background(), domain.NewCommand("test.Command", "", nil)); err != nil {
			t.Fatalf("failed to execute command: %v", err)
		}
		if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
			t.Errorf("unexpected order %v", order)
		}
		if principal != "system" {
			t.Errorf("handler saw principal %q, want transformed command", principal)
		}
	})

	t.Run("MiddlewareRejects", func(t *testing.T) {
		tests := []struct {
			name string
			mw   cqrs.CommandMiddleware
		}{
			{"nil command", func(context.Context, *domain.Command) (*domain.Command, error) { return nil, nil }},
			{"error", func(context.Context, *domain.Command) (*domain.Command, error) { return nil, errors.New("not allowed") }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				bus := cqrs.NewCommandBus()
				bus.Use(tt.mw)
				called := false
				bus.MustRegister("test.Command", cqrs.CommandHandlerFunc(func(context.Context, *domain.Command) (any, error) {
					called = true
					return nil, nil
				}))

				_, err := bus.Execute(context.Background(), domain.NewCommand("test.Command", "", nil))
				if !errors.Is(err, domain.ErrCommandRejected) {
					t.Fatalf("expected ErrCommandRejected, got %v", err)
				}
				if called {
					t.Error("handler ran for a rejected command")
				}
			})
		}
	})

	t.Run("DecoratorsWrapOutermostFirst", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		var order []string
		decorate := func(name string) cqrs.CommandDecorator {
			return func(next cqrs.CommandHandler) cqrs.CommandHandler {
				return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.Command) (any, error) {
					order = append(order, name+":before")
					res, err := next.Handle(ctx, cmd)
					order = append(order, name+":after")
					return res, err
				})
			}
		}
		bus.Wrap(decorate("outer"))
		bus.Wrap(decorate("inner"))
		bus.MustRegister("test.Command", cqrs.CommandHandlerFunc(func(context.Context, *domain.Command) (any, error) {
			order = append(order, "handler")
			return nil, nil
		}))

		if _, err := bus.Execute(context.Background(), domain.NewCommand("test.Command", "", nil)); err != nil {
			t.Fatalf("failed to execute command: %v", err)
		}
		want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
		if len(order) != len(want) {
			t.Fatalf("got %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("got %v, want %v", order, want)
			}
		}
	})

	t.Run("Notifications", func(t *testing.T) {
		var signals []observability.Signal
		emitter := observability.NewEmitter(func(_ context.Context, n observability.Notification) {
			signals = append(signals, n.Signal)
		})
		bus := cqrs.NewCommandBus(cqrs.WithEmitter(emitter))
		boom := errors.New("boom")
		bus.MustRegister("ok", cqrs.CommandHandlerFunc(func(context.Context, *domain.Command) (any, error) { return nil, nil }))
		bus.MustRegister("fail", cqrs.CommandHandlerFunc(func(context.Context, *domain.Command) (any, error) { return nil, boom }))

		if _, err := bus.Execute(context.Background(), domain.NewCommand("ok", "", nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := bus.Execute(context.Background(), domain.NewCommand("fail", "", nil)); !errors.Is(err, boom) {
			t.Fatalf("handler error not propagated: %v", err)
		}
		_, _ = bus.Execute(context.Background(), domain.NewCommand("missing", "", nil))

		want := []observability.Signal{
			observability.SignalCommandExecuted,
			observability.SignalCommandFailed,
			observability.SignalCommandFailed,
		}
		if len(signals) != len(want) {
			t.Fatalf("got %v, want %v", signals, want)
		}
		for i := range want {
			if signals[i] != want[i] {
				t.Fatalf("got %v, want %v", signals, want)
			}
		}
	})

	t.Run("RegisteredTypes", func(t *testing.T) {
		bus := cqrs.NewCommandBus()
		h := cqrs.CommandHandlerFunc(func(context.Context, *domain.Command) (any, error) { return nil, nil })
		bus.MustRegister("b", h)
		bus.MustRegister("a", h)
		types := bus.RegisteredTypes()
		if len(types) != 2 || types[0] != "a" || types[1] != "b" {
			t.Errorf("unexpected types %v", types)
		}
	})
}
