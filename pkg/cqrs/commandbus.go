package cqrs

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
)

// CommandHandler processes a command and returns a result.
type CommandHandler interface {
	Handle(ctx context.Context, cmd *domain.Command) (any, error)
}

// CommandHandlerFunc is a function adapter for CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmd *domain.Command) (any, error)

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd *domain.Command) (any, error) {
	return f(ctx, cmd)
}

// CommandMiddleware inspects a command before dispatch. It returns the
// (possibly transformed) command to continue, or nil or an error to reject it.
type CommandMiddleware func(ctx context.Context, cmd *domain.Command) (*domain.Command, error)

// CommandDecorator wraps handlers with cross-cutting concerns such as logging,
// tracing or panic recovery.
type CommandDecorator func(CommandHandler) CommandHandler

// CommandBus routes each command to exactly one handler.
type CommandBus struct {
	mu         sync.RWMutex
	handlers   map[string]CommandHandler
	middleware []CommandMiddleware
	decorators []CommandDecorator
	cfg        busConfig
}

// NewCommandBus creates a new command bus instance.
func NewCommandBus(opts ...Option) *CommandBus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CommandBus{
		handlers: make(map[string]CommandHandler),
		cfg:      cfg,
	}
}

// Register registers the handler for a command type.
// Returns domain.ErrDuplicateHandler if the type already has one.
func (b *CommandBus) Register(commandType string, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[commandType]; exists {
		return fmt.Errorf("%w: command type %s", domain.ErrDuplicateHandler, commandType)
	}
	b.handlers[commandType] = handler
	return nil
}

// MustRegister is like Register but panics on error. Intended for wiring code.
func (b *CommandBus) MustRegister(commandType string, handler CommandHandler) {
	if err := b.Register(commandType, handler); err != nil {
		panic(err)
	}
}

// Use adds middleware to the command pipeline. Middleware runs in the order it
// was added.
func (b *CommandBus) Use(middleware CommandMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// Wrap adds a handler decorator. The first decorator added is outermost.
func (b *CommandBus) Wrap(decorator CommandDecorator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decorators = append(b.decorators, decorator)
}

// RegisteredTypes returns the registered command types, sorted.
func (b *CommandBus) RegisteredTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Execute runs the command through the middleware and its handler.
// Exactly one handler is invoked; nothing is retried.
func (b *CommandBus) Execute(ctx context.Context, cmd *domain.Command) (any, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", domain.ErrInvalidCommand)
	}

	start := b.cfg.now()
	result, err := b.execute(ctx, cmd)

	n := observability.Notification{
		Signal:      observability.SignalCommandExecuted,
		CommandID:   cmd.ID,
		CommandType: cmd.Type,
		AggregateID: cmd.AggregateID,
		Duration:    b.cfg.now().Sub(start),
	}
	if err != nil {
		n.Signal = observability.SignalCommandFailed
		n.Err = err
	}
	b.cfg.emitter.Emit(ctx, n)

	return result, err
}

func (b *CommandBus) execute(ctx context.Context, cmd *domain.Command) (any, error) {
	b.mu.RLock()
	middleware := b.middleware
	decorators := b.decorators
	b.mu.RUnlock()

	current := cmd
	for _, mw := range middleware {
		next, err := mw(ctx, current)
		if err != nil {
			return nil, &domain.RejectionError{CommandType: cmd.Type, Err: err}
		}
		if next == nil {
			return nil, &domain.RejectionError{CommandType: cmd.Type, Reason: "rejected by middleware"}
		}
		current = next
	}

	b.mu.RLock()
	handler, exists := b.handlers[current.Type]
	b.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: command type %s", domain.ErrNoHandlerFound, current.Type)
	}

	// Build decorator chain (reverse order so first added is outermost)
	final := handler
	for i := len(decorators) - 1; i >= 0; i-- {
		final = decorators[i](final)
	}

	return final.Handle(ctx, current)
}
