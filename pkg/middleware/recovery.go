package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
)

// Recovery turns panics in command handlers into errors.
func Recovery(logger *slog.Logger) cqrs.CommandDecorator {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.Command) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "Command handler panicked",
						slog.String("command_id", cmd.ID),
						slog.String("command_type", cmd.Type),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)

					err = fmt.Errorf("command handler panicked: %v", r)
					result = nil
				}
			}()

			return next.Handle(ctx, cmd)
		})
	}
}
