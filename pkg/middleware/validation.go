package middleware

import (
	"context"
	"fmt"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
)

// Validator defines the interface for validating command payloads.
type Validator interface {
	// Validate validates a payload and returns an error if invalid.
	Validate(payload any) error
}

// ValidatorFunc is a function adapter for Validator.
type ValidatorFunc func(payload any) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(payload any) error {
	return f(payload)
}

// Validation rejects commands whose payload fails validation.
func Validation(validator Validator) cqrs.CommandMiddleware {
	return func(ctx context.Context, cmd *domain.Command) (*domain.Command, error) {
		if err := validator.Validate(cmd.Payload); err != nil {
			return nil, fmt.Errorf("command validation failed: %w", err)
		}
		return cmd, nil
	}
}

// MetadataValidation rejects commands without an ID or type. With
// requirePrincipal it also rejects commands without a principal.
func MetadataValidation(requirePrincipal bool) cqrs.CommandMiddleware {
	return func(ctx context.Context, cmd *domain.Command) (*domain.Command, error) {
		if cmd.ID == "" {
			return nil, fmt.Errorf("%w: command id is required", domain.ErrInvalidCommand)
		}
		if cmd.Type == "" {
			return nil, fmt.Errorf("%w: command type is required", domain.ErrInvalidCommand)
		}
		if requirePrincipal && cmd.Metadata.PrincipalID == "" {
			return nil, fmt.Errorf("%w: principal is required", domain.ErrInvalidCommand)
		}
		return cmd, nil
	}
}

// SelfValidator validates payloads that implement Validate() error and
// passes everything else through.
type SelfValidator struct{}

func (SelfValidator) Validate(payload any) error {
	type validatable interface {
		Validate() error
	}

	if v, ok := payload.(validatable); ok {
		return v.Validate()
	}
	return nil
}
