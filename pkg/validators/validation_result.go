// Package validators provides field-level validation helpers that collect
// results per field and turn them into command rejection errors.
package validators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plaenen/eventcore/pkg/domain"
)

// ValidationCode represents the type of validation result
type ValidationCode string

const (
	ValidationCodeUnspecified ValidationCode = "unspecified"
	ValidationCodeSuccess     ValidationCode = "success"
	ValidationCodeRequired    ValidationCode = "required"
	ValidationCodeInvalid     ValidationCode = "invalid"
)

// ValidationOption defines a function that can customize a ValidationResult
type ValidationOption func(*ValidationResult)

// ValidationResult represents the result of validating one field
type ValidationResult struct {
	IsValid         bool           `json:"is_valid"`
	FieldName       string         `json:"field_name"`
	Value           string         `json:"value"`
	Message         string         `json:"message"`
	SuggestedAction string         `json:"suggested_action"`
	ValidationCode  ValidationCode `json:"validation_code"`
}

// WithValue sets the validated value
func WithValue(value string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Value = value
	}
}

// WithMessage sets a custom validation message
func WithMessage(message string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Message = message
	}
}

// WithSuggestedAction sets a custom suggested action
func WithSuggestedAction(action string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.SuggestedAction = action
	}
}

// WithValidationCode sets the validation code
func WithValidationCode(code ValidationCode) ValidationOption {
	return func(vr *ValidationResult) {
		vr.ValidationCode = code
	}
}

// NewValidationResult creates a new ValidationResult
func NewValidationResult(isValid bool, fieldName string, options ...ValidationOption) *ValidationResult {
	vr := &ValidationResult{
		IsValid:        isValid,
		FieldName:      fieldName,
		ValidationCode: ValidationCodeUnspecified,
	}
	for _, option := range options {
		option(vr)
	}
	return vr
}

func invalid(fieldName, value string, code ValidationCode, message, action string) *ValidationResult {
	return NewValidationResult(false, fieldName,
		WithValue(value),
		WithMessage(message),
		WithSuggestedAction(action),
		WithValidationCode(code),
	)
}

func valid(fieldName, value string) *ValidationResult {
	return NewValidationResult(true, fieldName, WithValue(value), WithValidationCode(ValidationCodeSuccess))
}

// ValidationError carries every failed result of a validation pass.
type ValidationError struct {
	Results []*ValidationResult
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		msgs = append(msgs, r.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Is reports ErrInvalidCommand so validation failures classify like other
// malformed commands.
func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrInvalidCommand
}

// Field returns the first failed result for fieldName, or nil.
func (e *ValidationError) Field(fieldName string) *ValidationResult {
	for _, r := range e.Results {
		if r.FieldName == fieldName {
			return r
		}
	}
	return nil
}

// ValidationBuilder collects validation results
type ValidationBuilder struct {
	results map[string][]*ValidationResult
}

// NewValidationBuilder creates a new validation builder
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{
		results: make(map[string][]*ValidationResult),
	}
}

// Add adds a validation result to the builder with additional options applied
func (b *ValidationBuilder) Add(result *ValidationResult, options ...ValidationOption) *ValidationBuilder {
	for _, option := range options {
		option(result)
	}
	b.results[result.FieldName] = append(b.results[result.FieldName], result)
	return b
}

// Errors returns the failed results ordered by field name.
func (b *ValidationBuilder) Errors() []*ValidationResult {
	fields := make([]string, 0, len(b.results))
	for fieldName := range b.results {
		fields = append(fields, fieldName)
	}
	sort.Strings(fields)

	var failed []*ValidationResult
	for _, fieldName := range fields {
		for _, result := range b.results[fieldName] {
			if !result.IsValid {
				failed = append(failed, result)
			}
		}
	}
	return failed
}

// Err returns a *ValidationError when any result failed, nil otherwise.
func (b *ValidationBuilder) Err() error {
	failed := b.Errors()
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Results: failed}
}
