package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
)

// ToUserFriendlyName converts snake_case field names to user-friendly names
// Examples: "product_id" -> "Product Id", "name" -> "Name"
func ToUserFriendlyName(fieldName string) string {
	if fieldName == "" {
		return fieldName
	}

	parts := strings.Split(fieldName, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}

	return strings.Join(parts, " ")
}

// ValidateRequired fails when value is empty or only whitespace.
func ValidateRequired(fieldName, value string) *ValidationResult {
	if strings.TrimSpace(value) == "" {
		name := ToUserFriendlyName(fieldName)
		return invalid(fieldName, value, ValidationCodeRequired,
			fmt.Sprintf("%s is required.", name),
			fmt.Sprintf("Please provide a valid %s.", name))
	}
	return valid(fieldName, value)
}

// ValidateStringLength validates that a string meets minimum and maximum length requirements
func ValidateStringLength(fieldName, value string, minLength, maxLength int) *ValidationResult {
	name := ToUserFriendlyName(fieldName)
	length := utf8.RuneCountInString(value)

	if length < minLength {
		return invalid(fieldName, value, ValidationCodeInvalid,
			fmt.Sprintf("%s must be at least %d characters long.", name, minLength),
			fmt.Sprintf("Please provide a %s with at least %d characters.", name, minLength))
	}
	if length > maxLength {
		return invalid(fieldName, value, ValidationCodeInvalid,
			fmt.Sprintf("%s must be no more than %d characters long.", name, maxLength),
			fmt.Sprintf("Please provide a %s with no more than %d characters.", name, maxLength))
	}
	return valid(fieldName, value)
}

// ValidateIdentifier accepts letters, digits, dashes and underscores, e.g. a
// SKU such as "LAPTOP-15".
func ValidateIdentifier(fieldName, value string) *ValidationResult {
	if value == "" {
		return ValidateRequired(fieldName, value)
	}

	stripped := strings.NewReplacer("-", "", "_", "").Replace(value)
	if stripped == "" || !govalidator.IsAlphanumeric(stripped) {
		name := ToUserFriendlyName(fieldName)
		return invalid(fieldName, value, ValidationCodeInvalid,
			fmt.Sprintf("%s may only contain letters, digits, '-' and '_'.", name),
			fmt.Sprintf("Please provide a %s such as 'SKU-123'.", name))
	}
	return valid(fieldName, value)
}

// ValidateIntRange fails when value lies outside [min, max].
func ValidateIntRange(fieldName string, value, lo, hi int) *ValidationResult {
	s := fmt.Sprintf("%d", value)
	if !govalidator.InRangeInt(value, lo, hi) {
		name := ToUserFriendlyName(fieldName)
		return invalid(fieldName, s, ValidationCodeInvalid,
			fmt.Sprintf("%s must be between %d and %d.", name, lo, hi),
			fmt.Sprintf("Please provide a %s between %d and %d.", name, lo, hi))
	}
	return valid(fieldName, s)
}
