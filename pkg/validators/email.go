package validators

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

func ValidateEmail(fieldName string, value string) *ValidationResult {
	name := ToUserFriendlyName(fieldName)

	if len(value) == 0 {
		return invalid(fieldName, value, ValidationCodeRequired,
			fmt.Sprintf("%s is required", name),
			"Please provide a valid email address, e.g., 'name@example.com'.")
	}

	if !govalidator.IsEmail(value) {
		return invalid(fieldName, value, ValidationCodeInvalid,
			fmt.Sprintf("Please enter a valid %s", name),
			"Please provide a valid email address, e.g., 'name@example.com'.")
	}

	return valid(fieldName, value)
}
