package validators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/eventcore/pkg/domain"
)

func TestToUserFriendlyName(t *testing.T) {
	assert.Equal(t, "Product Id", ToUserFriendlyName("product_id"))
	assert.Equal(t, "Name", ToUserFriendlyName("name"))
	assert.Equal(t, "", ToUserFriendlyName(""))
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name   string
		result *ValidationResult
		valid  bool
		code   ValidationCode
	}{
		{"required ok", ValidateRequired("name", "Laptop"), true, ValidationCodeSuccess},
		{"required blank", ValidateRequired("name", "  "), false, ValidationCodeRequired},
		{"length ok", ValidateStringLength("name", "Laptop", 1, 10), true, ValidationCodeSuccess},
		{"too short", ValidateStringLength("name", "", 1, 10), false, ValidationCodeInvalid},
		{"too long", ValidateStringLength("name", "Ultrabook Pro Max", 1, 10), false, ValidationCodeInvalid},
		{"multibyte counts runes", ValidateStringLength("name", "Café", 1, 4), true, ValidationCodeSuccess},
		{"identifier ok", ValidateIdentifier("product_id", "SKU-123_a"), true, ValidationCodeSuccess},
		{"identifier empty", ValidateIdentifier("product_id", ""), false, ValidationCodeRequired},
		{"identifier spaces", ValidateIdentifier("product_id", "SKU 1"), false, ValidationCodeInvalid},
		{"identifier only dashes", ValidateIdentifier("product_id", "--"), false, ValidationCodeInvalid},
		{"rating in range", ValidateIntRange("rating", 5, 1, 5), true, ValidationCodeSuccess},
		{"rating out of range", ValidateIntRange("rating", 6, 1, 5), false, ValidationCodeInvalid},
		{"email ok", ValidateEmail("email", "jane@example.com"), true, ValidationCodeSuccess},
		{"email missing", ValidateEmail("email", ""), false, ValidationCodeRequired},
		{"email invalid", ValidateEmail("email", "not-an-email"), false, ValidationCodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.result.IsValid)
			assert.Equal(t, tt.code, tt.result.ValidationCode)
			if !tt.valid {
				assert.NotEmpty(t, tt.result.Message)
				assert.NotEmpty(t, tt.result.SuggestedAction)
			}
		})
	}
}

func TestValidationBuilder(t *testing.T) {
	b := NewValidationBuilder().
		Add(ValidateRequired("name", "Laptop")).
		Add(ValidateIntRange("stock", -1, 0, 1000)).
		Add(ValidateIdentifier("product_id", "bad id"), WithSuggestedAction("Use the catalog SKU."))

	failed := b.Errors()
	require.Len(t, failed, 2)
	assert.Equal(t, "product_id", failed[0].FieldName)
	assert.Equal(t, "Use the catalog SKU.", failed[0].SuggestedAction)
	assert.Equal(t, "stock", failed[1].FieldName)

	err := b.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotNil(t, verr.Field("stock"))
	assert.Nil(t, verr.Field("name"))
	assert.Contains(t, err.Error(), "Stock must be between 0 and 1000.")

	assert.NoError(t, NewValidationBuilder().Add(ValidateRequired("name", "x")).Err())
}
