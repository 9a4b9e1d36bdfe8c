package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/validators"
)

// Command types.
const (
	CommandCreateProduct     = "CreateProduct"
	CommandUpdatePrice       = "UpdatePrice"
	CommandAdjustStock       = "AdjustStock"
	CommandAddReview         = "AddReview"
	CommandDeactivateProduct = "DeactivateProduct"
)

// ValidateProductID rejects commands whose aggregate id is not a SKU such as
// "LAPTOP-15".
func ValidateProductID(ctx context.Context, cmd *domain.Command) (*domain.Command, error) {
	if err := validators.NewValidationBuilder().
		Add(validators.ValidateIdentifier("product_id", cmd.AggregateID)).
		Err(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// CreateProduct registers a new product under the command's aggregate id.
type CreateProduct struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
}

func (c CreateProduct) Validate() error {
	return validators.NewValidationBuilder().
		Add(validators.ValidateRequired("name", c.Name)).
		Add(validators.ValidateStringLength("name", c.Name, 1, 200)).
		Add(validators.ValidateIntRange("stock", c.Stock, 0, maxStock)).
		Err()
}

type UpdatePrice struct {
	Price decimal.Decimal
}

// AdjustStock adds Delta (which may be negative) to the stock level.
type AdjustStock struct {
	Delta  int
	Reason string
}

func (c AdjustStock) Validate() error {
	return validators.NewValidationBuilder().
		Add(validators.ValidateIntRange("delta", c.Delta, -maxStock, maxStock)).
		Err()
}

type AddReview struct {
	Author string
	// Email is optional; when present it must be well formed.
	Email   string
	Rating  int
	Comment string
}

func (c AddReview) Validate() error {
	b := validators.NewValidationBuilder().
		Add(validators.ValidateRequired("author", c.Author)).
		Add(validators.ValidateStringLength("comment", c.Comment, 0, 2000))
	if c.Email != "" {
		b.Add(validators.ValidateEmail("email", c.Email))
	}
	return b.Err()
}

type DeactivateProduct struct {
	Reason string
}

const maxStock = 1_000_000
