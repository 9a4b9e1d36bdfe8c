package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/plaenen/eventcore/pkg/codec"
	"github.com/plaenen/eventcore/pkg/domain"
)

// Domain error codes.
const (
	CodeProductExists     = "PRODUCT_EXISTS"
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeProductInactive   = "PRODUCT_INACTIVE"
	CodeInvalidPrice      = "INVALID_PRICE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidRating     = "INVALID_RATING"
)

// Product is the catalog aggregate.
type Product struct {
	domain.AggregateRoot

	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	Created     bool
	ReviewCount int
	RatingSum   int
}

// NewProduct returns an empty product with its transitions registered.
func NewProduct(id string) *Product {
	p := &Product{AggregateRoot: domain.NewAggregateRoot(id, AggregateType)}

	p.On(EventProductCreated, func(evt *domain.Event) error {
		var e ProductCreated
		if err := evt.Decode(&e); err != nil {
			return err
		}
		p.Name = e.Name
		p.Description = e.Description
		p.Category = e.Category
		p.Price = e.Price
		p.Stock = e.Stock
		p.Active = true
		p.Created = true
		return nil
	})
	p.On(EventPriceUpdated, func(evt *domain.Event) error {
		var e PriceUpdated
		if err := evt.Decode(&e); err != nil {
			return err
		}
		p.Price = e.NewPrice
		return nil
	})
	p.On(EventStockAdjusted, func(evt *domain.Event) error {
		var e StockAdjusted
		if err := evt.Decode(&e); err != nil {
			return err
		}
		p.Stock = e.NewStock
		return nil
	})
	p.On(EventReviewAdded, func(evt *domain.Event) error {
		var e ReviewAdded
		if err := evt.Decode(&e); err != nil {
			return err
		}
		p.ReviewCount++
		p.RatingSum += e.Rating
		return nil
	})
	p.On(EventProductDeactivated, func(*domain.Event) error {
		p.Active = false
		return nil
	})

	return p
}

// AverageRating returns the mean review rating, or 0 without reviews.
func (p *Product) AverageRating() float64 {
	if p.ReviewCount == 0 {
		return 0
	}
	return float64(p.RatingSum) / float64(p.ReviewCount)
}

// Create records a new product.
func (p *Product) Create(name, description, category string, price decimal.Decimal, stock int, md domain.EventMetadata) error {
	if p.Created {
		return domain.NewDomainError(CodeProductExists, fmt.Sprintf("Product %s already exists", p.ID()))
	}
	if !price.IsPositive() {
		return domain.NewDomainError(CodeInvalidPrice, "Price must be positive")
	}
	if stock < 0 {
		return domain.NewDomainError(CodeInsufficientStock, "Initial stock cannot be negative")
	}

	return p.ApplyChange(EventProductCreated, ProductCreated{
		ProductID:   p.ID(),
		Name:        name,
		Description: description,
		Category:    category,
		Price:       price,
		Stock:       stock,
	}, md)
}

// UpdatePrice changes the price of an active product.
func (p *Product) UpdatePrice(price decimal.Decimal, md domain.EventMetadata) error {
	if err := p.requireActive(); err != nil {
		return err
	}
	if !price.IsPositive() {
		return domain.NewDomainError(CodeInvalidPrice, "Price must be positive")
	}

	return p.ApplyChange(EventPriceUpdated, PriceUpdated{OldPrice: p.Price, NewPrice: price}, md)
}

// AdjustStock adds delta to the stock. Stock never goes below zero.
func (p *Product) AdjustStock(delta int, reason string, md domain.EventMetadata) error {
	if err := p.requireActive(); err != nil {
		return err
	}
	newStock := p.Stock + delta
	if newStock < 0 {
		return domain.NewDomainError(CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: have %d, requested %d", p.Stock, -delta))
	}

	return p.ApplyChange(EventStockAdjusted, StockAdjusted{Delta: delta, NewStock: newStock, Reason: reason}, md)
}

// AddReview records a 1..5 star review.
func (p *Product) AddReview(reviewID, author string, rating int, comment string, md domain.EventMetadata) error {
	if err := p.requireActive(); err != nil {
		return err
	}
	if rating < 1 || rating > 5 {
		return domain.NewDomainError(CodeInvalidRating, "Rating must be between 1 and 5")
	}

	return p.ApplyChange(EventReviewAdded, ReviewAdded{
		ReviewID: reviewID,
		Author:   author,
		Rating:   rating,
		Comment:  comment,
	}, md)
}

// Deactivate removes the product from sale.
func (p *Product) Deactivate(reason string, md domain.EventMetadata) error {
	if err := p.requireActive(); err != nil {
		return err
	}
	return p.ApplyChange(EventProductDeactivated, ProductDeactivated{Reason: reason}, md)
}

func (p *Product) requireActive() error {
	if !p.Created {
		return domain.NewDomainError(CodeProductNotFound, fmt.Sprintf("Product %s does not exist", p.ID()))
	}
	if !p.Active {
		return domain.NewDomainError(CodeProductInactive, fmt.Sprintf("Product %s is not active", p.ID()))
	}
	return nil
}

type productSnapshot struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	Created     bool            `json:"created"`
	ReviewCount int             `json:"review_count"`
	RatingSum   int             `json:"rating_sum"`
}

func (p *Product) MarshalSnapshot() ([]byte, error) {
	return codec.JSON.Marshal(productSnapshot{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		Active:      p.Active,
		Created:     p.Created,
		ReviewCount: p.ReviewCount,
		RatingSum:   p.RatingSum,
	})
}

func (p *Product) UnmarshalSnapshot(data []byte) error {
	var s productSnapshot
	if err := codec.JSON.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode product snapshot: %w", err)
	}
	p.Name = s.Name
	p.Description = s.Description
	p.Category = s.Category
	p.Price = s.Price
	p.Stock = s.Stock
	p.Active = s.Active
	p.Created = s.Created
	p.ReviewCount = s.ReviewCount
	p.RatingSum = s.RatingSum
	return nil
}
