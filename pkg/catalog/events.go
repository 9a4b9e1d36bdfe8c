// Package catalog is a product catalog built on the event sourcing core: a
// Product aggregate, its command and query handlers and two read models.
package catalog

import "github.com/shopspring/decimal"

// AggregateType is the aggregate type recorded on product events.
const AggregateType = "Product"

// Event types.
const (
	EventProductCreated     = "ProductCreated"
	EventPriceUpdated       = "PriceUpdated"
	EventStockAdjusted      = "StockAdjusted"
	EventReviewAdded        = "ReviewAdded"
	EventProductDeactivated = "ProductDeactivated"
)

// ProductCreated is recorded when a product enters the catalog.
type ProductCreated struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type PriceUpdated struct {
	OldPrice decimal.Decimal `json:"old_price"`
	NewPrice decimal.Decimal `json:"new_price"`
}

// StockAdjusted carries the resulting stock so projections never recompute it.
type StockAdjusted struct {
	Delta    int    `json:"delta"`
	NewStock int    `json:"new_stock"`
	Reason   string `json:"reason,omitempty"`
}

type ReviewAdded struct {
	ReviewID string `json:"review_id"`
	Author   string `json:"author"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

type ProductDeactivated struct {
	Reason string `json:"reason,omitempty"`
}
