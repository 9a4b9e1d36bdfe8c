package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/projection"
	"github.com/plaenen/eventcore/pkg/readmodel"
)

// Read model names.
const (
	ProductListModel   = "product-list"
	ProductSearchModel = "product-search"
)

// RegisterProjections registers the product-list and product-search
// projections. Both read models must already be added to engine.
func RegisterProjections(engine *projection.Engine) error {
	registrations := []struct {
		eventType string
		model     string
		fn        projection.Func
	}{
		{EventProductCreated, ProductListModel, listProductCreated},
		{EventPriceUpdated, ProductListModel, listPriceUpdated},
		{EventStockAdjusted, ProductListModel, listStockAdjusted},
		{EventReviewAdded, ProductListModel, listReviewAdded},
		{EventProductDeactivated, ProductListModel, listDeactivated},

		{EventProductCreated, ProductSearchModel, searchProductCreated},
		{EventPriceUpdated, ProductSearchModel, searchPriceUpdated},
		{EventProductDeactivated, ProductSearchModel, searchDeactivated},
	}
	for _, r := range registrations {
		if err := engine.RegisterProjection(r.eventType, r.model, r.fn); err != nil {
			return fmt.Errorf("register %s projection for %s: %w", r.model, r.eventType, err)
		}
	}
	return nil
}

func listProductCreated(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var e ProductCreated
	if err := evt.Decode(&e); err != nil {
		return err
	}
	return rm.Put(ctx, evt.AggregateID, readmodel.Record{
		"id":           evt.AggregateID,
		"name":         e.Name,
		"description":  e.Description,
		"category":     e.Category,
		"price":        e.Price.InexactFloat64(),
		"price_text":   e.Price.StringFixed(2),
		"stock":        e.Stock,
		"active":       true,
		"review_count": 0,
		"rating_sum":   0,
		"rating":       0.0,
		"version":      evt.Version,
	})
}

func listPriceUpdated(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var e PriceUpdated
	if err := evt.Decode(&e); err != nil {
		return err
	}
	return update(ctx, rm, evt, func(r readmodel.Record) {
		r["price"] = e.NewPrice.InexactFloat64()
		r["price_text"] = e.NewPrice.StringFixed(2)
	})
}

func listStockAdjusted(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var e StockAdjusted
	if err := evt.Decode(&e); err != nil {
		return err
	}
	return update(ctx, rm, evt, func(r readmodel.Record) {
		r["stock"] = e.NewStock
	})
}

func listReviewAdded(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var e ReviewAdded
	if err := evt.Decode(&e); err != nil {
		return err
	}
	return update(ctx, rm, evt, func(r readmodel.Record) {
		count := intField(r, "review_count") + 1
		sum := intField(r, "rating_sum") + e.Rating
		r["review_count"] = count
		r["rating_sum"] = sum
		r["rating"] = float64(sum) / float64(count)
	})
}

func listDeactivated(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	return update(ctx, rm, evt, func(r readmodel.Record) {
		r["active"] = false
	})
}

func searchProductCreated(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var e ProductCreated
	if err := evt.Decode(&e); err != nil {
		return err
	}
	return rm.Put(ctx, evt.AggregateID, readmodel.Record{
		"id":       evt.AggregateID,
		"name":     e.Name,
		"category": fold(e.Category),
		"terms":    fold(strings.Join([]string{e.Name, e.Description, e.Category}, " ")),
		"price":    e.Price.InexactFloat64(),
		"active":   true,
	})
}

func searchPriceUpdated(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var e PriceUpdated
	if err := evt.Decode(&e); err != nil {
		return err
	}
	return update(ctx, rm, evt, func(r readmodel.Record) {
		r["price"] = e.NewPrice.InexactFloat64()
	})
}

func searchDeactivated(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	return update(ctx, rm, evt, func(r readmodel.Record) {
		r["active"] = false
	})
}

// update applies fn to the record of the event's aggregate. Records only
// carry a version in the product-list model.
func update(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event, fn func(readmodel.Record)) error {
	r, err := rm.Get(ctx, evt.AggregateID)
	if err != nil {
		return fmt.Errorf("%s %s: %w", rm.Name(), evt.AggregateID, err)
	}
	fn(r)
	if _, ok := r["version"]; ok {
		r["version"] = evt.Version
	}
	return rm.Put(ctx, evt.AggregateID, r)
}

// fold returns s case-folded for case-insensitive matching.
func fold(s string) string {
	return cases.Fold().String(s)
}

// intField reads a numeric field that may have been decoded as float64.
func intField(r readmodel.Record, key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatField(r readmodel.Record, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func stringField(r readmodel.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func boolField(r readmodel.Record, key string) bool {
	b, _ := r[key].(bool)
	return b
}
