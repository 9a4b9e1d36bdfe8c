package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/readmodel"
)

// Query types.
const (
	QueryGetProduct     = "GetProduct"
	QueryListProducts   = "ListProducts"
	QuerySearchProducts = "SearchProducts"
)

// Query parameters.
const (
	ParamID         = "id"
	ParamCategory   = "category"
	ParamActiveOnly = "active_only"
	ParamTerm       = "term"
)

// ProductView is the query-side shape of a product.
type ProductView struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       float64
	Stock       int
	Active      bool
	ReviewCount int
	Rating      float64
	Version     int64
}

func viewFromRecord(r readmodel.Record) ProductView {
	return ProductView{
		ID:          stringField(r, "id"),
		Name:        stringField(r, "name"),
		Description: stringField(r, "description"),
		Category:    stringField(r, "category"),
		Price:       floatField(r, "price"),
		Stock:       intField(r, "stock"),
		Active:      boolField(r, "active"),
		ReviewCount: intField(r, "review_count"),
		Rating:      floatField(r, "rating"),
		Version:     int64(floatField(r, "version")),
	}
}

// SearchHit is a SearchProducts result.
type SearchHit struct {
	ID     string
	Name   string
	Price  float64
	Active bool
}

// QueryHandlers answers catalog queries from the two read models.
type QueryHandlers struct {
	list   readmodel.ReadModel
	search readmodel.ReadModel
}

func NewQueryHandlers(list, search readmodel.ReadModel) *QueryHandlers {
	return &QueryHandlers{list: list, search: search}
}

// Register adds every catalog query handler to bus. wrap, when non-nil,
// decorates each handler.
func (h *QueryHandlers) Register(bus *cqrs.QueryBus, wrap func(cqrs.QueryHandler) cqrs.QueryHandler) error {
	handlers := []struct {
		queryType string
		handler   cqrs.QueryHandler
	}{
		{QueryGetProduct, cqrs.QueryHandlerFunc(h.GetProduct)},
		{QueryListProducts, cqrs.QueryHandlerFunc(h.ListProducts)},
		{QuerySearchProducts, cqrs.QueryHandlerFunc(h.SearchProducts)},
	}
	for _, qh := range handlers {
		handler := qh.handler
		if wrap != nil {
			handler = wrap(handler)
		}
		if err := bus.Register(qh.queryType, handler); err != nil {
			return err
		}
	}
	return nil
}

// GetProduct returns the ProductView for the "id" parameter.
func (h *QueryHandlers) GetProduct(ctx context.Context, q *domain.Query) (any, error) {
	id := q.StringParam(ParamID)
	if id == "" {
		return nil, fmt.Errorf("%w: %s requires %q", domain.ErrInvalidQuery, q.Type, ParamID)
	}
	r, err := h.list.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewFromRecord(r), nil
}

// ListProducts returns products ordered by id, optionally restricted to a
// category and to active products.
func (h *QueryHandlers) ListProducts(ctx context.Context, q *domain.Query) (any, error) {
	filter := map[string]any{}
	if category := q.StringParam(ParamCategory); category != "" {
		filter["category"] = category
	}
	if activeOnly, _ := q.Parameters[ParamActiveOnly].(bool); activeOnly {
		filter["active"] = true
	}

	records, err := h.list.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(records))
	for _, r := range records {
		views = append(views, viewFromRecord(r))
	}
	return views, nil
}

// SearchProducts returns active products whose name, description or
// category contains "term", ignoring case.
func (h *QueryHandlers) SearchProducts(ctx context.Context, q *domain.Query) (any, error) {
	term := strings.TrimSpace(q.StringParam(ParamTerm))
	if term == "" {
		return nil, fmt.Errorf("%w: %s requires %q", domain.ErrInvalidQuery, q.Type, ParamTerm)
	}
	needle := fold(term)

	records, err := h.search.Query(ctx, map[string]any{"active": true})
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0)
	for _, r := range records {
		if !strings.Contains(stringField(r, "terms"), needle) {
			continue
		}
		hits = append(hits, SearchHit{
			ID:     stringField(r, "id"),
			Name:   stringField(r, "name"),
			Price:  floatField(r, "price"),
			Active: boolField(r, "active"),
		})
	}
	return hits, nil
}
