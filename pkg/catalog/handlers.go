package catalog

import (
	"context"
	"fmt"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/idgen"
	"github.com/plaenen/eventcore/pkg/store"
)

// Result is returned by every catalog command handler.
type Result struct {
	ProductID string
	Version   int64
}

// CommandHandlers executes catalog commands against the product repository.
type CommandHandlers struct {
	repo *store.Repository[*Product]
}

func NewCommandHandlers(repo *store.Repository[*Product]) *CommandHandlers {
	return &CommandHandlers{repo: repo}
}

// Register adds every catalog command handler to bus.
func (h *CommandHandlers) Register(bus *cqrs.CommandBus) error {
	handlers := map[string]cqrs.CommandHandlerFunc{
		CommandCreateProduct:     h.CreateProduct,
		CommandUpdatePrice:       h.UpdatePrice,
		CommandAdjustStock:       h.AdjustStock,
		CommandAddReview:         h.AddReview,
		CommandDeactivateProduct: h.DeactivateProduct,
	}
	for _, commandType := range []string{
		CommandCreateProduct, CommandUpdatePrice, CommandAdjustStock, CommandAddReview, CommandDeactivateProduct,
	} {
		if err := bus.Register(commandType, handlers[commandType]); err != nil {
			return err
		}
	}
	return nil
}

func (h *CommandHandlers) CreateProduct(ctx context.Context, cmd *domain.Command) (any, error) {
	payload, err := payloadAs[CreateProduct](cmd)
	if err != nil {
		return nil, err
	}

	product, err := h.repo.LoadOrCreate(ctx, cmd.AggregateID)
	if err != nil {
		return nil, err
	}
	return h.execute(ctx, cmd, product, func(p *Product, md domain.EventMetadata) error {
		return p.Create(payload.Name, payload.Description, payload.Category, payload.Price, payload.Stock, md)
	})
}

func (h *CommandHandlers) UpdatePrice(ctx context.Context, cmd *domain.Command) (any, error) {
	payload, err := payloadAs[UpdatePrice](cmd)
	if err != nil {
		return nil, err
	}
	return h.load(ctx, cmd, func(p *Product, md domain.EventMetadata) error {
		return p.UpdatePrice(payload.Price, md)
	})
}

func (h *CommandHandlers) AdjustStock(ctx context.Context, cmd *domain.Command) (any, error) {
	payload, err := payloadAs[AdjustStock](cmd)
	if err != nil {
		return nil, err
	}
	return h.load(ctx, cmd, func(p *Product, md domain.EventMetadata) error {
		return p.AdjustStock(payload.Delta, payload.Reason, md)
	})
}

func (h *CommandHandlers) AddReview(ctx context.Context, cmd *domain.Command) (any, error) {
	payload, err := payloadAs[AddReview](cmd)
	if err != nil {
		return nil, err
	}
	reviewID, err := idgen.NewSortableID()
	if err != nil {
		return nil, err
	}
	return h.load(ctx, cmd, func(p *Product, md domain.EventMetadata) error {
		return p.AddReview(reviewID, payload.Author, payload.Rating, payload.Comment, md)
	})
}

func (h *CommandHandlers) DeactivateProduct(ctx context.Context, cmd *domain.Command) (any, error) {
	payload, err := payloadAs[DeactivateProduct](cmd)
	if err != nil {
		return nil, err
	}
	return h.load(ctx, cmd, func(p *Product, md domain.EventMetadata) error {
		return p.Deactivate(payload.Reason, md)
	})
}

func (h *CommandHandlers) load(ctx context.Context, cmd *domain.Command, op func(*Product, domain.EventMetadata) error) (any, error) {
	product, err := h.repo.Load(ctx, cmd.AggregateID)
	if err != nil {
		return nil, err
	}
	return h.execute(ctx, cmd, product, op)
}

func (h *CommandHandlers) execute(ctx context.Context, cmd *domain.Command, product *Product, op func(*Product, domain.EventMetadata) error) (any, error) {
	product.SetCommandID(cmd.ID)
	if err := op(product, cmd.EventMetadata()); err != nil {
		return nil, err
	}
	if err := h.repo.Save(ctx, product); err != nil {
		return nil, err
	}
	return Result{ProductID: product.ID(), Version: product.Version()}, nil
}

// payloadAs accepts both T and *T payloads.
func payloadAs[T any](cmd *domain.Command) (T, error) {
	switch p := cmd.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s expects payload %T, got %T", domain.ErrInvalidCommand, cmd.Type, zero, cmd.Payload)
}
