package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plaenen/eventcore/pkg/codec"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/projection"
	"github.com/plaenen/eventcore/pkg/readmodel"
	"github.com/plaenen/eventcore/pkg/store"
	"github.com/plaenen/eventcore/pkg/store/memory"
)

// shipment encodes its payloads as protobuf messages.
type shipment struct {
	domain.AggregateRoot
	Items map[string]float64
}

func newShipment(id string) *shipment {
	s := &shipment{AggregateRoot: domain.NewAggregateRoot(id, "Shipment"), Items: map[string]float64{}}
	s.UseCodec(codec.Proto)
	s.On("ItemPacked", func(evt *domain.Event) error {
		msg := &structpb.Struct{}
		if err := evt.Decode(msg); err != nil {
			return err
		}
		fields := msg.GetFields()
		s.Items[fields["sku"].GetStringValue()] += fields["qty"].GetNumberValue()
		return nil
	})
	return s
}

func (s *shipment) Pack(sku string, qty int) error {
	msg, err := structpb.NewStruct(map[string]any{"sku": sku, "qty": qty})
	if err != nil {
		return err
	}
	return s.ApplyChange("ItemPacked", msg, domain.EventMetadata{})
}

func TestRepository_ProtoPayloads(t *testing.T) {
	ctx := context.Background()
	es := memory.NewEventStore()

	engine := projection.NewEngine(es)
	t.Cleanup(engine.Close)
	packed := readmodel.NewMemory("packed-items")
	require.NoError(t, engine.AddReadModel(packed))
	require.NoError(t, engine.RegisterProjection("ItemPacked", "packed-items",
		func(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
			msg := &structpb.Struct{}
			if err := evt.Decode(msg); err != nil {
				return err
			}
			sku := msg.GetFields()["sku"].GetStringValue()
			total := msg.GetFields()["qty"].GetNumberValue()
			if rec, err := rm.Get(ctx, sku); err == nil {
				total += rec["qty"].(float64)
			}
			return rm.Put(ctx, sku, readmodel.Record{"sku": sku, "qty": total})
		}))

	repo := store.NewRepository(es, "Shipment", newShipment)
	s, err := repo.LoadOrCreate(ctx, "s-1")
	require.NoError(t, err)
	require.NoError(t, s.Pack("P1", 2))
	require.NoError(t, s.Pack("P2", 1))
	require.NoError(t, s.Pack("P1", 3))
	require.NoError(t, repo.Save(ctx, s))

	events, err := es.LoadEvents(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, evt := range events {
		assert.Equal(t, "proto", evt.Codec)
	}

	loaded, err := repo.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"P1": 5, "P2": 1}, loaded.Items)

	rec, err := packed.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, float64(5), rec["qty"])

	state, err := engine.State("packed-items")
	require.NoError(t, err)
	assert.Equal(t, projection.StatusReady, state.Status)

	// JSON payloads from other aggregates still decode with the default codec.
	w, err := store.NewRepository(es, "Wallet", newWallet).LoadOrCreate(ctx, "w-1")
	require.NoError(t, err)
	require.NoError(t, w.Deposit(7))
	assert.Equal(t, "json", w.UncommittedEvents()[0].Codec)
}
