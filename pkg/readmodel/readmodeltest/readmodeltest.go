// Package readmodeltest checks ReadModel implementations against the shared
// contract.
package readmodeltest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/readmodel"
)

// Factory returns an empty read model with the given name.
type Factory func(t *testing.T, name string) readmodel.ReadModel

// Run exercises every ReadModel operation. Backends that round-trip through
// JSON return numbers as float64, so numeric assertions go through
// readmodel.Equal.
func Run(t *testing.T, newReadModel Factory) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		rm := newReadModel(t, "products")
		_, err := rm.Get(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("put get replace", func(t *testing.T) {
		rm := newReadModel(t, "products")
		assert.Equal(t, "products", rm.Name())

		require.NoError(t, rm.Put(ctx, "P1", readmodel.Record{"id": "P1", "name": "Laptop", "stock": 10}))
		rec, err := rm.Get(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "Laptop", rec["name"])
		assert.True(t, readmodel.Equal(rec["stock"], 10), "stock = %v", rec["stock"])

		require.NoError(t, rm.Put(ctx, "P1", readmodel.Record{"id": "P1", "name": "Laptop Pro", "stock": 15}))
		rec, err = rm.Get(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "Laptop Pro", rec["name"])
		assert.True(t, readmodel.Equal(rec["stock"], 15))
	})

	t.Run("returned records are copies", func(t *testing.T) {
		rm := newReadModel(t, "products")
		require.NoError(t, rm.Put(ctx, "P1", readmodel.Record{"name": "Laptop"}))
		rec, err := rm.Get(ctx, "P1")
		require.NoError(t, err)
		rec["name"] = "changed"

		rec, err = rm.Get(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "Laptop", rec["name"])
	})

	t.Run("query filters by equality", func(t *testing.T) {
		rm := newReadModel(t, "products")
		require.NoError(t, rm.Put(ctx, "P2", readmodel.Record{"id": "P2", "category": "books", "active": true, "stock": 3}))
		require.NoError(t, rm.Put(ctx, "P1", readmodel.Record{"id": "P1", "category": "electronics", "active": true, "stock": 15}))
		require.NoError(t, rm.Put(ctx, "P3", readmodel.Record{"id": "P3", "category": "electronics", "active": false, "stock": 0}))

		electronics, err := rm.Query(ctx, map[string]any{"category": "electronics"})
		require.NoError(t, err)
		assert.Equal(t, []string{"P1", "P3"}, ids(electronics))

		activeElectronics, err := rm.Query(ctx, map[string]any{"category": "electronics", "active": true})
		require.NoError(t, err)
		assert.Equal(t, []string{"P1"}, ids(activeElectronics))

		byStock, err := rm.Query(ctx, map[string]any{"stock": 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"P2"}, ids(byStock))

		noMatch, err := rm.Query(ctx, map[string]any{"category": "toys"})
		require.NoError(t, err)
		assert.Empty(t, noMatch)

		missingField, err := rm.Query(ctx, map[string]any{"color": "red"})
		require.NoError(t, err)
		assert.Empty(t, missingField)

		everything, err := rm.Query(ctx, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, []string{"P1", "P2", "P3"}, ids(everything))

		all, err := rm.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"P1", "P2", "P3"}, ids(all))
	})

	t.Run("delete and clear", func(t *testing.T) {
		rm := newReadModel(t, "products")
		require.NoError(t, rm.Put(ctx, "P1", readmodel.Record{"id": "P1"}))
		require.NoError(t, rm.Put(ctx, "P2", readmodel.Record{"id": "P2"}))

		require.NoError(t, rm.Delete(ctx, "P1"))
		require.NoError(t, rm.Delete(ctx, "P1"))
		_, err := rm.Get(ctx, "P1")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)

		require.NoError(t, rm.Clear(ctx))
		all, err := rm.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("names are isolated", func(t *testing.T) {
		a := newReadModel(t, "a")
		b := newReadModel(t, "b")
		require.NoError(t, a.Put(ctx, "k", readmodel.Record{"id": "k"}))

		_, err := b.Get(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
		require.NoError(t, b.Clear(ctx))
		_, err = a.Get(ctx, "k")
		assert.NoError(t, err)
	})
}

func ids(records []readmodel.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i], _ = r["id"].(string)
	}
	return out
}
