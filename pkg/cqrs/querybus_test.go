package cqrs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func countingHandler(calls *int) cqrs.QueryHandler {
	return cqrs.QueryHandlerFunc(func(ctx context.Context, q *domain.Query) (any, error) {
		*calls++
		return map[string]any{"id": q.StringParam("id"), "call": *calls}, nil
	})
}

func TestQueryBus_Execute(t *testing.T) {
	ctx := context.Background()
	bus := cqrs.NewQueryBus()
	calls := 0
	require.NoError(t, bus.Register("GetProduct", countingHandler(&calls)))

	res, err := bus.Execute(ctx, domain.NewQuery("GetProduct", map[string]any{"id": "P1"}))
	require.NoError(t, err)
	assert.Equal(t, "P1", res.(map[string]any)["id"])

	_, err = bus.Execute(ctx, domain.NewQuery("GetProduct", map[string]any{"id": "P1"}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "no caching unless enabled")

	_, err = bus.Execute(ctx, domain.NewQuery("Missing", nil))
	assert.ErrorIs(t, err, domain.ErrNoHandlerFound)

	_, err = bus.Execute(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	assert.ErrorIs(t, bus.Register("GetProduct", countingHandler(&calls)), domain.ErrDuplicateHandler)
	assert.Panics(t, func() { bus.MustRegister("GetProduct", countingHandler(&calls)) })
}

func TestQueryBus_CacheTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	bus := cqrs.NewQueryBus(cqrs.WithClock(clock.Now))
	calls := 0
	bus.MustRegister("GetProduct", countingHandler(&calls))
	bus.EnableCache(5 * time.Second)

	q := func() *domain.Query { return domain.NewQuery("GetProduct", map[string]any{"id": "P1"}) }

	first, err := bus.Execute(ctx, q())
	require.NoError(t, err)
	clock.Advance(4 * time.Second)
	second, err := bus.Execute(ctx, q())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	clock.Advance(time.Second)
	_, err = bus.Execute(ctx, q())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "entry expires at now+ttl")

	_, err = bus.Execute(ctx, domain.NewQuery("GetProduct", map[string]any{"id": "P2"}))
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "different parameters use a different key")
}

func TestQueryBus_CacheKeyIgnoresParameterOrder(t *testing.T) {
	ctx := context.Background()
	bus := cqrs.NewQueryBus()
	calls := 0
	bus.MustRegister("Search", countingHandler(&calls))
	bus.EnableCache(time.Minute)

	_, err := bus.Execute(ctx, domain.NewQuery("Search", map[string]any{"a": 1, "b": "x"}))
	require.NoError(t, err)
	_, err = bus.Execute(ctx, domain.NewQuery("Search", map[string]any{"b": "x", "a": 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	bus.InvalidateCache()
	_, err = bus.Execute(ctx, domain.NewQuery("Search", map[string]any{"a": 1, "b": "x"}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestQueryBus_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	bus := cqrs.NewQueryBus()
	calls := 0
	notFound := errors.New("product not found")
	bus.MustRegister("GetProduct", cqrs.QueryHandlerFunc(func(context.Context, *domain.Query) (any, error) {
		calls++
		return nil, notFound
	}))
	bus.EnableCache(time.Minute)

	for i := 0; i < 2; i++ {
		_, err := bus.Execute(ctx, domain.NewQuery("GetProduct", map[string]any{"id": "nope"}))
		assert.ErrorIs(t, err, notFound)
	}
	assert.Equal(t, 2, calls)
}

func TestQueryBus_UncacheableParametersBypassCache(t *testing.T) {
	ctx := context.Background()
	bus := cqrs.NewQueryBus()
	calls := 0
	bus.MustRegister("Weird", countingHandler(&calls))
	bus.EnableCache(time.Minute)

	params := map[string]any{"fn": func() {}}
	for i := 0; i < 2; i++ {
		_, err := bus.Execute(ctx, domain.NewQuery("Weird", params))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestQueryBus_DisableCache(t *testing.T) {
	ctx := context.Background()
	bus := cqrs.NewQueryBus()
	calls := 0
	bus.MustRegister("GetProduct", countingHandler(&calls))
	bus.EnableCache(time.Minute)
	bus.EnableCache(0)

	for i := 0; i < 2; i++ {
		_, err := bus.Execute(ctx, domain.NewQuery("GetProduct", nil))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestQueryBus_Notifications(t *testing.T) {
	ctx := context.Background()
	var got []observability.Notification
	emitter := observability.NewEmitter(func(_ context.Context, n observability.Notification) {
		got = append(got, n)
	})
	bus := cqrs.NewQueryBus(cqrs.WithEmitter(emitter))
	calls := 0
	bus.MustRegister("GetProduct", countingHandler(&calls))
	bus.EnableCache(time.Minute)

	_, _ = bus.Execute(ctx, domain.NewQuery("GetProduct", nil))
	_, _ = bus.Execute(ctx, domain.NewQuery("GetProduct", nil))
	_, _ = bus.Execute(ctx, domain.NewQuery("Missing", nil))

	require.Len(t, got, 3)
	assert.Equal(t, observability.SignalQueryExecuted, got[0].Signal)
	assert.False(t, got[0].CacheHit)
	assert.Equal(t, observability.SignalQueryExecuted, got[1].Signal)
	assert.True(t, got[1].CacheHit)
	assert.Equal(t, observability.SignalQueryFailed, got[2].Signal)
	assert.ErrorIs(t, got[2].Err, domain.ErrNoHandlerFound)
}

func TestMemoryCache(t *testing.T) {
	clock := newFakeClock()
	c := cqrs.NewMemoryCache(clock.Now)

	c.Set("k", 1, time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entries are dropped on lookup")

	c.Set("a", 1, time.Minute)
	c.Clear()
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestQueryBus_CacheHitsShareTheResult(t *testing.T) {
	ctx := context.Background()
	bus := cqrs.NewQueryBus()
	bus.MustRegister("ListProducts", cqrs.QueryHandlerFunc(func(context.Context, *domain.Query) (any, error) {
		return []string{"P1", "P2"}, nil
	}))
	bus.EnableCache(time.Minute)

	first, err := bus.Execute(ctx, domain.NewQuery("ListProducts", nil))
	require.NoError(t, err)
	second, err := bus.Execute(ctx, domain.NewQuery("ListProducts", nil))
	require.NoError(t, err)

	// Results are read-only: a hit hands back the handler's value itself.
	assert.Same(t, &first.([]string)[0], &second.([]string)[0])
}
