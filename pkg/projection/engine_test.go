package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
	"github.com/plaenen/eventcore/pkg/readmodel"
	"github.com/plaenen/eventcore/pkg/store/memory"
)

type fixture struct {
	store    *memory.EventStore
	engine   *Engine
	versions map[string]int64
	notes    []observability.Notification
	notesMu  sync.Mutex
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewEventStore(), versions: make(map[string]int64)}
	emitter := observability.NewEmitter(func(_ context.Context, n observability.Notification) {
		f.notesMu.Lock()
		defer f.notesMu.Unlock()
		f.notes = append(f.notes, n)
	})
	f.engine = NewEngine(f.store, append([]Option{WithEmitter(emitter)}, opts...)...)
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) append(t *testing.T, aggregateID, eventType string, payload any) {
	t.Helper()
	data, err := domainJSON(payload)
	require.NoError(t, err)
	f.versions[aggregateID]++
	evt := &domain.Event{
		ID:          domain.GenerateID(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Version:     f.versions[aggregateID],
		Data:        data,
	}
	require.NoError(t, f.store.AppendEvents(context.Background(), aggregateID, []*domain.Event{evt}, f.versions[aggregateID]-1))
}

func (f *fixture) signals() []observability.Signal {
	f.notesMu.Lock()
	defer f.notesMu.Unlock()
	out := make([]observability.Signal, len(f.notes))
	for i, n := range f.notes {
		out[i] = n.Signal
	}
	return out
}

func domainJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte(`{}`), nil
	}
	return []byte(fmt.Sprintf(`{"name":%q}`, v)), nil
}

type named struct {
	Name string `json:"name"`
}

func upsertName(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	var p named
	if err := evt.Decode(&p); err != nil {
		return err
	}
	return rm.Put(ctx, evt.AggregateID, readmodel.Record{"id": evt.AggregateID, "name": p.Name})
}

func countEvents(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
	rec, err := rm.Get(ctx, "count")
	if errors.Is(err, domain.ErrRecordNotFound) {
		rec = readmodel.Record{"n": 0}
	} else if err != nil {
		return err
	}
	return rm.Put(ctx, "count", readmodel.Record{"n": rec["n"].(int) + 1})
}

func count(t *testing.T, rm readmodel.ReadModel) int {
	t.Helper()
	rec, err := rm.Get(context.Background(), "count")
	if errors.Is(err, domain.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return rec["n"].(int)
}

func TestEngine_FansOutInRegistrationOrder(t *testing.T) {
	f := newFixture(t)
	list := readmodel.NewMemory("list")
	search := readmodel.NewMemory("search")
	require.NoError(t, f.engine.AddReadModel(list))
	require.NoError(t, f.engine.AddReadModel(search))

	var order []string
	track := func(name string) Func {
		return func(ctx context.Context, rm readmodel.ReadModel, evt *domain.Event) error {
			order = append(order, name)
			return upsertName(ctx, rm, evt)
		}
	}
	require.NoError(t, f.engine.RegisterProjection("Created", "list", track("list")))
	require.NoError(t, f.engine.RegisterProjection("Created", "search", track("search")))

	f.append(t, "P1", "Created", "Laptop")

	assert.Equal(t, []string{"list", "search"}, order)
	for _, rm := range []readmodel.ReadModel{list, search} {
		rec, err := rm.Get(context.Background(), "P1")
		require.NoError(t, err)
		assert.Equal(t, "Laptop", rec["name"])
	}
	assert.Equal(t, []observability.Signal{
		observability.SignalProjectionUpdated,
		observability.SignalProjectionUpdated,
	}, f.signals())
	assert.Equal(t, []string{"Created"}, f.engine.EventTypes())
}

func TestEngine_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	good := readmodel.NewMemory("good")
	bad := readmodel.NewMemory("bad")
	panicky := readmodel.NewMemory("panicky")
	for _, rm := range []readmodel.ReadModel{bad, panicky, good} {
		require.NoError(t, f.engine.AddReadModel(rm))
	}

	require.NoError(t, f.engine.RegisterProjection("Created", "bad", func(context.Context, readmodel.ReadModel, *domain.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, f.engine.RegisterProjection("Created", "panicky", func(context.Context, readmodel.ReadModel, *domain.Event) error {
		panic("kaboom")
	}))
	require.NoError(t, f.engine.RegisterProjection("Created", "good", upsertName))

	f.append(t, "P1", "Created", "Laptop")

	_, err := good.Get(context.Background(), "P1")
	require.NoError(t, err, "later projections still run")

	assert.Equal(t, []observability.Signal{
		observability.SignalProjectionError,
		observability.SignalProjectionError,
		observability.SignalProjectionUpdated,
	}, f.signals())

	state, err := f.engine.State("panicky")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, state.Status)
	assert.Contains(t, state.Message, "kaboom")

	state, err = f.engine.State("good")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, int64(1), state.Checkpoint)
}

func TestEngine_Registration(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AddReadModel(readmodel.NewMemory("list")))

	assert.Error(t, f.engine.AddReadModel(readmodel.NewMemory("list")))
	assert.ErrorIs(t, f.engine.RegisterProjection("Created", "missing", upsertName), domain.ErrReadModelNotFound)

	_, err := f.engine.ReadModel("missing")
	assert.ErrorIs(t, err, domain.ErrReadModelNotFound)
	_, err = f.engine.State("missing")
	assert.ErrorIs(t, err, domain.ErrReadModelNotFound)
	assert.ErrorIs(t, f.engine.Rebuild(context.Background(), "missing"), domain.ErrReadModelNotFound)

	rm, err := f.engine.ReadModel("list")
	require.NoError(t, err)
	assert.Equal(t, "list", rm.Name())
}

func TestEngine_UnknownEventTypesAreIgnored(t *testing.T) {
	f := newFixture(t)
	list := readmodel.NewMemory("list")
	require.NoError(t, f.engine.AddReadModel(list))
	require.NoError(t, f.engine.RegisterProjection("Created", "list", upsertName))

	f.append(t, "P1", "Renamed", "x")

	assert.Equal(t, 0, list.Len())
	assert.Empty(t, f.signals())
	state, _ := f.engine.State("list")
	assert.Equal(t, int64(1), state.Checkpoint)
}

func TestEngine_RebuildMatchesLiveState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithBatchSize(2))
	list := readmodel.NewMemory("list")
	counter := readmodel.NewMemory("counter")
	require.NoError(t, f.engine.AddReadModel(list))
	require.NoError(t, f.engine.AddReadModel(counter))
	require.NoError(t, f.engine.RegisterProjection("Created", "list", upsertName))
	require.NoError(t, f.engine.RegisterProjection("Renamed", "list", upsertName))
	require.NoError(t, f.engine.RegisterProjection("Created", "counter", countEvents))
	require.NoError(t, f.engine.RegisterProjection("Renamed", "counter", countEvents))

	f.append(t, "P1", "Created", "Laptop")
	f.append(t, "P2", "Created", "Mouse")
	f.append(t, "P1", "Renamed", "Laptop Pro")
	f.append(t, "P3", "Created", "Desk")
	f.append(t, "P2", "Renamed", "Trackball")

	before, err := list.All(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, count(t, counter))

	// Corrupt the view, then rebuild it.
	require.NoError(t, list.Put(ctx, "junk", readmodel.Record{"id": "junk"}))
	require.NoError(t, f.engine.Rebuild(ctx, "list"))

	after, err := list.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.Equal(t, 5, count(t, counter), "other read models are untouched")

	state, err := f.engine.State("list")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, int64(5), state.Checkpoint)
	assert.Nil(t, state.Progress)

	require.NoError(t, f.engine.RebuildAll(ctx))
	assert.Equal(t, 5, count(t, counter))
}

func TestEngine_RebuildConcurrentWithAppends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithBatchSize(3))
	counter := readmodel.NewMemory("counter")
	require.NoError(t, f.engine.AddReadModel(counter))
	require.NoError(t, f.engine.RegisterProjection("Tick", "counter", countEvents))

	for i := 0; i < 50; i++ {
		f.append(t, "A", "Tick", nil)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			evt := &domain.Event{ID: domain.GenerateID(), AggregateID: "B", EventType: "Tick", Version: int64(i + 1), Data: []byte(`{}`)}
			assert.NoError(t, f.store.AppendEvents(ctx, "B", []*domain.Event{evt}, int64(i)))
		}
	}()
	require.NoError(t, f.engine.Rebuild(ctx, "counter"))
	wg.Wait()

	assert.Equal(t, 100, count(t, counter), "every event applied exactly once")
}

func TestEngine_Close(t *testing.T) {
	f := newFixture(t)
	list := readmodel.NewMemory("list")
	require.NoError(t, f.engine.AddReadModel(list))
	require.NoError(t, f.engine.RegisterProjection("Created", "list", upsertName))

	f.engine.Close()
	f.append(t, "P1", "Created", "Laptop")
	assert.Equal(t, 0, list.Len())
}

func TestEngine_ProcessEventDirectly(t *testing.T) {
	f := newFixture(t)
	list := readmodel.NewMemory("list")
	require.NoError(t, f.engine.AddReadModel(list))
	require.NoError(t, f.engine.RegisterProjection("Created", "list", upsertName))

	f.engine.ProcessEvent(context.Background(), &domain.Event{AggregateID: "P9", EventType: "Created", Data: []byte(`{"name":"Lamp"}`)})

	rec, err := list.Get(context.Background(), "P9")
	require.NoError(t, err)
	assert.Equal(t, "Lamp", rec["name"])
}
