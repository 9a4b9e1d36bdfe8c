package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/plaenen/eventcore/pkg/config"
	"github.com/plaenen/eventcore/pkg/cqrs"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/middleware"
	"github.com/plaenen/eventcore/pkg/observability"
	"github.com/plaenen/eventcore/pkg/projection"
	"github.com/plaenen/eventcore/pkg/readmodel"
	"github.com/plaenen/eventcore/pkg/readmodel/redis"
	"github.com/plaenen/eventcore/pkg/readmodel/sqlite"
	"github.com/plaenen/eventcore/pkg/store"
	"github.com/plaenen/eventcore/pkg/store/memory"
)

type options struct {
	logger      *slog.Logger
	telemetry   *observability.Telemetry
	redisClient goredis.UniversalClient
	clock       func() time.Time
}

// Option configures New.
type Option func(*options)

// WithLogger overrides the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry uses tel instead of a no-op telemetry stack. The caller owns
// its shutdown.
func WithTelemetry(tel *observability.Telemetry) Option {
	return func(o *options) {
		o.telemetry = tel
	}
}

// WithRedisClient uses client for the redis backend instead of dialing
// cfg.RedisAddr. The caller owns the client.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(o *options) {
		o.redisClient = client
	}
}

// WithClock overrides the clock used by the buses and the query cache.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// Catalog is a fully wired product catalog runtime.
type Catalog struct {
	Events     *memory.EventStore
	Snapshots  *memory.SnapshotStore
	Products   *store.Repository[*Product]
	Engine     *projection.Engine
	Commands   *cqrs.CommandBus
	Queries    *cqrs.QueryBus
	Emitter    *observability.Emitter
	Telemetry  *observability.Telemetry
	ReadModels map[string]readmodel.ReadModel

	logger  *slog.Logger
	closers []func(context.Context) error
}

// New wires an event store, snapshot store, projection engine, read models
// and both buses from cfg.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = config.NewLogger(cfg)
	}

	c := &Catalog{logger: o.logger}

	tel := o.telemetry
	if tel == nil {
		var err error
		tel, err = observability.Init(ctx, observability.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Logger:      o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		c.closers = append(c.closers, tel.Shutdown)
	}
	c.Telemetry = tel
	c.Emitter = observability.NewEmitter(tel.Metrics.Observer(), observability.LogObserver(o.logger))

	c.Events = memory.NewEventStore(memory.WithLogger(o.logger), memory.WithEmitter(c.Emitter))
	c.Snapshots = memory.NewSnapshotStore()

	repoOpts := []store.RepositoryOption{
		store.WithRepositoryLogger(o.logger),
		store.WithLoadHook(tel.Metrics.RecordAggregateLoad),
	}
	if cfg.SnapshotInterval > 0 {
		repoOpts = append(repoOpts, store.WithSnapshots(c.Snapshots, store.NewIntervalSnapshotStrategy(cfg.SnapshotInterval)))
	}
	c.Products = store.NewRepository(c.Events, AggregateType, NewProduct, repoOpts...)

	c.Engine = projection.NewEngine(c.Events,
		projection.WithLogger(o.logger),
		projection.WithEmitter(c.Emitter),
		projection.WithBatchSize(cfg.RebuildBatchSize),
	)
	c.closers = append(c.closers, func(context.Context) error {
		c.Engine.Close()
		return nil
	})

	if err := c.openReadModels(cfg, o); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	for _, name := range []string{ProductListModel, ProductSearchModel} {
		if err := c.Engine.AddReadModel(c.ReadModels[name]); err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
	}
	if err := RegisterProjections(c.Engine); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	tracer := tel.Tracer("catalog")

	c.Commands = cqrs.NewCommandBus(
		cqrs.WithLogger(o.logger),
		cqrs.WithEmitter(c.Emitter),
		cqrs.WithClock(o.clock),
	)
	c.Commands.Use(middleware.MetadataValidation(false))
	c.Commands.Use(ValidateProductID)
	c.Commands.Use(middleware.Validation(middleware.SelfValidator{}))
	c.Commands.Wrap(middleware.Recovery(o.logger))
	c.Commands.Wrap(middleware.Tracing(tracer))
	c.Commands.Wrap(middleware.Logging(o.logger))
	if err := NewCommandHandlers(c.Products).Register(c.Commands); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Queries = cqrs.NewQueryBus(
		cqrs.WithLogger(o.logger),
		cqrs.WithEmitter(c.Emitter),
		cqrs.WithClock(o.clock),
	)
	c.Queries.EnableCache(cfg.QueryCacheTTL)
	queries := NewQueryHandlers(c.ReadModels[ProductListModel], c.ReadModels[ProductSearchModel])
	err := queries.Register(c.Queries, func(h cqrs.QueryHandler) cqrs.QueryHandler {
		return middleware.QueryTracing(tracer, h)
	})
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	o.logger.InfoContext(ctx, "catalog started",
		slog.String("read_model_backend", cfg.ReadModelBackend),
		slog.Int64("snapshot_interval", cfg.SnapshotInterval),
		slog.Duration("query_cache_ttl", cfg.QueryCacheTTL))

	return c, nil
}

func (c *Catalog) openReadModels(cfg config.Config, o options) error {
	names := []string{ProductListModel, ProductSearchModel}
	c.ReadModels = make(map[string]readmodel.ReadModel, len(names))

	switch cfg.ReadModelBackend {
	case config.BackendSQLite:
		db, err := sqlite.Open(sqlite.WithDSN(cfg.SQLiteDSN))
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func(context.Context) error { return db.Close() })
		for _, name := range names {
			c.ReadModels[name] = sqlite.New(db, name)
		}

	case config.BackendRedis:
		client := o.redisClient
		if client == nil {
			owned := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
			c.closers = append(c.closers, func(context.Context) error { return owned.Close() })
			client = owned
		}
		for _, name := range names {
			c.ReadModels[name] = redis.New(client, name, redis.WithPrefix(cfg.RedisPrefix))
		}

	default:
		for _, name := range names {
			c.ReadModels[name] = readmodel.NewMemory(name)
		}
	}
	return nil
}

// Execute creates a command for aggregateID and sends it through the command bus.
func (c *Catalog) Execute(ctx context.Context, commandType, aggregateID string, payload any, opts ...domain.CommandOption) (any, error) {
	return c.Commands.Execute(ctx, domain.NewCommand(commandType, aggregateID, payload, opts...))
}

// Query sends a query through the query bus.
func (c *Catalog) Query(ctx context.Context, queryType string, params map[string]any) (any, error) {
	return c.Queries.Execute(ctx, domain.NewQuery(queryType, params))
}

// Close releases everything New opened, in reverse order.
func (c *Catalog) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if err := errors.Join(errs...); err != nil {
		c.logger.WarnContext(ctx, "catalog shutdown incomplete", slog.String("error", err.Error()))
		return err
	}
	c.logger.InfoContext(ctx, "catalog stopped")
	return nil
}
