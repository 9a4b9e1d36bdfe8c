package cqrs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plaenen/eventcore/pkg/codec"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/observability"
)

// QueryHandler answers a query, typically from a read model.
type QueryHandler interface {
	Handle(ctx context.Context, q *domain.Query) (any, error)
}

// QueryHandlerFunc is a function adapter for QueryHandler.
type QueryHandlerFunc func(ctx context.Context, q *domain.Query) (any, error)

// Handle implements QueryHandler.
func (f QueryHandlerFunc) Handle(ctx context.Context, q *domain.Query) (any, error) {
	return f(ctx, q)
}

// QueryBus routes each query to exactly one handler, optionally caching results.
//
// Cached results are not invalidated when commands change the underlying read
// models; a query may return data up to the cache TTL old. A cache hit returns
// the same value the handler produced, so results must be treated as read-only.
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[string]QueryHandler
	cache    Cache
	ttl      time.Duration
	cfg      busConfig
}

// NewQueryBus creates a query bus with caching disabled.
func NewQueryBus(opts ...Option) *QueryBus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &QueryBus{
		handlers: make(map[string]QueryHandler),
		cfg:      cfg,
	}
}

// Register registers the handler for a query type.
// Returns domain.ErrDuplicateHandler if the type already has one.
func (b *QueryBus) Register(queryType string, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[queryType]; exists {
		return fmt.Errorf("%w: query type %s", domain.ErrDuplicateHandler, queryType)
	}
	b.handlers[queryType] = handler
	return nil
}

// MustRegister is like Register but panics on error. Intended for wiring code.
func (b *QueryBus) MustRegister(queryType string, handler QueryHandler) {
	if err := b.Register(queryType, handler); err != nil {
		panic(err)
	}
}

// EnableCache caches results for ttl, keyed by query type and parameters.
// A ttl <= 0 disables caching.
func (b *QueryBus) EnableCache(ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ttl <= 0 {
		b.cache = nil
		b.ttl = 0
		return
	}
	if b.cfg.cache == nil {
		b.cfg.cache = NewMemoryCache(b.cfg.now)
	}
	b.cache = b.cfg.cache
	b.ttl = ttl
}

// InvalidateCache drops every cached result.
func (b *QueryBus) InvalidateCache() {
	b.mu.RLock()
	cache := b.cache
	b.mu.RUnlock()
	if cache != nil {
		cache.Clear()
	}
}

// Execute answers the query from the cache when a live entry exists, otherwise
// from its handler. Errors are never cached.
func (b *QueryBus) Execute(ctx context.Context, q *domain.Query) (any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", domain.ErrInvalidQuery)
	}

	start := b.cfg.now()
	result, hit, err := b.execute(ctx, q)

	n := observability.Notification{
		Signal:    observability.SignalQueryExecuted,
		QueryType: q.Type,
		CacheHit:  hit,
		Duration:  b.cfg.now().Sub(start),
	}
	if err != nil {
		n.Signal = observability.SignalQueryFailed
		n.Err = err
	}
	b.cfg.emitter.Emit(ctx, n)

	return result, err
}

func (b *QueryBus) execute(ctx context.Context, q *domain.Query) (any, bool, error) {
	b.mu.RLock()
	handler, exists := b.handlers[q.Type]
	cache, ttl := b.cache, b.ttl
	b.mu.RUnlock()

	if !exists {
		return nil, false, fmt.Errorf("%w: query type %s", domain.ErrNoHandlerFound, q.Type)
	}

	var key string
	if cache != nil {
		var err error
		key, err = cacheKey(q)
		if err != nil {
			b.cfg.logger.DebugContext(ctx, "query not cacheable",
				slog.String("query_type", q.Type),
				slog.String("error", err.Error()))
			cache = nil
		} else if v, ok := cache.Get(key); ok {
			return v, true, nil
		}
	}

	result, err := handler.Handle(ctx, q)
	if err != nil {
		return nil, false, err
	}

	if cache != nil {
		cache.Set(key, result, ttl)
	}
	return result, false, nil
}

func cacheKey(q *domain.Query) (string, error) {
	params, err := codec.CanonicalKey(q.Parameters)
	if err != nil {
		return "", err
	}
	return q.Type + ":" + params, nil
}
