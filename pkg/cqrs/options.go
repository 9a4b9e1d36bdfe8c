// Package cqrs routes commands and queries to their handlers.
package cqrs

import (
	"log/slog"
	"time"

	"github.com/plaenen/eventcore/pkg/observability"
)

type busConfig struct {
	logger  *slog.Logger
	emitter *observability.Emitter
	now     func() time.Time
	cache   Cache
}

func defaultBusConfig() busConfig {
	return busConfig{logger: slog.Default(), now: time.Now}
}

// Option configures a CommandBus or QueryBus.
type Option func(*busConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithEmitter reports executed/failed notifications.
func WithEmitter(emitter *observability.Emitter) Option {
	return func(c *busConfig) {
		c.emitter = emitter
	}
}

// WithClock overrides time.Now. The query cache uses it for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *busConfig) {
		c.now = now
	}
}

// WithCache sets the cache used by the query bus once EnableCache is called.
func WithCache(cache Cache) Option {
	return func(c *busConfig) {
		c.cache = cache
	}
}
