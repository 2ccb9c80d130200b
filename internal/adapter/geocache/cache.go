// Package geocache decorates an autocomplete provider with an in-process LRU
// and an optional shared store.
package geocache

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
)

// Store is a shared second-level cache, such as Redis.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.Suggestion, bool, error)
	Set(ctx context.Context, key string, value []domain.Suggestion) error
}

// CachedSuggester wraps a Suggester with caching. Only non-empty results are
// cached so a transient "no match" can be retried.
type CachedSuggester struct {
	inner   domain.Suggester
	memory  *lru[[]domain.Suggestion]
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates the cache decorator. store may be nil.
func New(inner domain.Suggester, maxEntries int, store Store, metrics *observability.Metrics, logger *slog.Logger) *CachedSuggester {
	return &CachedSuggester{
		inner:   inner,
		memory:  newLRU[[]domain.Suggestion](maxEntries),
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Key normalizes query text into a cache key.
func Key(text string) string {
	return "ac:" + strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Autocomplete serves from memory, then the shared store, then the provider.
func (c *CachedSuggester) Autocomplete(ctx context.Context, text string) ([]domain.Suggestion, error) {
	key := Key(text)
	if v, ok := c.memory.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return v, nil
	}

	if c.store != nil {
		v, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("shared suggestion cache read failed", "key", key, "error", err)
		case ok && len(v) > 0:
			c.metrics.GeocodeCache.WithLabelValues("shared_hit").Inc()
			c.memory.put(key, v)
			return v, nil
		}
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	v, err := c.inner.Autocomplete(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return v, nil
	}
	c.memory.put(key, v)
	if c.store != nil {
		if err := c.store.Set(ctx, key, v); err != nil {
			c.logger.Warn("shared suggestion cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}
