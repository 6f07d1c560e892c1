package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of distinct queries kept by a Cached searcher.
const DefaultCacheSize = 128

// Cached memoizes another searcher's results by normalized query and limit.
type Cached struct {
	next   ports.KnowledgeSearcher
	cache  *lru.Cache
	logger *slog.Logger
}

// CacheOption configures a Cached searcher.
type CacheOption func(*Cached)

// WithCacheLogger sets the logger used to report invalidations.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cached) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCached wraps next with an LRU cache of size entries.
func NewCached(next ports.KnowledgeSearcher, size int, opts ...CacheOption) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge cache: %w", err)
	}
	c := &Cached{next: next, cache: cache, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type cacheKey struct {
	query string
	limit int
}

// Search implements ports.KnowledgeSearcher.
func (c *Cached) Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error) {
	key := cacheKey{strings.Join(Terms(query), " "), limit}
	if v, ok := c.cache.Get(key); ok {
		return cloneHits(v.([]domain.KnowledgeHit)), nil
	}
	hits, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneHits(hits))
	return hits, nil
}

// Invalidate drops every cached result.
func (c *Cached) Invalidate() {
	c.cache.Purge()
}

// Len returns the number of cached queries.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Follow purges the cache every time w reports a change, until ctx is done.
func (c *Cached) Follow(ctx context.Context, w ports.Watchable) error {
	ch, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch knowledge source: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				c.Invalidate()
				c.logger.Debug("knowledge cache invalidated")
			}
		}
	}()
	return nil
}

func cloneHits(hits []domain.KnowledgeHit) []domain.KnowledgeHit {
	if hits == nil {
		return nil
	}
	return append([]domain.KnowledgeHit(nil), hits...)
}
