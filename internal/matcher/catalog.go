package matcher

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonathan/smartapply/internal/embedding"
	"golang.org/x/sync/singleflight"
)

// catalog embeds job text at most once per URL. Concurrent requests for
// the same URL share one provider call; results stay in a bounded LRU.
type catalog struct {
	provider embedding.Provider
	cache    *lru.Cache[string, []float32]
	group    singleflight.Group
	calls    atomic.Int64
}

func newCatalog(provider embedding.Provider, size int) (*catalog, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &catalog{provider: provider, cache: cache}, nil
}

// Embed returns the embedding for url, computing it from text on a miss.
// Failures are not cached.
func (c *catalog) Embed(ctx context.Context, url, text string) ([]float32, error) {
	if v, ok := c.cache.Get(url); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(url, func() (any, error) {
		if v, ok := c.cache.Get(url); ok {
			return v, nil
		}
		c.calls.Add(1)
		vec, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(url, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Calls returns the number of provider calls made.
func (c *catalog) Calls() int64 {
	return c.calls.Load()
}
