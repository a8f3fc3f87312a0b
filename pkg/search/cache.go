package search

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachedSearcher memoizes search results for a TTL. Metadata changes
// rarely, so repeated questions in a session skip the round trips.
type CachedSearcher struct {
	inner Searcher
	ttl   time.Duration
	cache *ttlcache.Cache[string, Results]
}

func NewCachedSearcher(inner Searcher, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{
		inner: inner,
		ttl:   ttl,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Results](ttl),
		),
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, topK int) (Results, error) {
	key := fmt.Sprintf("%d:%s", topK, query)
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	out, err := c.inner.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, out, c.ttl)
	return out, nil
}
