package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultQueryCacheSize = 512

// CachedTextEmbedder wraps a TextEmbedder with an LRU cache keyed by a hash
// of the input text, so repeated search queries (the common case for @sem
// and its qualifier siblings) skip the network/model round trip entirely.
type CachedTextEmbedder struct {
	inner TextEmbedder
	cache *lru.Cache[string, []float32]
}

var _ TextEmbedder = (*CachedTextEmbedder)(nil)

// NewCachedTextEmbedder wraps inner with an LRU cache of the given size;
// size <= 0 selects a sensible default.
func NewCachedTextEmbedder(inner TextEmbedder, size int) (*CachedTextEmbedder, error) {
	if size <= 0 {
		size = defaultQueryCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedTextEmbedder{inner: inner, cache: cache}, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed implements TextEmbedder, serving from cache when possible.
func (c *CachedTextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// EmbedBatch implements TextEmbedder, serving each cached text from cache
// and delegating only the uncached remainder to inner.
func (c *CachedTextEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := c.cache.Get(cacheKey(t)); ok {
			results[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embedded, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = embedded[j]
		c.cache.Add(cacheKey(missTexts[j]), embedded[j])
	}
	return results, nil
}

// Dimensions implements TextEmbedder.
func (c *CachedTextEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName implements TextEmbedder.
func (c *CachedTextEmbedder) ModelName() string { return c.inner.ModelName() }

// Available implements TextEmbedder.
func (c *CachedTextEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close implements TextEmbedder, purging the cache and closing inner.
func (c *CachedTextEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
