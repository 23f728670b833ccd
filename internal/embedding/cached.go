package embedding

import "context"

// CachedEmbedder wraps an Embedder with an LRU cache keyed by model and text,
// so unchanged chunks are not re-embedded when a document is re-indexed.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder returns inner unchanged when capacity is not positive.
func NewCachedEmbedder(inner Embedder, capacity int) Embedder {
	if capacity <= 0 {
		return inner
	}
	return &CachedEmbedder{inner: inner, cache: NewEmbeddingCache(capacity)}
}

// Embed returns a cached vector or asks the wrapped embedder. Failures are not cached.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.inner.Model() + "\x00" + text
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}
	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, v)
	return v, nil
}

// Model returns the wrapped embedder's model.
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}
