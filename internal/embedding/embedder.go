// Package embedding provides text embeddings from an Ollama-compatible service, with caching.
package embedding

import (
	"context"
	"errors"
)

// Errors returned by embedders. Callers treat any of them as a failure of one chunk or query.
var (
	ErrServiceUnavailable = errors.New("embedding service unavailable")
	ErrBadStatus          = errors.New("embedding service returned non-success status")
	ErrMalformedResponse  = errors.New("malformed embedding response")
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model returns the name of the model producing the embeddings.
	Model() string
}
