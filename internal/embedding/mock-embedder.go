package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/hyperjump/notevec/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
// Texts registered with Fail return ErrServiceUnavailable.
type MockEmbedder struct {
	dimensions int
	model      string

	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions, model: "mock", fail: make(map[string]bool)}
}

// Embed returns a deterministic unit-length embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	failing := e.fail[text]
	e.mu.Unlock()
	if failing {
		return nil, ErrServiceUnavailable
	}

	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Model returns "mock".
func (e *MockEmbedder) Model() string {
	return e.model
}

// Fail makes subsequent Embed calls for text fail.
func (e *MockEmbedder) Fail(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[text] = true
}

// Calls returns how many times Embed was called.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// HashString returns a simple non-negative hash for s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
