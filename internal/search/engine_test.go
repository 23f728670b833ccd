package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/notevec/internal/config"
	"github.com/hyperjump/notevec/internal/embedding"
	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/vector"
	"go.uber.org/zap"
)

type stubGate struct {
	ready bool
	err   error
	force []bool
}

func (g *stubGate) EnsureReady(ctx context.Context, force bool) (bool, error) {
	g.force = append(g.force, force)
	return g.ready, g.err
}

func newEngine(t *testing.T, texts map[string]string, gate Gate) (*Engine, *embedding.MockEmbedder) {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(16)
	store := vector.NewStore(filepath.Join(t.TempDir(), "index.json"))
	for path, text := range texts {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		store.ReplaceDocument(path, []*models.ChunkRecord{{
			DocumentPath: path, Embedding: vec, Title: path, Content: text,
		}})
	}
	cfg := &config.SearchConfig{Threshold: 0, MaxResults: 10, MinQueryLength: 3}
	return NewEngine(store, emb, gate, cfg, zap.NewNop()), emb
}

func TestEngine_Search(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		"go.md":    "goroutines and channels",
		"cook.md":  "a recipe for bread",
		"other.md": "something else entirely",
	}, nil)

	threshold := 0.0
	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "  goroutines and channels  ", MinScore: &threshold})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Query != "goroutines and channels" {
		t.Errorf("query should be trimmed, got %q", resp.Query)
	}
	if len(resp.Results) == 0 || resp.Results[0].DocumentPath != "go.md" {
		t.Fatalf("expected go.md first, got %+v", resp.Results)
	}
	if resp.Results[0].Score < 0.999 || resp.Results[0].Rank != 1 {
		t.Errorf("identical text should score 1, got %+v", resp.Results[0])
	}
	if resp.Results[0].Snippet != "goroutines and channels" {
		t.Errorf("snippet = %q", resp.Results[0].Snippet)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Error("results must be sorted by descending score")
		}
	}
}

func TestEngine_SearchLimit(t *testing.T) {
	e, _ := newEngine(t, map[string]string{"a.md": "aaa", "b.md": "bbb", "c.md": "ccc"}, nil)
	low := -1.0
	if _, err := e.Search(context.Background(), &models.SearchQuery{Query: "abc", MinScore: &low}); err == nil {
		t.Error("min_score below 0 should be rejected")
	}

	e.config.Threshold = -1
	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "abc", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, want 2", resp.Total)
	}

	resp, err = e.Search(context.Background(), &models.SearchQuery{Query: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 {
		t.Errorf("configured max_results should apply, Total = %d", resp.Total)
	}
}

func TestEngine_ShortCircuits(t *testing.T) {
	gate := &stubGate{ready: true}
	e, emb := newEngine(t, map[string]string{"a.md": "alpha"}, gate)

	if _, err := e.Search(context.Background(), &models.SearchQuery{Query: " ab "}); !errors.Is(err, ErrQueryTooShort) {
		t.Errorf("err = %v, want ErrQueryTooShort", err)
	}
	if _, err := e.Search(context.Background(), &models.SearchQuery{Query: ""}); !errors.Is(err, ErrQueryTooShort) {
		t.Errorf("err = %v, want ErrQueryTooShort", err)
	}

	empty, _ := newEngine(t, nil, gate)
	if _, err := empty.Search(context.Background(), &models.SearchQuery{Query: "anything"}); !errors.Is(err, ErrIndexEmpty) {
		t.Errorf("err = %v, want ErrIndexEmpty", err)
	}

	// one Embed call per document while building the fixture, none from the short-circuited searches
	if emb.Calls() != 1 {
		t.Errorf("embed calls = %d, want 1", emb.Calls())
	}
	if len(gate.force) != 0 {
		t.Errorf("gate should not be consulted, calls = %v", gate.force)
	}
}

func TestEngine_NotReady(t *testing.T) {
	gate := &stubGate{err: errors.New("model missing")}
	e, emb := newEngine(t, map[string]string{"a.md": "alpha"}, gate)
	_, err := e.Search(context.Background(), &models.SearchQuery{Query: "alpha"})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if len(gate.force) != 1 || !gate.force[0] {
		t.Errorf("search should force the readiness check, calls = %v", gate.force)
	}
	if emb.Calls() != 1 {
		t.Errorf("no query embedding expected, calls = %d", emb.Calls())
	}
}

func TestEngine_EmbeddingFailure(t *testing.T) {
	e, emb := newEngine(t, map[string]string{"a.md": "alpha"}, nil)
	emb.Fail("broken query")
	if _, err := e.Search(context.Background(), &models.SearchQuery{Query: "broken query"}); !errors.Is(err, embedding.ErrServiceUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestEngine_MixedDimensionsScoreZero(t *testing.T) {
	e, _ := newEngine(t, map[string]string{"a.md": "alpha"}, nil)
	e.store.ReplaceDocument("old.md", []*models.ChunkRecord{{DocumentPath: "old.md", Embedding: []float32{1, 0, 0}}})
	e.config.Threshold = 0.01
	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range resp.Results {
		if h.DocumentPath == "old.md" {
			t.Error("records of another dimension must not match")
		}
	}
}
