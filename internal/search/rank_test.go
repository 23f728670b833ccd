package search

import (
	"testing"

	"github.com/hyperjump/notevec/internal/models"
)

func TestRank(t *testing.T) {
	recs := []*models.ChunkRecord{
		{DocumentPath: "low.md", Embedding: []float32{0.2, 1}},
		{DocumentPath: "tie-1.md", Embedding: []float32{1, 1}},
		{DocumentPath: "best.md", Embedding: []float32{1, 0}},
		{DocumentPath: "tie-2.md", Embedding: []float32{1, 1}},
		{DocumentPath: "orthogonal.md", Embedding: []float32{0, 1}},
		{DocumentPath: "wrong-dims.md", Embedding: []float32{1, 0, 0}},
	}
	query := []float32{1, 0}

	got := Rank(query, recs, 0.1, 10)
	want := []string{"best.md", "tie-1.md", "tie-2.md", "low.md"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Record.DocumentPath != want[i] {
			t.Errorf("result %d = %s, want %s", i, r.Record.DocumentPath, want[i])
		}
		if r.Rank != i+1 {
			t.Errorf("result %d rank = %d", i, r.Rank)
		}
		if r.Score < 0.1 {
			t.Errorf("result %d below threshold: %f", i, r.Score)
		}
	}

	top := Rank(query, recs, 0.1, 2)
	if len(top) != 2 || top[1].Record.DocumentPath != "tie-1.md" {
		t.Errorf("truncated results = %v", top)
	}
}

func TestRank_ThresholdInclusive(t *testing.T) {
	recs := []*models.ChunkRecord{{DocumentPath: "a.md", Embedding: []float32{1, 0}}}
	if got := Rank([]float32{1, 0}, recs, 1, 5); len(got) != 1 {
		t.Errorf("score equal to threshold should be kept, got %d results", len(got))
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank([]float32{1}, nil, 0, 5); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
