package search

import (
	"sort"

	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/vector"
)

// Rank scores every record against query by cosine similarity, keeps scores >= threshold,
// sorts by descending score and truncates to maxResults. Ties keep the input order.
// A non-positive maxResults returns every match.
func Rank(query []float32, records []*models.ChunkRecord, threshold float64, maxResults int) []*models.SearchResult {
	results := make([]*models.SearchResult, 0)
	for _, r := range records {
		score := vector.CosineSimilarity(query, r.Embedding)
		if score < threshold {
			continue
		}
		results = append(results, &models.SearchResult{Record: r, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return results
}
