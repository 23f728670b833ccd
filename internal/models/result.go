package models

import "time"

// SearchResult is a single scored chunk.
type SearchResult struct {
	Record *ChunkRecord `json:"-"`
	Score  float64      `json:"score"`
	Rank   int          `json:"rank"`
}

// SearchHit is the wire shape of a search result.
type SearchHit struct {
	DocumentPath string  `json:"document_path"`
	ChunkIndex   int     `json:"chunk_index"`
	Title        string  `json:"title"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	Snippet      string  `json:"snippet,omitempty"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string       `json:"query"`
	Results   []*SearchHit `json:"results"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	// Message explains an empty result that did not come from scoring (e.g. empty index).
	Message string `json:"message,omitempty"`
}

// Progress is emitted after each document of a full rebuild.
type Progress struct {
	RunID     string  `json:"run_id"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Current   string  `json:"current,omitempty"`
}

// RunSummary describes a finished, failed or canceled full rebuild.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	TotalDocuments  int           `json:"total_documents"`
	Processed       int           `json:"processed"`
	Chunks          int           `json:"chunks"`
	SkippedChunks   int           `json:"skipped_chunks"`
	FailedDocuments []string      `json:"failed_documents,omitempty"`
	Canceled        bool          `json:"canceled"`
}
