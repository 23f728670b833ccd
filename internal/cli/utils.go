// Package cli provides output formatting for the notevec command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/pkg/utils"
)

// SearchOutputFormat is the format for command output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if response.Message != "" {
		fmt.Fprintf(w, "\n%s\n\n", response.Message)
		return
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, hit := range response.Results {
		writeOneResult(w, hit)
	}
}

func writeOneResult(w io.Writer, hit *models.SearchHit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", hit.Rank, hit.Score)
	fmt.Fprintf(w, "Path: %s (lines %d-%d)\n", hit.DocumentPath, hit.StartLine+1, hit.EndLine+1)
	if hit.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", hit.Title)
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(hit.Snippet, 200))
	fmt.Fprintln(w)
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, hit := range response.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%s:%d\t%s\n",
			hit.Rank, hit.Score, hit.DocumentPath, hit.StartLine+1, TruncateWords(hit.Snippet, 12))
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteStatus writes index status to w. Compact is treated as text.
func WriteStatus(w io.Writer, status *models.Status, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "documents:          %d   # count of indexed documents\n", status.Documents)
	fmt.Fprintf(w, "chunks:             %d   # count of embedded chunks\n", status.Chunks)
	if len(status.Dimensions) > 0 {
		fmt.Fprintf(w, "dimensions:         %v\n", status.Dimensions)
	}
	fmt.Fprintf(w, "indexer:            %s\n", status.IndexerState)
	if p := status.Progress; p != nil {
		fmt.Fprintf(w, "progress:           %d/%d (%.0f%%)\n", p.Processed, p.Total, p.Percent)
	}
	if status.Index != nil {
		if !status.Index.LastIndexedAt.IsZero() {
			fmt.Fprintf(w, "last_indexed_at:    %s\n", status.Index.LastIndexedAt.Format(time.RFC3339))
		}
		if status.Index.Model != "" {
			fmt.Fprintf(w, "indexed_model:      %s\n", status.Index.Model)
		}
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # index file + metadata database\n", *status.DiskUsageBytes)
	}
	if svc := status.EmbeddingService; svc != nil {
		fmt.Fprintf(w, "embedding_service:  %s\n", svc.State)
		if svc.Reason != "" {
			fmt.Fprintf(w, "  reason:           %s\n", svc.Reason)
		}
	}
	if run := status.LastRun; run != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# last rebuild")
		writeRunSummaryText(w, run)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "service_url:        %s\n", c.ServiceURL)
		fmt.Fprintf(w, "model_name:         %s\n", c.ModelName)
		fmt.Fprintf(w, "threshold:          %.2f\n", c.Threshold)
		fmt.Fprintf(w, "max_results:        %d\n", c.MaxResults)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		fmt.Fprintf(w, "chunk_strategy:     %s\n", c.ChunkStrategy)
		if c.VaultDirectory != "" {
			fmt.Fprintf(w, "vault_directory:    %s\n", c.VaultDirectory)
		}
		if c.IndexPath != "" {
			fmt.Fprintf(w, "index_path:         %s\n", c.IndexPath)
		}
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
	}
	return nil
}

// WriteRunSummary writes the outcome of a full rebuild.
func WriteRunSummary(w io.Writer, summary *models.RunSummary, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, summary)
	}
	writeRunSummaryText(w, summary)
	return nil
}

func writeRunSummaryText(w io.Writer, s *models.RunSummary) {
	outcome := "completed"
	if s.Canceled {
		outcome = "canceled"
	}
	fmt.Fprintf(w, "run:                %s (%s)\n", s.RunID, outcome)
	fmt.Fprintf(w, "documents:          %d/%d\n", s.Processed, s.TotalDocuments)
	fmt.Fprintf(w, "chunks:             %d\n", s.Chunks)
	if s.SkippedChunks > 0 {
		fmt.Fprintf(w, "skipped_chunks:     %d\n", s.SkippedChunks)
	}
	fmt.Fprintf(w, "duration:           %s\n", s.Duration.Round(time.Millisecond))
	for _, p := range s.FailedDocuments {
		fmt.Fprintf(w, "failed:             %s\n", p)
	}
}

// ProgressPrinter returns a progress callback that rewrites a single line on w.
func ProgressPrinter(w io.Writer) func(models.Progress) {
	return func(p models.Progress) {
		fmt.Fprintf(w, "\rIndexing %d/%d (%3.0f%%) %s\033[K", p.Processed, p.Total, p.Percent, TruncateWords(p.Current, 8))
		if p.Total > 0 && p.Processed == p.Total {
			fmt.Fprintln(w)
		}
	}
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
