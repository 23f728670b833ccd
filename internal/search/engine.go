// Package search ranks stored chunks against a query embedding.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/notevec/internal/config"
	"github.com/hyperjump/notevec/internal/embedding"
	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrQueryTooShort is returned before any embedding call when the query is below the minimum length.
	ErrQueryTooShort = errors.New("not enough input")
	// ErrIndexEmpty is returned before any embedding call when there is nothing to search.
	ErrIndexEmpty = errors.New("index empty")
	// ErrNotReady is returned when the embedding service or model is unavailable.
	ErrNotReady = errors.New("embedding service not ready")
)

const snippetLength = 200

// Gate reports whether embeddings can currently be produced.
type Gate interface {
	EnsureReady(ctx context.Context, force bool) (bool, error)
}

// Engine answers similarity queries over the vector store.
type Engine struct {
	store    *vector.Store
	embedder embedding.Embedder
	gate     Gate
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a search engine. gate and logger may be nil.
func NewEngine(
	store *vector.Store,
	embedder embedding.Embedder,
	gate Gate,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		gate:     gate,
		config:   cfg,
		logger:   logger,
	}
}

// Search embeds the query and returns the best matching chunks.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config.MinQueryLength); err != nil {
		return nil, err
	}
	if e.store.Len() == 0 {
		return nil, ErrIndexEmpty
	}

	if e.gate != nil {
		ok, err := e.gate.EnsureReady(ctx, true)
		if !ok {
			if err == nil {
				return nil, ErrNotReady
			}
			return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
		}
	}

	queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		e.logger.Warn("query embedding failed", zap.String("query", query.Query), zap.Error(err))
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	threshold := e.config.Threshold
	if query.MinScore != nil {
		threshold = *query.MinScore
	}
	limit := e.config.MaxResults
	if query.Limit > 0 {
		limit = query.Limit
	}

	records := e.store.Records()
	e.warnOnDimensionMismatch(len(queryEmbedding))
	ranked := Rank(queryEmbedding, records, threshold, limit)

	hits := make([]*models.SearchHit, len(ranked))
	for i, r := range ranked {
		hits[i] = &models.SearchHit{
			DocumentPath: r.Record.DocumentPath,
			ChunkIndex:   r.Record.ChunkIndex,
			Title:        r.Record.Title,
			StartLine:    r.Record.StartLine,
			EndLine:      r.Record.EndLine,
			Snippet:      Highlight(r.Record.Content, snippetLength),
			Score:        r.Score,
			Rank:         r.Rank,
		}
	}

	return &models.SearchResponse{
		Query:     query.Query,
		Results:   hits,
		Total:     len(hits),
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}

// warnOnDimensionMismatch logs when stored embeddings cannot match the query; they score 0
// until the vault is rebuilt with the current model.
func (e *Engine) warnOnDimensionMismatch(queryDims int) {
	for _, d := range e.store.Dimensions() {
		if d != queryDims {
			e.logger.Warn("index holds embeddings of a different size; rebuild to search them",
				zap.Int("query_dimensions", queryDims),
				zap.Ints("stored_dimensions", e.store.Dimensions()),
			)
			return
		}
	}
}
