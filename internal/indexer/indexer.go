package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/notevec/internal/config"
	"github.com/hyperjump/notevec/internal/embedding"
	"github.com/hyperjump/notevec/internal/fileid"
	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/storage"
	"github.com/hyperjump/notevec/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrIndexingInProgress is returned when a full rebuild is already running.
	ErrIndexingInProgress = errors.New("indexing already in progress")
	// ErrCanceled is returned by a full rebuild that stopped early; the previous index is kept.
	ErrCanceled = errors.New("indexing canceled, existing index preserved")
	// ErrNotReady is returned when the embedding service or model is unavailable.
	ErrNotReady = errors.New("embedding service not ready")
)

// State is the indexer's full-rebuild state.
type State int

const (
	StateIdle State = iota
	StateIndexing
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateIndexing:
		return "indexing"
	case StateCancelling:
		return "cancelling"
	default:
		return "idle"
	}
}

// Source lists and reads documents.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(docPath string) (string, error)
}

// Gate reports whether embeddings can currently be produced.
type Gate interface {
	EnsureReady(ctx context.Context, force bool) (bool, error)
}

// ProgressFunc receives a progress update after each document of a full rebuild.
type ProgressFunc func(models.Progress)

// Indexer owns every mutation of the vector store.
type Indexer struct {
	store    *vector.Store
	embedder embedding.Embedder
	source   Source
	chunker  *Chunker
	gate     Gate              // optional; nil means always ready
	meta     storage.MetaStore // optional
	debounce time.Duration
	logger   *zap.Logger // optional; when set, logs indexing events

	// writeMu serializes store mutations: incremental updates, the start of a rebuild
	// and its final swap. Incremental updates are rejected while a rebuild runs.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	cancelReq bool
	progress  models.Progress
	lastRun   *models.RunSummary
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for indexing events and skipped chunks.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithGate sets the readiness gate checked before embedding.
func WithGate(g Gate) IndexerOption {
	return func(idx *Indexer) { idx.gate = g }
}

// WithMetaStore sets the store that receives per-document stats and index metadata.
func WithMetaStore(m storage.MetaStore) IndexerOption {
	return func(idx *Indexer) { idx.meta = m }
}

// WithDebounce sets how long Run waits for a document to settle before re-indexing it.
func WithDebounce(d time.Duration) IndexerOption {
	return func(idx *Indexer) { idx.debounce = d }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store *vector.Store,
	embedder embedding.Embedder,
	source Source,
	cfg *config.ChunkingConfig,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:    store,
		embedder: embedder,
		source:   source,
		chunker:  NewChunkerFromConfig(cfg),
		debounce: time.Second,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// State returns the current rebuild state.
func (idx *Indexer) State() State {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.state
}

// Progress returns the progress of the running (or last) full rebuild.
func (idx *Indexer) Progress() models.Progress {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.progress
}

// LastRun returns the summary of the last finished full rebuild, or nil.
func (idx *Indexer) LastRun() *models.RunSummary {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastRun
}

// Cancel asks a running full rebuild to stop at its next checkpoint.
// It returns false when no rebuild is running.
func (idx *Indexer) Cancel() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.state != StateIndexing {
		return idx.state == StateCancelling
	}
	idx.state = StateCancelling
	idx.cancelReq = true
	if idx.logger != nil {
		idx.logger.Info("indexer cancel requested", zap.String("run_id", idx.progress.RunID))
	}
	return true
}

func (idx *Indexer) canceled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.cancelReq
}

// begin takes writeMu so a rebuild never starts while an incremental update is writing.
func (idx *Indexer) begin(runID string) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.state != StateIdle {
		return ErrIndexingInProgress
	}
	idx.state = StateIndexing
	idx.cancelReq = false
	idx.progress = models.Progress{RunID: runID}
	return nil
}

func (idx *Indexer) finish(summary *models.RunSummary) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.state = StateIdle
	idx.cancelReq = false
	if summary != nil {
		idx.lastRun = summary
	}
}

func (idx *Indexer) ready(ctx context.Context, force bool) error {
	if idx.gate == nil {
		return nil
	}
	ok, err := idx.gate.EnsureReady(ctx, force)
	if ok {
		return nil
	}
	if err == nil {
		return ErrNotReady
	}
	return fmt.Errorf("%w: %w", ErrNotReady, err)
}

// RebuildVault lists every document in the source and runs IndexFullVault over them.
func (idx *Indexer) RebuildVault(ctx context.Context, progress ProgressFunc) (*models.RunSummary, error) {
	if idx.State() != StateIdle {
		return nil, ErrIndexingInProgress
	}
	paths, err := idx.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return idx.IndexFullVault(ctx, paths, progress)
}

// IndexFullVault re-indexes every document in paths, in order, and replaces the store
// with the result. Records are built apart from the live store, so a canceled run
// leaves the persisted index untouched and reloads it.
func (idx *Indexer) IndexFullVault(ctx context.Context, paths []string, progress ProgressFunc) (*models.RunSummary, error) {
	runID := uuid.New().String()
	if err := idx.begin(runID); err != nil {
		return nil, err
	}
	summary := &models.RunSummary{
		RunID:          runID,
		StartedAt:      time.Now(),
		TotalDocuments: len(paths),
	}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
		idx.finish(summary)
	}()

	if err := idx.ready(ctx, true); err != nil {
		return summary, err
	}
	if idx.logger != nil {
		idx.logger.Info("indexer full rebuild started", zap.String("run_id", runID), zap.Int("documents", len(paths)))
	}

	var records []*models.ChunkRecord
	stats := make([]*models.DocumentStat, 0, len(paths))
	for _, p := range paths {
		if idx.canceled(ctx) {
			return summary, idx.abort(summary)
		}
		docPath := fileid.Normalize(p)
		recs, skipped, err := idx.buildDocument(ctx, docPath, true)
		switch {
		case errors.Is(err, ErrCanceled):
			return summary, idx.abort(summary)
		case err != nil:
			summary.FailedDocuments = append(summary.FailedDocuments, docPath)
			if idx.logger != nil {
				idx.logger.Warn("indexer failed to index document", zap.String("path", docPath), zap.Error(err))
			}
		default:
			records = append(records, recs...)
			stats = append(stats, &models.DocumentStat{
				Path:          docPath,
				ChunkCount:    len(recs),
				SkippedChunks: skipped,
				IndexedAt:     time.Now(),
			})
			summary.Chunks += len(recs)
			summary.SkippedChunks += skipped
		}
		summary.Processed++
		idx.report(summary, docPath, progress)
	}

	if idx.canceled(ctx) {
		return summary, idx.abort(summary)
	}
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	idx.store.ReplaceAll(records)
	if err := idx.store.Save(); err != nil {
		if idx.logger != nil {
			idx.logger.Error("indexer failed to persist index", zap.Error(err))
		}
		return summary, fmt.Errorf("persist index: %w", err)
	}
	if idx.meta != nil {
		if err := idx.meta.ReplaceDocuments(ctx, stats); err != nil && idx.logger != nil {
			idx.logger.Warn("indexer failed to store document stats", zap.Error(err))
		}
	}
	idx.updateMetadata(ctx)

	if idx.logger != nil {
		idx.logger.Info("indexer full rebuild finished",
			zap.String("run_id", runID),
			zap.Int("documents", summary.Processed),
			zap.Int("chunks", summary.Chunks),
			zap.Int("skipped_chunks", summary.SkippedChunks),
			zap.Int("failed_documents", len(summary.FailedDocuments)),
		)
	}
	return summary, nil
}

// abort discards the partial run and reloads the persisted index.
func (idx *Indexer) abort(summary *models.RunSummary) error {
	summary.Canceled = true
	idx.writeMu.Lock()
	n := idx.store.Load()
	idx.writeMu.Unlock()
	if idx.logger != nil {
		idx.logger.Info("indexer full rebuild canceled",
			zap.String("run_id", summary.RunID),
			zap.Int("processed", summary.Processed),
			zap.Int("restored_records", n),
		)
	}
	return ErrCanceled
}

func (idx *Indexer) report(summary *models.RunSummary, current string, progress ProgressFunc) {
	p := models.Progress{
		RunID:     summary.RunID,
		Processed: summary.Processed,
		Total:     summary.TotalDocuments,
		Current:   current,
	}
	if p.Total > 0 {
		p.Percent = float64(p.Processed) / float64(p.Total) * 100
	}
	idx.mu.Lock()
	idx.progress = p
	idx.mu.Unlock()
	if progress != nil {
		progress(p)
	}
}

// buildDocument reads, chunks and embeds one document. Chunks whose embedding fails are
// skipped and counted. A read failure aborts the document. When checkCancel is set, the
// rebuild's cancel flag is checked between chunks.
func (idx *Indexer) buildDocument(ctx context.Context, docPath string, checkCancel bool) ([]*models.ChunkRecord, int, error) {
	text, err := idx.source.Read(docPath)
	if err != nil {
		return nil, 0, fmt.Errorf("read document: %w", err)
	}
	chunks := idx.chunker.Chunk(Preprocess(text))
	name := strings.TrimSuffix(path.Base(docPath), path.Ext(docPath))

	var records []*models.ChunkRecord
	skipped := 0
	for i, ch := range chunks {
		if checkCancel && idx.canceled(ctx) {
			return nil, 0, ErrCanceled
		}
		if strings.TrimSpace(ch.Text) == "" {
			continue
		}
		vec, err := idx.embedder.Embed(ctx, ch.Text)
		if err != nil {
			skipped++
			if idx.logger != nil {
				idx.logger.Warn("indexer skipping chunk",
					zap.String("path", docPath),
					zap.Int("chunk_index", i),
					zap.Error(err),
				)
			}
			continue
		}
		records = append(records, &models.ChunkRecord{
			DocumentPath: docPath,
			ChunkIndex:   i,
			Embedding:    vec,
			Title:        chunkTitle(name, i, len(chunks)),
			StartLine:    ch.StartLine,
			EndLine:      ch.EndLine,
			Content:      ch.Text,
			StartOffset:  ch.Start,
			EndOffset:    ch.End,
		})
	}
	return records, skipped, nil
}

func chunkTitle(name string, i, n int) string {
	if n <= 1 {
		return name
	}
	return fmt.Sprintf("%s (%d/%d)", name, i+1, n)
}

// IndexDocument re-indexes one document: its old records are replaced by the new chunks
// and the store is persisted. The readiness check does not force a recheck, so a known
// unavailable service fails fast. It returns ErrIndexingInProgress while a full rebuild runs.
func (idx *Indexer) IndexDocument(ctx context.Context, docPath string) error {
	docPath = fileid.Normalize(docPath)
	if err := idx.ready(ctx, false); err != nil {
		if idx.logger != nil {
			idx.logger.Debug("indexer skipping document, service not ready", zap.String("path", docPath), zap.Error(err))
		}
		return err
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	if idx.State() != StateIdle {
		return ErrIndexingInProgress
	}

	recs, skipped, err := idx.buildDocument(ctx, docPath, false)
	if err != nil {
		if idx.logger != nil {
			idx.logger.Warn("indexer failed to index document", zap.String("path", docPath), zap.Error(err))
		}
		return err
	}
	idx.store.ReplaceDocument(docPath, recs)
	if err := idx.persist(ctx); err != nil {
		return err
	}
	if idx.meta != nil {
		stat := &models.DocumentStat{Path: docPath, ChunkCount: len(recs), SkippedChunks: skipped, IndexedAt: time.Now()}
		if err := idx.meta.UpsertDocument(ctx, stat); err != nil && idx.logger != nil {
			idx.logger.Warn("indexer failed to store document stats", zap.String("path", docPath), zap.Error(err))
		}
	}
	idx.updateMetadata(ctx)
	if idx.logger != nil {
		idx.logger.Debug("indexer document indexed", zap.String("path", docPath), zap.Int("chunks", len(recs)), zap.Int("skipped", skipped))
	}
	return nil
}

// RemoveDocument deletes every record of a document and persists the change.
// It returns ErrIndexingInProgress while a full rebuild runs.
func (idx *Indexer) RemoveDocument(ctx context.Context, docPath string) error {
	docPath = fileid.Normalize(docPath)
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	if idx.State() != StateIdle {
		return ErrIndexingInProgress
	}
	return idx.removeLocked(ctx, docPath)
}

func (idx *Indexer) removeLocked(ctx context.Context, docPath string) error {
	n := idx.store.RemoveDocument(docPath)
	if idx.logger != nil {
		idx.logger.Debug("indexer document removed", zap.String("path", docPath), zap.Int("records", n))
	}
	if err := idx.persist(ctx); err != nil {
		return err
	}
	if idx.meta != nil {
		if err := idx.meta.DeleteDocument(ctx, docPath); err != nil && idx.logger != nil {
			idx.logger.Warn("indexer failed to delete document stats", zap.String("path", docPath), zap.Error(err))
		}
	}
	idx.updateMetadata(ctx)
	return nil
}

// RenameDocument drops the records of oldPath and indexes newPath.
func (idx *Indexer) RenameDocument(ctx context.Context, oldPath, newPath string) error {
	if err := idx.RemoveDocument(ctx, oldPath); err != nil {
		return err
	}
	return idx.IndexDocument(ctx, newPath)
}

// Clear empties the store, deletes its file and resets the metadata.
func (idx *Indexer) Clear(ctx context.Context) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	if idx.State() != StateIdle {
		return ErrIndexingInProgress
	}
	if err := idx.store.Clear(); err != nil {
		return err
	}
	if idx.meta != nil {
		if err := idx.meta.Clear(ctx); err != nil {
			return fmt.Errorf("clear metadata: %w", err)
		}
	}
	if idx.logger != nil {
		idx.logger.Info("indexer index cleared")
	}
	return nil
}

// persist saves the store. On failure the in-memory state is kept so the next save retries it.
func (idx *Indexer) persist(ctx context.Context) error {
	if err := idx.store.Save(); err != nil {
		if idx.logger != nil {
			idx.logger.Error("indexer failed to persist index", zap.Error(err))
		}
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

func (idx *Indexer) updateMetadata(ctx context.Context) {
	if idx.meta == nil {
		return
	}
	meta := &models.IndexMetadata{
		LastIndexedAt: time.Now(),
		ChunkCount:    idx.store.Len(),
		DocumentCount: idx.store.DocumentCount(),
		Model:         idx.embedder.Model(),
	}
	if dims := idx.store.Dimensions(); len(dims) > 0 {
		meta.Dimensions = dims[len(dims)-1]
	}
	if err := idx.meta.SetIndexMetadata(ctx, meta); err != nil && idx.logger != nil {
		idx.logger.Warn("indexer failed to store index metadata", zap.Error(err))
	}
}
