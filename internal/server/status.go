package server

import (
	"context"
	"errors"

	"github.com/hyperjump/notevec/internal/config"
	"github.com/hyperjump/notevec/internal/indexer"
	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/storage"
	"github.com/hyperjump/notevec/internal/vector"
)

// BuildStatus collects index, indexer and service state. idx, meta, gate and cfg may be nil.
func BuildStatus(
	ctx context.Context,
	store *vector.Store,
	idx *indexer.Indexer,
	meta storage.MetaStore,
	gate ReadinessReporter,
	cfg *config.Config,
) (*models.Status, error) {
	status := &models.Status{
		Documents:    store.DocumentCount(),
		Chunks:       store.Len(),
		Dimensions:   store.Dimensions(),
		IndexerState: indexer.StateIdle.String(),
	}
	if saved := store.LastSavedAt(); !saved.IsZero() {
		status.LastSavedAt = &saved
	}

	if idx != nil {
		state := idx.State()
		status.IndexerState = state.String()
		if state != indexer.StateIdle {
			p := idx.Progress()
			status.Progress = &p
		}
		status.LastRun = idx.LastRun()
	}

	if meta != nil {
		m, err := meta.GetIndexMetadata(ctx)
		switch {
		case err == nil:
			status.Index = m
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, err
		}
	}

	if gate != nil {
		state, reason := gate.State()
		svc := &models.ServiceStatus{State: state.String()}
		if reason != nil {
			svc.Reason = reason.Error()
		}
		status.EmbeddingService = svc
	}

	if cfg != nil {
		status.Config = &models.StatusConfig{
			ServiceURL:     cfg.Embedding.ServiceURL,
			ModelName:      cfg.Embedding.ModelName,
			Threshold:      cfg.Search.Threshold,
			MaxResults:     cfg.Search.MaxResults,
			DebounceMs:     cfg.Search.DebounceMs,
			ChunkSize:      cfg.Chunking.Size(),
			ChunkOverlap:   cfg.Chunking.ChunkOverlap,
			ChunkStrategy:  cfg.Chunking.Strategy,
			VaultDirectory: cfg.Vault.Directory,
			IndexPath:      cfg.Storage.IndexPath,
			DatabasePath:   cfg.Storage.DatabasePath,
		}
		if diskBytes, err := storage.IndexDiskUsage(cfg.Storage.IndexPath, cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
		// settings applied at runtime live on the gate, not in the loaded config
		if ep, ok := gate.(interface{ Endpoint() (string, string) }); ok {
			status.Config.ServiceURL, status.Config.ModelName = ep.Endpoint()
		}
	}
	return status, nil
}
