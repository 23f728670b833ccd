// Package storage defines persistence for index bookkeeping (per-document stats and index metadata).
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/notevec/internal/models"
)

// ErrNotFound is returned when a document has no stats.
var ErrNotFound = errors.New("not found")

// MetaStore persists per-document stats and index-level metadata.
type MetaStore interface {
	// Document operations
	UpsertDocument(ctx context.Context, stat *models.DocumentStat) error
	GetDocument(ctx context.Context, path string) (*models.DocumentStat, error)
	DeleteDocument(ctx context.Context, path string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentStat, error)

	// Batch operations
	ReplaceDocuments(ctx context.Context, stats []*models.DocumentStat) error

	// Index metadata
	GetIndexMetadata(ctx context.Context) (*models.IndexMetadata, error)
	SetIndexMetadata(ctx context.Context, meta *models.IndexMetadata) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)

	Clear(ctx context.Context) error
	Close() error
}
