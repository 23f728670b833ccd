package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/notevec/internal/models"
)

// Index metadata keys in the meta table.
const (
	metaLastIndexedAt = "last_indexed_at"
	metaChunkCount    = "chunk_count"
	metaDocumentCount = "document_count"
	metaModel         = "model"
	metaDimensions    = "dimensions"
)

// SQLiteStorage implements MetaStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		chunk_count INTEGER NOT NULL,
		skipped_chunks INTEGER NOT NULL DEFAULT 0,
		indexed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_indexed_at ON documents(indexed_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

const upsertDocumentSQL = `INSERT INTO documents (path, chunk_count, skipped_chunks, indexed_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		chunk_count = excluded.chunk_count,
		skipped_chunks = excluded.skipped_chunks,
		indexed_at = excluded.indexed_at`

// UpsertDocument inserts or replaces the stats for one document.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, stat *models.DocumentStat) error {
	_, err := s.db.ExecContext(ctx, upsertDocumentSQL,
		stat.Path, stat.ChunkCount, stat.SkippedChunks, stat.IndexedAt.UTC(),
	)
	return err
}

// GetDocument returns the stats for path, or ErrNotFound.
func (s *SQLiteStorage) GetDocument(ctx context.Context, path string) (*models.DocumentStat, error) {
	var stat models.DocumentStat
	err := s.db.QueryRowContext(ctx,
		`SELECT path, chunk_count, skipped_chunks, indexed_at FROM documents WHERE path = ?`, path,
	).Scan(&stat.Path, &stat.ChunkCount, &stat.SkippedChunks, &stat.IndexedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// DeleteDocument removes the stats for path. Deleting a missing path is not an error.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path)
	return err
}

// ListDocuments returns document stats ordered by path.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, chunk_count, skipped_chunks, indexed_at FROM documents
		 ORDER BY path LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*models.DocumentStat
	for rows.Next() {
		var stat models.DocumentStat
		if err := rows.Scan(&stat.Path, &stat.ChunkCount, &stat.SkippedChunks, &stat.IndexedAt); err != nil {
			return nil, err
		}
		stats = append(stats, &stat)
	}
	return stats, rows.Err()
}

// ReplaceDocuments swaps all document stats in one transaction.
func (s *SQLiteStorage) ReplaceDocuments(ctx context.Context, stats []*models.DocumentStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, upsertDocumentSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, stat := range stats {
		if _, err := stmt.ExecContext(ctx, stat.Path, stat.ChunkCount, stat.SkippedChunks, stat.IndexedAt.UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetIndexMetadata returns the stored index metadata. Missing keys are left at zero values.
func (s *SQLiteStorage) GetIndexMetadata(ctx context.Context) (*models.IndexMetadata, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := &models.IndexMetadata{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case metaLastIndexedAt:
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				meta.LastIndexedAt = t
			}
		case metaChunkCount:
			meta.ChunkCount, _ = strconv.Atoi(value)
		case metaDocumentCount:
			meta.DocumentCount, _ = strconv.Atoi(value)
		case metaModel:
			meta.Model = value
		case metaDimensions:
			meta.Dimensions, _ = strconv.Atoi(value)
		}
	}
	return meta, rows.Err()
}

// SetIndexMetadata overwrites the stored index metadata.
func (s *SQLiteStorage) SetIndexMetadata(ctx context.Context, meta *models.IndexMetadata) error {
	values := map[string]string{
		metaLastIndexedAt: meta.LastIndexedAt.UTC().Format(time.RFC3339Nano),
		metaChunkCount:    strconv.Itoa(meta.ChunkCount),
		metaDocumentCount: strconv.Itoa(meta.DocumentCount),
		metaModel:         meta.Model,
		metaDimensions:    strconv.Itoa(meta.Dimensions),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountDocuments returns the number of documents with stats.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// Clear removes all document stats and metadata.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM meta")
	return err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
