// Package models defines core data structures for chunk records, indexing runs, and search results.
package models

import (
	"strconv"
	"time"
)

// ChunkRecord is one embedded unit of text. Its identity is DocumentPath#ChunkIndex.
type ChunkRecord struct {
	DocumentPath string    `json:"documentPath"`
	ChunkIndex   int       `json:"chunkIndex"`
	Embedding    []float32 `json:"embedding"`
	Title        string    `json:"title"`
	StartLine    int       `json:"startLine"`
	EndLine      int       `json:"endLine"`
	Content      string    `json:"content,omitempty"`
	StartOffset  int       `json:"startOffset"`
	EndOffset    int       `json:"endOffset"`
}

// Key returns the record's identity key.
func (r *ChunkRecord) Key() string {
	return RecordKey(r.DocumentPath, r.ChunkIndex)
}

// Valid reports whether the record can be stored and compared.
func (r *ChunkRecord) Valid() bool {
	return r.DocumentPath != "" && len(r.Embedding) > 0
}

// RecordKey builds the identity key for a document path and chunk index.
func RecordKey(documentPath string, chunkIndex int) string {
	return documentPath + "#" + strconv.Itoa(chunkIndex)
}

// IndexMetadata is observable state about the persisted index.
type IndexMetadata struct {
	LastIndexedAt time.Time `json:"last_indexed_at"`
	ChunkCount    int       `json:"chunk_count"`
	DocumentCount int       `json:"document_count"`
	Model         string    `json:"model,omitempty"`
	Dimensions    int       `json:"dimensions,omitempty"`
}

// DocumentStat is per-document index bookkeeping.
type DocumentStat struct {
	Path          string    `json:"path"`
	ChunkCount    int       `json:"chunk_count"`
	SkippedChunks int       `json:"skipped_chunks"`
	IndexedAt     time.Time `json:"indexed_at"`
}
