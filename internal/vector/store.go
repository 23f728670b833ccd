package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/notevec/internal/models"
	"go.uber.org/zap"
)

// Store is the in-memory set of chunk records keyed by documentPath#chunkIndex,
// persisted as a JSON array at path.
type Store struct {
	path   string
	logger *zap.Logger

	mu          sync.RWMutex
	records     map[string]*models.ChunkRecord
	lastSavedAt time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets a logger for load and save problems.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store backed by the JSON file at path. Call Load to read it.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:    path,
		records: make(map[string]*models.ChunkRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// persistedRecord mirrors ChunkRecord but accepts any JSON value for chunkIndex,
// since older files may hold strings or nulls there.
type persistedRecord struct {
	DocumentPath string      `json:"documentPath"`
	ChunkIndex   interface{} `json:"chunkIndex"`
	Embedding    []float32   `json:"embedding"`
	Title        string      `json:"title"`
	StartLine    int         `json:"startLine"`
	EndLine      int         `json:"endLine"`
	Content      string      `json:"content"`
	StartOffset  int         `json:"startOffset"`
	EndOffset    int         `json:"endOffset"`
}

// Load replaces the in-memory records with the persisted ones and returns how many were loaded.
// A missing or malformed file yields an empty store; Load never fails.
func (s *Store) Load() int {
	records := s.readFile()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	return len(records)
}

func (s *Store) readFile() map[string]*models.ChunkRecord {
	records := make(map[string]*models.ChunkRecord)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read index file, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return records
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Error("index file is malformed, starting empty", zap.String("path", s.path), zap.Error(err))
		return records
	}

	for i, raw := range items {
		var p persistedRecord
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Warn("dropping unreadable record", zap.Int("position", i), zap.Error(err))
			continue
		}
		rec := &models.ChunkRecord{
			DocumentPath: p.DocumentPath,
			ChunkIndex:   chunkIndexOr(p.ChunkIndex, i),
			Embedding:    p.Embedding,
			Title:        p.Title,
			StartLine:    p.StartLine,
			EndLine:      p.EndLine,
			Content:      p.Content,
			StartOffset:  p.StartOffset,
			EndOffset:    p.EndOffset,
		}
		if !rec.Valid() {
			s.logger.Warn("dropping invalid record", zap.Int("position", i), zap.String("document", p.DocumentPath))
			continue
		}
		records[rec.Key()] = rec
	}
	return records
}

// chunkIndexOr returns v when it is a non-negative integer, otherwise fallback.
func chunkIndexOr(v interface{}, fallback int) int {
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return fallback
	}
	return int(f)
}

// Save writes every record to the backing file, replacing it atomically.
func (s *Store) Save() error {
	records := s.Records()
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	s.mu.Lock()
	s.lastSavedAt = time.Now()
	s.mu.Unlock()
	s.logger.Debug("index saved", zap.String("path", s.path), zap.Int("records", len(records)))
	return nil
}

// Records returns a snapshot ordered by document path, then chunk index.
func (s *Store) Records() []*models.ChunkRecord {
	s.mu.RLock()
	out := make([]*models.ChunkRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sortRecords(out)
	return out
}

// DocumentRecords returns the records of one document in chunk order.
func (s *Store) DocumentRecords(path string) []*models.ChunkRecord {
	s.mu.RLock()
	var out []*models.ChunkRecord
	for _, r := range s.records {
		if r.DocumentPath == path {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sortRecords(out)
	return out
}

func sortRecords(recs []*models.ChunkRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DocumentPath != recs[j].DocumentPath {
			return recs[i].DocumentPath < recs[j].DocumentPath
		}
		return recs[i].ChunkIndex < recs[j].ChunkIndex
	})
}

// ReplaceDocument removes every record for path and inserts recs.
func (s *Store) ReplaceDocument(path string, recs []*models.ChunkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(path)
	for _, r := range recs {
		s.records[r.Key()] = r
	}
}

// ReplaceAll swaps the whole record set.
func (s *Store) ReplaceAll(recs []*models.ChunkRecord) {
	next := make(map[string]*models.ChunkRecord, len(recs))
	for _, r := range recs {
		next[r.Key()] = r
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
}

// RemoveDocument deletes every record for path and returns how many were removed.
func (s *Store) RemoveDocument(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(path)
}

func (s *Store) removeLocked(path string) int {
	n := 0
	for key, r := range s.records {
		if r.DocumentPath == path {
			delete(s.records, key)
			n++
		}
	}
	return n
}

// Clear empties the store and deletes the backing file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.records = make(map[string]*models.ChunkRecord)
	s.lastSavedAt = time.Time{}
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove index file: %w", err)
	}
	return nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// DocumentCount returns the number of distinct documents.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]struct{})
	for _, r := range s.records {
		docs[r.DocumentPath] = struct{}{}
	}
	return len(docs)
}

// Dimensions returns the distinct embedding lengths in ascending order.
// More than one value means the store mixes models.
func (s *Store) Dimensions() []int {
	s.mu.RLock()
	seen := make(map[int]struct{})
	for _, r := range s.records {
		seen[len(r.Embedding)] = struct{}{}
	}
	s.mu.RUnlock()
	dims := make([]int, 0, len(seen))
	for d := range seen {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	return dims
}

// LastSavedAt returns when the store was last persisted by this process.
func (s *Store) LastSavedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSavedAt
}
