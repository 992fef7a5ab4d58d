package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FlatStore is an exact-scan VectorStore: every query computes cosine
// similarity against every stored vector. O(n) per query, but fully
// deterministic, which makes it the backend of choice for tests and for
// small corpora where HNSW's approximation buys nothing.
type FlatStore struct {
	mu     sync.RWMutex
	config VectorConfig

	ids     []string
	vectors [][]float32
	byID    map[string]int

	closed bool
}

// flatPayload is the persisted form.
type flatPayload struct {
	Config  VectorConfig
	IDs     []string
	Vectors [][]float32
}

// NewFlatStore creates an empty flat store.
func NewFlatStore(cfg VectorConfig) (*FlatStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	return &FlatStore{
		config: cfg,
		byID:   make(map[string]int),
	}, nil
}

// Add inserts vectors, normalizing each to unit length. Re-adding an
// existing ID replaces its vector.
func (s *FlatStore) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		if idx, exists := s.byID[id]; exists {
			s.vectors[idx] = vec
			continue
		}
		s.byID[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, vec)
	}

	return nil
}

// Search scans all vectors and returns the top k by cosine similarity,
// score descending with chunk ID ascending on ties.
func (s *FlatStore) Search(_ context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if len(s.ids) == 0 || k <= 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	results := make([]*VectorResult, 0, len(s.ids))
	for i, id := range s.ids {
		results = append(results, &VectorResult{
			ChunkID: id,
			Score:   dot(normalized, s.vectors[i]),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored vectors.
func (s *FlatStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.ids)
}

// Dimensions returns the configured embedding width.
func (s *FlatStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Dimensions
}

// Save writes the store atomically as zstd-compressed gob.
func (s *FlatStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create store file: %w", err)
	}

	zw, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	payload := flatPayload{Config: s.config, IDs: s.ids, Vectors: s.vectors}
	if err := gob.NewEncoder(zw).Encode(payload); err != nil {
		zw.Close()
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode store: %w", err)
	}

	if err := zw.Close(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush compressor: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename store file: %w", err)
	}
	return nil
}

// Load replaces the store contents from a file written by Save.
func (s *FlatStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open store file: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer zr.Close()

	var payload flatPayload
	if err := gob.NewDecoder(zr).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode store: %w", err)
	}

	s.config = payload.Config
	s.ids = payload.IDs
	s.vectors = payload.Vectors
	s.byID = make(map[string]int, len(payload.IDs))
	for i, id := range payload.IDs {
		s.byID[id] = i
	}
	return nil
}

// Close releases the store.
func (s *FlatStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.ids = nil
	s.vectors = nil
	s.byID = nil
	return nil
}

var _ VectorStore = (*FlatStore)(nil)

// dot computes the inner product; on unit vectors this is cosine
// similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
