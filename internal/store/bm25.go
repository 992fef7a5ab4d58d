package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MemoryBM25Index is an exact Okapi BM25 index over canonical tokens.
// It holds the full inverted index in memory and persists as a
// zstd-compressed gob file. It is the default lexical backend: corpora
// here are article-sized legal texts, small enough that exactness and
// deterministic scoring beat segment-file machinery.
type MemoryBM25Index struct {
	mu     sync.RWMutex
	config BM25Config

	docIDs   []string
	docLens  []int
	postings map[string]map[int]int // term -> doc ordinal -> term frequency
	totalLen int

	closed bool
}

// memoryBM25Payload is the persisted form.
type memoryBM25Payload struct {
	Config   BM25Config
	DocIDs   []string
	DocLens  []int
	Postings map[string]map[int]int
	TotalLen int
}

// NewMemoryBM25Index creates an empty index.
func NewMemoryBM25Index(config BM25Config) *MemoryBM25Index {
	if config.K1 <= 0 {
		config.K1 = DefaultBM25Config().K1
	}
	if config.B < 0 || config.B > 1 {
		config.B = DefaultBM25Config().B
	}
	return &MemoryBM25Index{
		config:   config,
		postings: make(map[string]map[int]int),
	}
}

// Index adds documents. Re-adding an existing ID appends a new posting
// entry; builds always start from an empty index, so this never happens
// in practice.
func (m *MemoryBM25Index) Index(_ context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	for _, doc := range docs {
		ord := len(m.docIDs)
		m.docIDs = append(m.docIDs, doc.ID)
		m.docLens = append(m.docLens, len(doc.Tokens))
		m.totalLen += len(doc.Tokens)

		for _, tok := range doc.Tokens {
			post, ok := m.postings[tok]
			if !ok {
				post = make(map[int]int)
				m.postings[tok] = post
			}
			post[ord]++
		}
	}

	return nil
}

// Search scores every document containing at least one query token and
// returns up to limit hits, score descending, chunk ID ascending on
// ties. Unknown tokens contribute nothing; an all-unknown query yields
// an empty slice.
func (m *MemoryBM25Index) Search(_ context.Context, tokens []string, limit int) ([]*BM25Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(tokens) == 0 || len(m.docIDs) == 0 || limit <= 0 {
		return []*BM25Result{}, nil
	}

	n := float64(len(m.docIDs))
	avgLen := float64(m.totalLen) / n
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[int]float64)
	for _, tok := range tokens {
		post, ok := m.postings[tok]
		if !ok {
			continue
		}
		df := float64(len(post))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for ord, tf := range post {
			tfF := float64(tf)
			denom := tfF + m.config.K1*(1-m.config.B+m.config.B*float64(m.docLens[ord])/avgLen)
			scores[ord] += idf * tfF * (m.config.K1 + 1) / denom
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for ord, score := range scores {
		results = append(results, &BM25Result{ChunkID: m.docIDs[ord], Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats returns index statistics.
func (m *MemoryBM25Index) Stats() *LexicalStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || len(m.docIDs) == 0 {
		return &LexicalStats{}
	}
	return &LexicalStats{
		DocumentCount: len(m.docIDs),
		TermCount:     len(m.postings),
		AvgDocLength:  float64(m.totalLen) / float64(len(m.docIDs)),
	}
}

// Save writes the index atomically (temp file + rename) as
// zstd-compressed gob.
func (m *MemoryBM25Index) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	zw, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	payload := memoryBM25Payload{
		Config:   m.config,
		DocIDs:   m.docIDs,
		DocLens:  m.docLens,
		Postings: m.postings,
		TotalLen: m.totalLen,
	}

	if err := gob.NewEncoder(zw).Encode(payload); err != nil {
		zw.Close()
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := zw.Close(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush compressor: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

// Load replaces the index contents from a file written by Save.
func (m *MemoryBM25Index) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer zr.Close()

	var payload memoryBM25Payload
	if err := gob.NewDecoder(zr).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	m.config = payload.Config
	m.docIDs = payload.DocIDs
	m.docLens = payload.DocLens
	m.postings = payload.Postings
	m.totalLen = payload.TotalLen
	if m.postings == nil {
		m.postings = make(map[string]map[int]int)
	}
	return nil
}

// Close releases the index. Further calls fail.
func (m *MemoryBM25Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.postings = nil
	m.docIDs = nil
	m.docLens = nil
	return nil
}

var _ BM25Index = (*MemoryBM25Index)(nil)
