// Package store provides the persistent retrieval stores: BM25 lexical
// indexes, ANN vector stores, and the SQLite chunk metadata store, plus
// the immutable snapshot that bundles one consistent generation of all
// three.
package store

import (
	"context"
	"fmt"

	"github.com/qanoon-search/qanoon/internal/access"
)

// Chunk is one retrievable unit of a source document, stored with the
// canonical text and the role tags derived at build time.
type Chunk struct {
	// ID is the stable chunk identifier, e.g. "labor_law::art12".
	ID string
	// DocName is the source document name, e.g. "labor_law.pdf".
	DocName string
	// ArticleRef is the article or section reference within the document.
	ArticleRef string
	// Pages are the source page numbers the chunk spans.
	Pages []int
	// Text is the original chunk text shown to readers.
	Text string
	// NormText is the canonical form indexed by both modalities.
	NormText string
	// RequiredRoles are the role tags a reader must intersect with.
	RequiredRoles []access.Role
}

// Document is the unit fed to a BM25 index: canonical text plus its
// token sequence. The memory backend consumes Tokens directly; the bleve
// backend re-derives them from NormText through its analyzer. Both paths
// go through the same normalizer, so they agree.
type Document struct {
	ID       string
	NormText string
	Tokens   []string
}

// BM25Result is one lexical hit.
type BM25Result struct {
	ChunkID string
	Score   float64
}

// VectorResult is one semantic hit. Score is cosine similarity.
type VectorResult struct {
	ChunkID string
	Score   float64
}

// BM25Config holds the Okapi BM25 parameters.
type BM25Config struct {
	// K1 controls term frequency saturation.
	K1 float64
	// B controls document length normalization.
	B float64
}

// DefaultBM25Config returns the standard parameters.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

// VectorConfig holds ANN backend parameters.
type VectorConfig struct {
	// Dimensions is the embedding width.
	Dimensions int
	// M is the HNSW connectivity parameter.
	M int
	// EfSearch is the HNSW search beam width.
	EfSearch int
}

// DefaultVectorConfig returns HNSW defaults for the given width.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   48,
	}
}

// LexicalStats describes a BM25 index.
type LexicalStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index is the lexical retrieval backend. Search takes canonical
// query tokens (after synonym expansion) and returns up to limit hits
// sorted by score descending, ties broken by chunk ID ascending. No
// match is an empty slice, not an error.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, tokens []string, limit int) ([]*BM25Result, error)
	Stats() *LexicalStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorStore is the semantic retrieval backend. Vectors are normalized
// to unit length on insert and query; Score is cosine similarity. Hits
// come back sorted by score descending, ties broken by chunk ID
// ascending.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Count() int
	Dimensions() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// MetadataStore resolves chunk IDs to full chunks and holds build state
// such as the embedding model and width.
type MetadataStore interface {
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error)
	Counts(ctx context.Context) (chunks, documents int, err error)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	Close() error
}

// State keys stored in the metadata store.
const (
	StateEmbedderModel      = "embedder_model"
	StateEmbedderDimensions = "embedder_dimensions"
	StateBuiltAt            = "built_at"
)

// ErrDimensionMismatch is returned when a vector's width does not match
// the store's configured width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
