// Package embed provides embedding providers for the vector retrieval
// path: an Ollama HTTP provider, a deterministic offline provider, and
// an LRU-cached wrapper. The same provider must serve index build and
// query time; the build records its model and width so mismatches are
// caught at snapshot load.
package embed

import (
	"context"
	"math"
	"time"
)

// Defaults shared by providers.
const (
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3

	// DefaultStaticDimensions is the width of the offline hash embedder.
	DefaultStaticDimensions = 256
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier recorded in build state.
	ModelName() string

	// Available reports whether the provider can serve requests now.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length in place. Zero vectors stay
// zero.
func normalizeVector(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
