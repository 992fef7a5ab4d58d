package embed

import (
	"context"
	"hash/fnv"

	"github.com/qanoon-search/qanoon/internal/normalize"
)

// StaticEmbedder is a deterministic hash-based embedder for offline use
// and tests. It hashes canonical tokens and character trigrams into a
// fixed-width vector, so texts sharing vocabulary land near each other
// while needing no model or network. Not a semantic model; deployments
// wanting real semantics configure the Ollama provider.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the given width.
// Non-positive widths fall back to the default.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultStaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes the text into a unit vector. Token hits weigh 1.0 and
// trigram hits 0.4, so whole-word overlap dominates but morphological
// similarity still registers.
func (s *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)

	for _, tok := range normalize.Tokens(text) {
		vec[hashString(tok)%uint32(s.dims)] += 1.0
	}

	runes := []rune(normalize.Text(text))
	for i := 0; i+3 <= len(runes); i++ {
		vec[hashString(string(runes[i:i+3]))%uint32(s.dims)] += 0.4
	}

	normalizeVector(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (s *StaticEmbedder) Dimensions() int {
	return s.dims
}

// ModelName returns the model identifier.
func (s *StaticEmbedder) ModelName() string {
	return "static-hash"
}

// Available always reports true; there is nothing to reach.
func (s *StaticEmbedder) Available(context.Context) bool {
	return true
}

// Close is a no-op.
func (s *StaticEmbedder) Close() error {
	return nil
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
