// Package search implements the retrieval pipeline: query
// canonicalization, synonym expansion, parallel BM25 and vector
// retrieval, score fusion, role filtering, and truncation.
package search

import (
	"time"
)

// NoResultAnswer is returned when no visible result exists.
const NoResultAnswer = "لم يتم العثور على نتيجة ذات صلة مع الاستشهاد."

// DefaultSnippetLength caps result snippets, in runes.
const DefaultSnippetLength = 400

// Options are per-request retrieval overrides. Zero values fall back to
// the engine configuration.
type Options struct {
	// TopK is the number of results to return after filtering.
	TopK int
	// BM25K and VecK size the per-modality candidate pools.
	BM25K int
	VecK  int
	// Alpha overrides the fusion weight; nil keeps the configured one.
	Alpha *float64
}

// Item is one visible search result.
type Item struct {
	ChunkID    string  `json:"chunk_id"`
	DocName    string  `json:"doc_name"`
	ArticleRef string  `json:"article_ref,omitempty"`
	Pages      []int   `json:"pages,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// Result is the outcome of one retrieval request.
type Result struct {
	// Items are the visible results, best first, at most top_k.
	Items []*Item `json:"items"`
	// HiddenCount is how many fused candidates the role filter removed
	// before truncation.
	HiddenCount int `json:"hidden_count"`
	// Answer is the top visible snippet, or NoResultAnswer.
	Answer string `json:"answer"`
	// Degraded is set when the vector modality was skipped because the
	// embedding provider failed and fallback is enabled.
	Degraded bool `json:"degraded,omitempty"`
	// RequestID correlates with engine logs.
	RequestID string `json:"request_id"`
	// Took is the total retrieval time.
	Took time.Duration `json:"-"`
}

// EngineConfig tunes the retrieval engine.
type EngineConfig struct {
	// DefaultTopK is used when a request does not override top_k.
	DefaultTopK int
	// MaxTopK bounds per-request top_k overrides.
	MaxTopK int
	// DefaultBM25K and DefaultVecK size the candidate pools.
	DefaultBM25K int
	DefaultVecK  int
	// Alpha is the vector weight in fusion.
	Alpha float64
	// EmbedTimeout bounds query-time embedding.
	EmbedTimeout time.Duration
	// EmbedFallback serves BM25-only results when embedding fails.
	EmbedFallback bool
	// SnippetLength caps snippets in runes.
	SnippetLength int
}

// DefaultEngineConfig returns the standard engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK:   5,
		MaxTopK:       50,
		DefaultBM25K:  50,
		DefaultVecK:   50,
		Alpha:         0.5,
		EmbedTimeout:  10 * time.Second,
		EmbedFallback: true,
		SnippetLength: DefaultSnippetLength,
	}
}
