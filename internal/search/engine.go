package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/qanoon-search/qanoon/internal/access"
	"github.com/qanoon-search/qanoon/internal/embed"
	"github.com/qanoon-search/qanoon/internal/normalize"
	"github.com/qanoon-search/qanoon/internal/qerrors"
	"github.com/qanoon-search/qanoon/internal/store"
)

// Engine runs the retrieval pipeline against the current snapshot:
// canonicalize the query, expand lexical synonyms, retrieve both
// modalities in parallel, fuse, filter by role, truncate.
type Engine struct {
	snapshots *store.SnapshotHolder
	embedder  embed.Embedder
	glossary  *Glossary
	filter    *access.Filter
	config    EngineConfig
	logger    *slog.Logger
}

// NewEngine wires the retrieval engine. The snapshot holder and filter
// are required; a nil embedder disables the vector modality (BM25-only
// results, marked degraded). A nil glossary disables synonym expansion.
func NewEngine(snapshots *store.SnapshotHolder, embedder embed.Embedder, glossary *Glossary, filter *access.Filter, config EngineConfig, logger *slog.Logger) (*Engine, error) {
	if snapshots == nil {
		return nil, qerrors.InternalError("snapshot holder is required", nil)
	}
	if filter == nil {
		return nil, qerrors.InternalError("access filter is required", nil)
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = DefaultEngineConfig().DefaultTopK
	}
	if config.MaxTopK <= 0 {
		config.MaxTopK = DefaultEngineConfig().MaxTopK
	}
	if config.DefaultBM25K <= 0 {
		config.DefaultBM25K = DefaultEngineConfig().DefaultBM25K
	}
	if config.DefaultVecK <= 0 {
		config.DefaultVecK = DefaultEngineConfig().DefaultVecK
	}
	if config.SnippetLength <= 0 {
		config.SnippetLength = DefaultSnippetLength
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = DefaultEngineConfig().EmbedTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		snapshots: snapshots,
		embedder:  embedder,
		glossary:  glossary,
		filter:    filter,
		config:    config,
		logger:    logger,
	}, nil
}

// resolved request parameters after defaulting and validation.
type requestParams struct {
	topK  int
	bm25K int
	vecK  int
	alpha float64
}

func (e *Engine) resolveOptions(opts Options) (requestParams, error) {
	p := requestParams{
		topK:  e.config.DefaultTopK,
		bm25K: e.config.DefaultBM25K,
		vecK:  e.config.DefaultVecK,
		alpha: e.config.Alpha,
	}

	if opts.TopK < 0 {
		return p, qerrors.New(qerrors.ErrCodeInvalidParameter,
			fmt.Sprintf("top_k must be positive, got %d", opts.TopK), nil)
	}
	if opts.TopK > 0 {
		p.topK = opts.TopK
	}
	if p.topK > e.config.MaxTopK {
		p.topK = e.config.MaxTopK
	}

	if opts.BM25K < 0 || opts.VecK < 0 {
		return p, qerrors.New(qerrors.ErrCodeInvalidParameter,
			"candidate pool sizes must be positive", nil)
	}
	if opts.BM25K > 0 {
		p.bm25K = opts.BM25K
	}
	if opts.VecK > 0 {
		p.vecK = opts.VecK
	}

	if opts.Alpha != nil {
		a := *opts.Alpha
		if a < 0 || a > 1 {
			return p, qerrors.New(qerrors.ErrCodeInvalidParameter,
				fmt.Sprintf("alpha must be in [0,1], got %g", a), nil)
		}
		p.alpha = a
	}

	return p, nil
}

// Retrieve runs one search request for a caller holding the given
// roles. The returned items are the top_k best fused candidates the
// caller may see; HiddenCount reports how many fused candidates the
// role filter removed before truncation.
func (e *Engine) Retrieve(ctx context.Context, query string, roles []access.Role, opts Options) (*Result, error) {
	started := time.Now()
	requestID := uuid.New().String()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, qerrors.New(qerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	effective := e.filter.Effective(roles)
	if len(effective) == 0 {
		return nil, qerrors.New(qerrors.ErrCodeNoRoles,
			"caller holds no recognized roles", nil).
			WithSuggestion("grant at least one of: admin, legal, staff")
	}

	snap := e.snapshots.Load()
	if snap == nil {
		return nil, qerrors.New(qerrors.ErrCodeIndexUnavailable,
			"no index snapshot is loaded", nil).
			WithSuggestion("run the index command, then retry")
	}

	params, err := e.resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	tokens := normalize.Tokens(query)
	if len(tokens) == 0 {
		return nil, qerrors.New(qerrors.ErrCodeInvalidQuery,
			"query contains no searchable terms", nil)
	}
	lexTokens := e.glossary.Expand(tokens)

	e.logger.Debug("search_started",
		"request_id", requestID,
		"tokens", len(tokens),
		"expanded_tokens", len(lexTokens),
		"top_k", params.topK,
		"alpha", params.alpha,
	)

	var (
		bm25Hits []*store.BM25Result
		vecHits  []*store.VectorResult
		degraded bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := snap.BM25.Search(gctx, lexTokens, params.bm25K)
		if err != nil {
			return qerrors.New(qerrors.ErrCodeSearchFailed, "lexical retrieval failed", err)
		}
		bm25Hits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.vectorSearch(gctx, snap, query, params.vecK)
		if err != nil {
			if e.config.EmbedFallback && qerrors.IsCategory(err, qerrors.CategoryEmbedding) {
				e.logger.Warn("embed_fallback",
					"request_id", requestID,
					"error", err,
				)
				degraded = true
				return nil
			}
			return err
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := NewFuser(params.alpha).Fuse(bm25Hits, vecHits)

	// Resolve metadata for the full fused pool so the hidden count is
	// exact, then partition before truncating.
	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.ChunkID
	}
	chunks, err := snap.Meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeSearchFailed, "metadata lookup failed", err)
	}

	visible := make([]*Candidate, 0, len(fused))
	hidden := 0
	for _, c := range fused {
		chunk, ok := chunks[c.ChunkID]
		if !ok {
			// Index and metadata generations disagree; treat as hidden
			// rather than surfacing a chunk we cannot attribute.
			hidden++
			continue
		}
		if e.filter.Visible(chunk.RequiredRoles, effective) {
			visible = append(visible, c)
		} else {
			hidden++
		}
	}

	if len(visible) > params.topK {
		visible = visible[:params.topK]
	}

	items := make([]*Item, 0, len(visible))
	for _, c := range visible {
		chunk := chunks[c.ChunkID]
		items = append(items, &Item{
			ChunkID:    chunk.ID,
			DocName:    chunk.DocName,
			ArticleRef: chunk.ArticleRef,
			Pages:      chunk.Pages,
			Snippet:    e.snippet(chunk.Text),
			Score:      c.Fused,
		})
	}

	answer := NoResultAnswer
	if len(items) > 0 {
		answer = items[0].Snippet
	}

	took := time.Since(started)
	e.logger.Info("search_complete",
		"request_id", requestID,
		"results", len(items),
		"hidden", hidden,
		"degraded", degraded,
		"took_ms", took.Milliseconds(),
	)

	return &Result{
		Items:       items,
		HiddenCount: hidden,
		Answer:      answer,
		Degraded:    degraded,
		RequestID:   requestID,
		Took:        took,
	}, nil
}

// vectorSearch embeds the raw query under the embed timeout and runs
// the ANN search. Synonym expansion is lexical-only; the embedder sees
// the query as typed.
func (e *Engine) vectorSearch(ctx context.Context, snap *store.Snapshot, query string, k int) ([]*store.VectorResult, error) {
	if e.embedder == nil {
		return nil, qerrors.New(qerrors.ErrCodeEmbedUnavailable, "no embedding provider configured", nil)
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.config.EmbedTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(embedCtx, query)
	if err != nil {
		if !qerrors.IsCategory(err, qerrors.CategoryEmbedding) {
			err = qerrors.New(qerrors.ErrCodeEmbedFailed, "query embedding failed", err)
		}
		return nil, err
	}
	if len(vec) != snap.Dimensions {
		return nil, qerrors.New(qerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedder width %d does not match index width %d", len(vec), snap.Dimensions), nil).
			WithSuggestion("rebuild the index with the current embedding model")
	}

	hits, err := snap.Vector.Search(ctx, vec, k)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeSearchFailed, "vector retrieval failed", err)
	}
	return hits, nil
}

// snippet folds newlines and truncates to the configured rune length.
func (e *Engine) snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= e.config.SnippetLength {
		return text
	}
	return string(runes[:e.config.SnippetLength]) + "…"
}
