package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/qanoon-search/qanoon/internal/access"
	"github.com/qanoon-search/qanoon/internal/embed"
	"github.com/qanoon-search/qanoon/internal/normalize"
	"github.com/qanoon-search/qanoon/internal/qerrors"
	"github.com/qanoon-search/qanoon/internal/store"
)

// buildLockFile serializes index builds on a data directory.
const buildLockFile = ".build.lock"

// embedConcurrency bounds in-flight embedding batches during a build.
const embedConcurrency = 4

// BuilderConfig parameterizes an index build.
type BuilderConfig struct {
	// DataDir receives the built artifacts.
	DataDir string
	// CorpusPath is the JSONL chunk corpus.
	CorpusPath string
	// BM25Backend and VectorBackend select the store implementations.
	BM25Backend   string
	VectorBackend string
	// BM25 holds the lexical scoring parameters.
	BM25 store.BM25Config
	// RestrictedMarker restricts documents whose name contains it.
	RestrictedMarker string
	// BatchSize is the embedding batch size; 0 uses the provider default.
	BatchSize int
}

// BuildStats summarizes a completed build.
type BuildStats struct {
	Chunks     int
	Documents  int
	Dimensions int
	Model      string
	Took       time.Duration
}

// Builder turns a corpus into a retrieval generation.
type Builder struct {
	config   BuilderConfig
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewBuilder creates a builder. The embedder is required; its model and
// width are recorded in build state so query time can verify them.
func NewBuilder(cfg BuilderConfig, embedder embed.Embedder, logger *slog.Logger) (*Builder, error) {
	if cfg.DataDir == "" {
		return nil, qerrors.ConfigError("data directory is required", nil)
	}
	if cfg.CorpusPath == "" {
		return nil, qerrors.ConfigError("corpus path is required", nil)
	}
	if embedder == nil {
		return nil, qerrors.InternalError("embedding provider is required", nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}
	if cfg.RestrictedMarker == "" {
		cfg.RestrictedMarker = "restricted"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{config: cfg, embedder: embedder, logger: logger}, nil
}

// Build reads the corpus and writes all three artifacts into the data
// directory. Concurrent builds on the same directory are rejected.
func (b *Builder) Build(ctx context.Context) (*BuildStats, error) {
	started := time.Now()

	if err := os.MkdirAll(b.config.DataDir, 0o755); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeIndexUnavailable,
			"cannot create data directory: "+b.config.DataDir, err)
	}

	lock := flock.New(filepath.Join(b.config.DataDir, buildLockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeIndexLocked, "cannot acquire build lock", err)
	}
	if !locked {
		return nil, qerrors.New(qerrors.ErrCodeIndexLocked,
			"another build is running on "+b.config.DataDir, nil).
			WithSuggestion("wait for the running build to finish")
	}
	defer func() { _ = lock.Unlock() }()

	raw, err := ReadCorpus(b.config.CorpusPath)
	if err != nil {
		return nil, err
	}

	chunks := make([]*store.Chunk, len(raw))
	docs := make([]*store.Document, len(raw))
	texts := make([]string, len(raw))
	for i, r := range raw {
		norm := normalize.Text(r.Text)
		chunks[i] = &store.Chunk{
			ID:            r.ID,
			DocName:       r.DocID,
			ArticleRef:    r.ArticleNo,
			Pages:         r.Pages,
			Text:          r.Text,
			NormText:      norm,
			RequiredRoles: access.RequiredRoles(r.DocID, b.config.RestrictedMarker),
		}
		docs[i] = &store.Document{
			ID:       r.ID,
			NormText: norm,
			Tokens:   normalize.Tokens(r.Text),
		}
		texts[i] = norm
	}

	b.logger.Info("build_started",
		"corpus", b.config.CorpusPath,
		"chunks", len(chunks),
		"model", b.embedder.ModelName(),
	)

	vectors, err := b.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := b.writeArtifacts(ctx, chunks, docs, vectors); err != nil {
		return nil, err
	}

	docNames := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		docNames[c.DocName] = struct{}{}
	}

	stats := &BuildStats{
		Chunks:     len(chunks),
		Documents:  len(docNames),
		Dimensions: b.embedder.Dimensions(),
		Model:      b.embedder.ModelName(),
		Took:       time.Since(started),
	}

	b.logger.Info("build_complete",
		"chunks", stats.Chunks,
		"documents", stats.Documents,
		"dimensions", stats.Dimensions,
		"took_ms", stats.Took.Milliseconds(),
	)
	return stats, nil
}

// embedAll embeds the texts in order-preserving batches with bounded
// concurrency.
func (b *Builder) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(texts); start += b.config.BatchSize {
		end := start + b.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := b.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// writeArtifacts builds and saves the three stores. The lexical and
// vector artifacts land first; the metadata store with its build state
// is written last, so a snapshot that opens successfully always refers
// to complete artifacts.
func (b *Builder) writeArtifacts(ctx context.Context, chunks []*store.Chunk, docs []*store.Document, vectors [][]float32) error {
	bm25Path := store.BM25IndexPath(b.config.DataDir, b.config.BM25Backend)
	bm25, err := store.NewBM25Index(b.config.BM25Backend, bm25Path, b.config.BM25)
	if err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot create lexical index", err)
	}
	defer bm25.Close()

	if err := bm25.Index(ctx, docs); err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "lexical indexing failed", err)
	}
	if err := bm25.Save(bm25Path); err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot save lexical index", err)
	}

	vecPath := store.VectorStorePath(b.config.DataDir, b.config.VectorBackend)
	vector, err := store.NewVectorStore(b.config.VectorBackend, store.DefaultVectorConfig(b.embedder.Dimensions()))
	if err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot create vector store", err)
	}
	defer vector.Close()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := vector.Add(ctx, ids, vectors); err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "vector indexing failed", err)
	}
	if err := vector.Save(vecPath); err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot save vector store", err)
	}

	meta, err := store.NewSQLiteStore(store.MetadataPath(b.config.DataDir))
	if err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot open metadata store", err)
	}
	defer meta.Close()

	if err := meta.SaveChunks(ctx, chunks); err != nil {
		return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot save chunk metadata", err)
	}
	state := map[string]string{
		store.StateEmbedderModel:      b.embedder.ModelName(),
		store.StateEmbedderDimensions: strconv.Itoa(b.embedder.Dimensions()),
		store.StateBuiltAt:            time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range state {
		if err := meta.SetState(ctx, key, value); err != nil {
			return qerrors.New(qerrors.ErrCodeIndexUnavailable, "cannot record build state", err)
		}
	}
	return nil
}
