package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qanoon-search/qanoon/internal/embed"
	"github.com/qanoon-search/qanoon/internal/indexer"
	"github.com/qanoon-search/qanoon/internal/output"
	"github.com/qanoon-search/qanoon/internal/store"
)

func newIndexCmd() *cobra.Command {
	var corpusPath string
	var dataDir string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the retrieval index from a corpus",
		Long: `Read a JSONL chunk corpus and build the retrieval artifacts:
chunk metadata, the BM25 lexical index, and the embedding vector store.

Examples:
  qanoon index --corpus corpus.jsonl
  qanoon index --corpus corpus.jsonl --data-dir /srv/qanoon`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, corpusPath, dataDir)
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Corpus JSONL file (overrides config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory for artifacts (overrides config)")

	return cmd
}

func runIndex(cmd *cobra.Command, corpusPath, dataDir string) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if corpusPath != "" {
		cfg.Paths.Corpus = corpusPath
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	if cfg.Paths.Corpus == "" {
		return fmt.Errorf("no corpus given; use --corpus or set paths.corpus in config")
	}

	ctx := cmd.Context()
	embedder, err := embed.New(ctx, embed.Config{
		Provider:   embed.Provider(cfg.Embeddings.Provider),
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		MaxRetries: cfg.Embeddings.MaxRetries,
	})
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	out.Statusf("📚", "Indexing %s into %s", cfg.Paths.Corpus, cfg.Paths.DataDir)
	out.Statusf("", "embedder: %s (%d dimensions)", embedder.ModelName(), embedder.Dimensions())

	builder, err := indexer.NewBuilder(indexer.BuilderConfig{
		DataDir:          cfg.Paths.DataDir,
		CorpusPath:       cfg.Paths.Corpus,
		BM25Backend:      cfg.Search.BM25Backend,
		VectorBackend:    cfg.Search.VectorBackend,
		BM25:             store.BM25Config{K1: cfg.Search.K1, B: cfg.Search.B},
		RestrictedMarker: cfg.Access.RestrictedMarker,
		BatchSize:        cfg.Embeddings.BatchSize,
	}, embedder, nil)
	if err != nil {
		return err
	}

	stats, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	out.Successf("Indexed %d chunks from %d documents in %s",
		stats.Chunks, stats.Documents, stats.Took.Round(time.Millisecond))
	return nil
}
