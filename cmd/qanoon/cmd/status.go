package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/qanoon-search/qanoon/internal/store"
	"github.com/qanoon-search/qanoon/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and build state",
		Long: `Display information about the built index:
  - chunk and document counts
  - artifact storage sizes
  - the embedding model and width recorded at build time`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dataDir := cfg.Paths.DataDir
	metadataPath := store.MetadataPath(dataDir)
	if _, err := os.Stat(metadataPath); err != nil {
		return fmt.Errorf("no index found in %s\nRun 'qanoon index' to create one", dataDir)
	}

	info, err := collectStatus(ctx, dataDir, cfg.Search.BM25Backend, cfg.Search.VectorBackend)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !ui.UseColor(cmd.OutOrStdout()))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, dataDir, bm25Backend, vectorBackend string) (ui.StatusInfo, error) {
	info := ui.StatusInfo{DataDir: dataDir}

	meta, err := store.NewSQLiteStore(store.MetadataPath(dataDir))
	if err != nil {
		return info, err
	}
	defer func() { _ = meta.Close() }()

	chunks, docs, err := meta.Counts(ctx)
	if err != nil {
		return info, err
	}
	info.TotalChunks = chunks
	info.TotalDocs = docs

	info.EmbedderModel, _ = meta.GetState(ctx, store.StateEmbedderModel)
	if dims, err := meta.GetState(ctx, store.StateEmbedderDimensions); err == nil {
		info.Dimensions, _ = strconv.Atoi(dims)
	}
	if builtAt, err := meta.GetState(ctx, store.StateBuiltAt); err == nil && builtAt != "" {
		if t, err := time.Parse(time.RFC3339, builtAt); err == nil {
			info.BuiltAt = t
		}
	}

	info.MetadataSize = getFileSize(store.MetadataPath(dataDir))
	info.BM25Size = getPathSize(store.BM25IndexPath(dataDir, bm25Backend))
	info.VectorSize = getPathSize(store.VectorStorePath(dataDir, vectorBackend))
	info.TotalSize = info.MetadataSize + info.BM25Size + info.VectorSize

	return info, nil
}

// getFileSize returns a file's size, zero when missing.
func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// getPathSize sizes a file or, for the bleve backend, a directory tree.
func getPathSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !fi.IsDir() {
		return fi.Size()
	}

	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
