package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qanoon-search/qanoon/internal/access"
	"github.com/qanoon-search/qanoon/internal/embed"
	"github.com/qanoon-search/qanoon/internal/search"
	"github.com/qanoon-search/qanoon/internal/store"
	"github.com/qanoon-search/qanoon/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	token      string
	roles      []string
	topK       int
	alpha      float64
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the indexed corpus with hybrid retrieval. Results are
filtered by the caller's roles before they are returned.

The caller is identified either by --token, resolved against the user
table in config, or by naming roles directly with --roles.

Examples:
  qanoon search --token u_staff "إجازة سنوية"
  qanoon search --roles legal "عقوبة التأخير" --topk 3
  qanoon search --roles admin "مكافآت" --alpha 0.7 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.token, "token", "", "User token resolved against the config user table")
	cmd.Flags().StringSliceVar(&opts.roles, "roles", nil, "Caller roles (repeatable or comma-separated)")
	cmd.Flags().IntVarP(&opts.topK, "topk", "n", 0, "Number of results (0 uses the configured default)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", -1, "Vector weight in fusion, 0..1 (-1 uses the configured default)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	roles, err := resolveCallerRoles(cmd, opts, cfg.Access.Users)
	if err != nil {
		return err
	}

	snap, err := store.OpenSnapshot(store.SnapshotConfig{
		DataDir:       cfg.Paths.DataDir,
		BM25Backend:   cfg.Search.BM25Backend,
		VectorBackend: cfg.Search.VectorBackend,
		BM25:          store.BM25Config{K1: cfg.Search.K1, B: cfg.Search.B},
	})
	if err != nil {
		return err
	}
	defer func() { _ = snap.Close() }()

	embedder, err := embed.New(ctx, embed.Config{
		Provider:   embed.Provider(cfg.Embeddings.Provider),
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: snap.Dimensions,
		MaxRetries: cfg.Embeddings.MaxRetries,
		Timeout:    cfg.EmbedTimeout(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	var glossary *search.Glossary
	if cfg.Paths.Glossary != "" {
		glossary, err = search.LoadGlossary(cfg.Paths.Glossary)
		if err != nil {
			return err
		}
	}

	filter := access.NewFilter(access.HierarchyFromConfig(cfg.Access.Hierarchy))
	engine, err := search.NewEngine(store.NewSnapshotHolder(snap), embedder, glossary, filter,
		search.EngineConfig{
			DefaultTopK:   cfg.Search.TopK,
			MaxTopK:       cfg.Search.MaxTopK,
			DefaultBM25K:  cfg.Search.BM25K,
			DefaultVecK:   cfg.Search.VecK,
			Alpha:         cfg.Search.Alpha,
			EmbedTimeout:  cfg.EmbedTimeout(),
			EmbedFallback: cfg.Search.EmbedFallback,
		}, nil)
	if err != nil {
		return err
	}

	searchOpts := search.Options{TopK: opts.topK}
	if opts.alpha >= 0 {
		searchOpts.Alpha = &opts.alpha
	}

	res, err := engine.Retrieve(ctx, query, roles, searchOpts)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	renderer := ui.NewResultsRenderer(cmd.OutOrStdout(), !ui.UseColor(cmd.OutOrStdout()))
	return renderer.Render(query, res)
}

// resolveCallerRoles turns --token or --roles into the caller's role
// list. A token takes precedence.
func resolveCallerRoles(cmd *cobra.Command, opts searchOptions, users map[string][]string) ([]access.Role, error) {
	if opts.token != "" {
		identity, err := access.NewStaticAuthorizer(users).Resolve(cmd.Context(), opts.token)
		if err != nil {
			return nil, err
		}
		return identity.Roles, nil
	}
	if len(opts.roles) > 0 {
		return access.ParseRoles(opts.roles), nil
	}
	return nil, fmt.Errorf("no caller identity; use --token or --roles")
}
