// Package cmd provides the CLI commands for qanoon.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/qanoon-search/qanoon/internal/config"
	"github.com/qanoon-search/qanoon/internal/logging"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the qanoon CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qanoon",
		Short: "Hybrid Arabic document retrieval with role-based access",
		Long: `Qanoon indexes Arabic legal and policy documents and answers
queries with hybrid retrieval: BM25 keyword search and embedding
similarity, fused into one ranking and filtered by the caller's roles.

Build an index from a corpus, then search it:

  qanoon index --corpus corpus.jsonl
  qanoon search --token u_staff "إجازة سنوية"`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("qanoon version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to "+logging.DefaultLogDir())

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default slog logger before any command runs.
func setupLogging(*cobra.Command, []string) error {
	cfg := logging.Config{
		Level:     "info",
		MaxSizeMB: 10,
		MaxFiles:  5,
	}
	if debugMode {
		cfg.Level = "debug"
		cfg.FilePath = logging.DefaultLogPath()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads configuration from --config, falling back to a
// qanoon.yaml in the working directory when none is given.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat("qanoon.yaml"); err == nil {
			path = "qanoon.yaml"
		}
	}
	return config.Load(path)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
