package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
	"codegraph/internal/logging"
	"codegraph/internal/storage"
	"codegraph/internal/version"
)

var (
	repoFlag      string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "codegraph - TypeScript/JavaScript symbol graph indexer",
	Long: `codegraph parses a TypeScript/JavaScript repository with tree-sitter,
resolves imports and re-export chains to their defining files, and stores the
resulting symbol graph in SQLite. Query commands answer call-graph questions:
cycles, neighborhoods, hub symbols, and module-level interactions.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("codegraph version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: text, json (overrides config)")
}

// mustGetRepoRoot resolves the --repo flag (or the working directory) to an
// absolute path.
func mustGetRepoRoot() string {
	root := repoFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not determine working directory: %v\n", err)
			os.Exit(1)
		}
		root = cwd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid repository root %q: %v\n", root, err)
		os.Exit(1)
	}
	return abs
}

func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the command logger; CLI flags win over config values.
func newLogger(cfg *config.Config) *slog.Logger {
	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}
	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	return logging.NewFromStrings(format, level)
}

func mustOpenDB(repoRoot string, logger *slog.Logger) *storage.DB {
	db, err := storage.Open(repoRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return db
}

// requireIndexed exits when no database exists yet; query commands have
// nothing to answer before the first index run.
func requireIndexed(repoRoot string) {
	dbPath := filepath.Join(repoRoot, ".codegraph", "codegraph.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Error: repository is not indexed.")
		fmt.Fprintln(os.Stderr, "Run 'codegraph index' first.")
		os.Exit(1)
	}
}
