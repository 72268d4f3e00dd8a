package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codegraph/internal/indexer"
)

var indexFormat string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the repository and build the symbol graph",
	Long: `Walks the repository for TypeScript/JavaScript sources, parses changed
files with tree-sitter, and updates the symbol graph incrementally. Unchanged
files are skipped by content hash; deleted files are removed with their
definitions, imports, and usages.

Examples:
  codegraph index                 # Index the current directory
  codegraph index --repo ../app   # Index another repository
  codegraph index --format json   # Machine-readable run summary`,
	Run: runIndexCmd,
}

func init() {
	indexCmd.Flags().StringVar(&indexFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(indexCmd)
}

func runIndexCmd(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	start := time.Now()
	result, err := indexer.New(db, cfg, logger).Run(cmd.Context(), repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: indexing failed: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(start)

	if indexFormat == "json" {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if result.FullRebuild {
		fmt.Println("Change volume exceeded the incremental threshold; rebuilt from scratch.")
	}
	fmt.Printf("Indexed %d file(s) in %.1fs (%d unchanged, %d deleted)\n",
		result.FilesIndexed, duration.Seconds(), result.UnchangedCount, result.FilesDeleted)
	fmt.Printf("  Definitions: %d\n", result.Definitions)
	fmt.Printf("  Symbols resolved: %d\n", result.SymbolsResolved)
	fmt.Printf("  Inheritance relations: %d\n", result.RelationsCreated)

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d file(s) failed to parse:\n", len(result.Errors))
		for _, fe := range result.Errors {
			fmt.Printf("  %s: %s\n", fe.Path, fe.Message)
		}
	}
}
