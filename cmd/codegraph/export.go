package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codegraph/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the graph as a gzip-compressed JSON snapshot",
	Long: `Serializes files, definitions, call edges, modules, and interactions
into one compressed JSON document for diffing or downstream tooling.`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "",
		"Output path (default: .codegraph/snapshot.json.gz)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	requireIndexed(repoRoot)
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	out := exportOut
	if out == "" {
		out = filepath.Join(repoRoot, ".codegraph", "snapshot.json.gz")
	}

	exporter := export.NewExporter(db, logger, cfg.Graph.IncludeJSX)
	snap, err := exporter.WriteFile(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Snapshot written: %s\n", out)
	fmt.Printf("  Files: %d, definitions: %d, call edges: %d\n",
		snap.Metadata.FileCount, snap.Metadata.SymbolCount, len(snap.Calls))
}
