package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codegraph/internal/storage"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status and graph counts",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(statusCmd)
}

// StatusCLI is the status command's output shape.
type StatusCLI struct {
	Database    string         `json:"database"`
	LastRun     *RunStatusCLI  `json:"lastRun,omitempty"`
	Counts      GraphCountsCLI `json:"counts"`
	Unresolved  int            `json:"unresolvedSymbols"`
	HasModules  bool           `json:"hasModules"`
}

// RunStatusCLI summarizes the latest indexing run.
type RunStatusCLI struct {
	ID           string `json:"id"`
	StartedAt    string `json:"startedAt"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	FilesIndexed int    `json:"filesIndexed"`
	FilesDeleted int    `json:"filesDeleted"`
	Definitions  int    `json:"definitions"`
	Resolved     int    `json:"symbolsResolved"`
}

// GraphCountsCLI holds row counts per graph table.
type GraphCountsCLI struct {
	Files        int `json:"files"`
	Definitions  int `json:"definitions"`
	Imports      int `json:"imports"`
	Symbols      int `json:"symbols"`
	Usages       int `json:"usages"`
	Modules      int `json:"modules"`
	Interactions int `json:"interactions"`
}

func runStatus(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	requireIndexed(repoRoot)
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	status, err := collectStatus(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if statusFormat == "json" {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("Database: %s\n", status.Database)
	if status.LastRun == nil {
		fmt.Println("No indexing runs recorded yet.")
	} else {
		fmt.Printf("Last run: %s\n", status.LastRun.ID)
		fmt.Printf("  Started:  %s\n", status.LastRun.StartedAt)
		if status.LastRun.FinishedAt != "" {
			fmt.Printf("  Finished: %s\n", status.LastRun.FinishedAt)
		} else {
			fmt.Println("  Finished: (still running or interrupted)")
		}
		fmt.Printf("  Files indexed: %d, deleted: %d\n",
			status.LastRun.FilesIndexed, status.LastRun.FilesDeleted)
	}

	fmt.Println("Graph:")
	fmt.Printf("  Files:        %d\n", status.Counts.Files)
	fmt.Printf("  Definitions:  %d\n", status.Counts.Definitions)
	fmt.Printf("  Imports:      %d\n", status.Counts.Imports)
	fmt.Printf("  Symbols:      %d (%d unresolved)\n", status.Counts.Symbols, status.Unresolved)
	fmt.Printf("  Usages:       %d\n", status.Counts.Usages)
	if status.HasModules {
		fmt.Printf("  Modules:      %d (%d interactions)\n",
			status.Counts.Modules, status.Counts.Interactions)
	}
}

func collectStatus(db *storage.DB) (*StatusCLI, error) {
	status := &StatusCLI{Database: db.Path()}

	run, err := storage.NewRunRepository(db).Latest()
	if err != nil {
		return nil, err
	}
	if run != nil {
		rs := &RunStatusCLI{
			ID:           run.ID,
			StartedAt:    run.StartedAt.Format(time.RFC3339),
			FilesIndexed: run.FilesIndexed,
			FilesDeleted: run.FilesDeleted,
			Definitions:  run.DefinitionsFound,
			Resolved:     run.SymbolsResolved,
		}
		if run.FinishedAt != nil {
			rs.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		}
		status.LastRun = rs
	}

	counts := map[string]*int{
		"files":        &status.Counts.Files,
		"definitions":  &status.Counts.Definitions,
		"imports":      &status.Counts.Imports,
		"symbols":      &status.Counts.Symbols,
		"usages":       &status.Counts.Usages,
		"modules":      &status.Counts.Modules,
		"interactions": &status.Counts.Interactions,
	}
	for table, dst := range counts {
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
	}
	status.HasModules = status.Counts.Modules > 0

	err = db.QueryRow(`
		SELECT COUNT(*) FROM symbols s
		JOIN imports i ON i.id = s.reference_id
		WHERE s.definition_id IS NULL AND i.is_external = 0
	`).Scan(&status.Unresolved)
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved symbols: %w", err)
	}
	return status, nil
}
