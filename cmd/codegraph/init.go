package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a codegraph project",
	Long: `Creates .codegraph/config.json with default settings in the repository
root. Indexing works without init; run it when you want to edit the defaults.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	configPath := filepath.Join(repoRoot, ".codegraph", "config.json")

	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Printf("Already initialized: %s\n", configPath)
		fmt.Println("Use --force to overwrite with defaults.")
		return
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = repoRoot
	if err := config.Save(cfg, repoRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Initialized codegraph project in %s\n", repoRoot)
	fmt.Printf("Config: %s\n", configPath)
	fmt.Println("Run 'codegraph index' to build the symbol graph.")
}
