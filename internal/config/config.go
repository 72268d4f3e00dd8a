// Package config loads codegraph configuration from .codegraph/config.json
// with environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete codegraph configuration.
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Scan    ScanConfig    `json:"scan" mapstructure:"scan"`
	Graph   GraphConfig   `json:"graph" mapstructure:"graph"`
	Modules ModulesConfig `json:"modules" mapstructure:"modules"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ScanConfig controls directory walking and change detection.
type ScanConfig struct {
	// Excludes are glob patterns or directory prefixes skipped during scans.
	Excludes []string `json:"excludes" mapstructure:"excludes"`

	// UseGitignore honors .gitignore rules at the scan root.
	UseGitignore bool `json:"useGitignore" mapstructure:"useGitignore"`

	// IncludeTests indexes test files (*.test.ts, *.spec.ts, __tests__/).
	IncludeTests bool `json:"includeTests" mapstructure:"includeTests"`

	// IncrementalThreshold is the percentage of changed files above which
	// an incremental run recommends a full reindex. 0 disables the guard.
	IncrementalThreshold int `json:"incrementalThreshold" mapstructure:"incrementalThreshold"`
}

// GraphConfig controls call-graph construction and traversal bounds.
type GraphConfig struct {
	// IncludeJSX widens call-graph usage contexts to JSX element usages.
	IncludeJSX bool `json:"includeJsx" mapstructure:"includeJsx"`

	// MaxNeighborhoodDepth is the default BFS depth for neighborhood queries.
	MaxNeighborhoodDepth int `json:"maxNeighborhoodDepth" mapstructure:"maxNeighborhoodDepth"`

	// MaxNeighborhoodNodes caps the number of nodes a neighborhood returns.
	MaxNeighborhoodNodes int `json:"maxNeighborhoodNodes" mapstructure:"maxNeighborhoodNodes"`
}

// ModulesConfig controls module edge classification thresholds.
type ModulesConfig struct {
	// UtilityMinWeight is the minimum total weight for a utility edge.
	UtilityMinWeight int `json:"utilityMinWeight" mapstructure:"utilityMinWeight"`

	// UtilityMinCallers is the minimum distinct-caller count for a utility edge.
	UtilityMinCallers int `json:"utilityMinCallers" mapstructure:"utilityMinCallers"`

	// UtilityMinAvgCalls is the minimum average calls-per-symbol for a utility edge.
	UtilityMinAvgCalls float64 `json:"utilityMinAvgCalls" mapstructure:"utilityMinAvgCalls"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Scan: ScanConfig{
			Excludes:             []string{"node_modules", "dist", "build", "coverage", ".git", ".codegraph"},
			UseGitignore:         true,
			IncludeTests:         true,
			IncrementalThreshold: 50,
		},
		Graph: GraphConfig{
			IncludeJSX:           false,
			MaxNeighborhoodDepth: 3,
			MaxNeighborhoodNodes: 200,
		},
		Modules: ModulesConfig{
			UtilityMinWeight:   10,
			UtilityMinCallers:  3,
			UtilityMinAvgCalls: 3.0,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads configuration for a repository root.
// Missing config files are not an error; defaults apply. Environment
// variables prefixed CODEGRAPH_ override file values.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".codegraph"))

	v.SetEnvPrefix("CODEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("repoRoot", repoRoot)
	v.SetDefault("scan.excludes", defaults.Scan.Excludes)
	v.SetDefault("scan.useGitignore", defaults.Scan.UseGitignore)
	v.SetDefault("scan.includeTests", defaults.Scan.IncludeTests)
	v.SetDefault("scan.incrementalThreshold", defaults.Scan.IncrementalThreshold)
	v.SetDefault("graph.includeJsx", defaults.Graph.IncludeJSX)
	v.SetDefault("graph.maxNeighborhoodDepth", defaults.Graph.MaxNeighborhoodDepth)
	v.SetDefault("graph.maxNeighborhoodNodes", defaults.Graph.MaxNeighborhoodNodes)
	v.SetDefault("modules.utilityMinWeight", defaults.Modules.UtilityMinWeight)
	v.SetDefault("modules.utilityMinCallers", defaults.Modules.UtilityMinCallers)
	v.SetDefault("modules.utilityMinAvgCalls", defaults.Modules.UtilityMinAvgCalls)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.RepoRoot == "" {
		cfg.RepoRoot = repoRoot
	}
	return &cfg, nil
}

// Save writes the configuration to .codegraph/config.json.
func Save(cfg *Config, repoRoot string) error {
	dir := filepath.Join(repoRoot, ".codegraph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("version", cfg.Version)
	v.Set("repoRoot", cfg.RepoRoot)
	v.Set("scan", cfg.Scan)
	v.Set("graph", cfg.Graph)
	v.Set("modules", cfg.Modules)
	v.Set("logging", cfg.Logging)

	path := filepath.Join(dir, "config.json")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
