package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, root, cfg.RepoRoot)
	require.Equal(t, 50, cfg.Scan.IncrementalThreshold)
	require.True(t, cfg.Scan.UseGitignore)
	require.Equal(t, 3, cfg.Graph.MaxNeighborhoodDepth)
	require.Equal(t, 10, cfg.Modules.UtilityMinWeight)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.RepoRoot = root
	cfg.Scan.IncludeTests = false
	cfg.Scan.Excludes = append(cfg.Scan.Excludes, "generated")
	cfg.Graph.IncludeJSX = true
	cfg.Modules.UtilityMinCallers = 5
	require.NoError(t, Save(cfg, root))

	_, err := os.Stat(filepath.Join(root, ".codegraph", "config.json"))
	require.NoError(t, err)

	loaded, err := Load(root)
	require.NoError(t, err)
	require.False(t, loaded.Scan.IncludeTests)
	require.Contains(t, loaded.Scan.Excludes, "generated")
	require.True(t, loaded.Graph.IncludeJSX)
	require.Equal(t, 5, loaded.Modules.UtilityMinCallers)
}

func TestEnvOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("CODEGRAPH_SCAN_INCREMENTALTHRESHOLD", "80")

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, 80, cfg.Scan.IncrementalThreshold)
}

func TestLoadRejectsMalformedConfig(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".codegraph")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o644))

	_, err := Load(root)
	require.Error(t, err)
}
