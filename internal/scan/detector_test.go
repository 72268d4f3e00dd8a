package scan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/config"
	"codegraph/internal/logging"
	"codegraph/internal/testutil"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	testutil.WriteTree(t, root, files)
}

func newTestDetector(cfg config.ScanConfig) *Detector {
	return NewDetector(cfg, logging.NewDiscard())
}

func changesByType(result *Result) map[ChangeType][]string {
	byType := make(map[ChangeType][]string)
	for _, c := range result.Changes {
		byType[c.Type] = append(byType[c.Type], c.Path)
	}
	return byType
}

func TestDetectChangesFreshTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app.ts":    "export const a = 1",
		"src/view.tsx":  "export const V = () => null",
		"README.md":     "not source",
		"src/notes.txt": "not source",
	})

	d := newTestDetector(config.DefaultConfig().Scan)
	result, err := d.DetectChanges(root, nil)
	require.NoError(t, err)

	byType := changesByType(result)
	require.ElementsMatch(t, []string{"src/app.ts", "src/view.tsx"}, byType[ChangeNew])
	require.Empty(t, byType[ChangeModified])
	require.Empty(t, byType[ChangeDeleted])
	require.Equal(t, 0, result.UnchangedCount)
	require.Equal(t, 2, result.FileCount)

	// Every change carries a hash and an absolute path.
	for _, c := range result.Changes {
		require.NotEmpty(t, c.Hash)
		require.True(t, filepath.IsAbs(filepath.FromSlash(c.AbsPath)))
	}
}

func TestDetectChangesIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.ts": "const a = 1",
		"b.ts": "const b = 2",
	})

	d := newTestDetector(config.DefaultConfig().Scan)
	first, err := d.DetectChanges(root, nil)
	require.NoError(t, err)

	stored := make(map[string]string)
	for _, c := range first.Changes {
		stored[c.Path] = c.Hash
	}

	// Untouched tree: zero changes and unchangedCount == fileCount.
	second, err := d.DetectChanges(root, stored)
	require.NoError(t, err)
	require.Empty(t, second.Changes)
	require.Equal(t, second.FileCount, second.UnchangedCount)
}

func TestDetectChangesModifiedAndDeleted(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.ts":   "const keep = 1",
		"change.ts": "const change = 1",
	})

	d := newTestDetector(config.DefaultConfig().Scan)
	first, err := d.DetectChanges(root, nil)
	require.NoError(t, err)

	stored := make(map[string]string)
	for _, c := range first.Changes {
		stored[c.Path] = c.Hash
	}
	stored["gone.ts"] = "stale-hash"

	writeTree(t, root, map[string]string{"change.ts": "const change = 2"})

	result, err := d.DetectChanges(root, stored)
	require.NoError(t, err)
	byType := changesByType(result)
	require.Equal(t, []string{"change.ts"}, byType[ChangeModified])
	require.Equal(t, []string{"gone.ts"}, byType[ChangeDeleted])
	require.Empty(t, byType[ChangeNew])
	require.Equal(t, 1, result.UnchangedCount)
}

func TestDetectChangesSkipsAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app.ts":              "const a = 1",
		"node_modules/dep/x.ts":   "ignored",
		"dist/bundle.js":          "ignored",
		"generated/api.ts":        "excluded by config",
		"src/app.test.ts":         "test file",
		"src/__tests__/helper.ts": "test file",
	})

	cfg := config.DefaultConfig().Scan
	cfg.Excludes = append(cfg.Excludes, "generated")
	cfg.IncludeTests = false
	d := newTestDetector(cfg)

	result, err := d.DetectChanges(root, nil)
	require.NoError(t, err)
	byType := changesByType(result)
	require.Equal(t, []string{"src/app.ts"}, byType[ChangeNew])
}

func TestDetectChangesIncludeTests(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app.ts":      "const a = 1",
		"src/app.test.ts": "test file",
	})

	cfg := config.DefaultConfig().Scan
	cfg.IncludeTests = true
	d := newTestDetector(cfg)

	result, err := d.DetectChanges(root, nil)
	require.NoError(t, err)
	byType := changesByType(result)
	require.ElementsMatch(t, []string{"src/app.ts", "src/app.test.ts"}, byType[ChangeNew])
}

func TestDetectChangesGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":   "ignored/\n*.generated.ts\n",
		"src/app.ts":   "const a = 1",
		"ignored/x.ts": "const x = 1",
		"src/api.generated.ts": "const g = 1",
	})

	cfg := config.DefaultConfig().Scan
	cfg.UseGitignore = true
	d := newTestDetector(cfg)

	result, err := d.DetectChanges(root, nil)
	require.NoError(t, err)
	byType := changesByType(result)
	require.Equal(t, []string{"src/app.ts"}, byType[ChangeNew])
}

func TestHashContentMatchesDetector(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.ts": "const a = 1"})

	d := newTestDetector(config.DefaultConfig().Scan)
	result, err := d.DetectChanges(root, nil)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	require.Equal(t, HashContent([]byte("const a = 1")), result.Changes[0].Hash)
}
