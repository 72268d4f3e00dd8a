package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/logging"
)

func TestBuildWorkspaceMapNpm(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{
		"name": "root",
		"workspaces": ["packages/*"]
	}`)
	writeFile(t, filepath.Join(dir, "packages", "shared", "package.json"), `{
		"name": "@org/shared-types",
		"main": "src/index.ts"
	}`)

	root := filepath.ToSlash(dir)
	known := knownSet(
		root+"/packages/shared/src/index.ts",
		root+"/packages/shared/src/types.ts",
	)

	r := NewResolver(logging.NewDiscard())
	workspace := r.BuildWorkspaceMap(root, known)
	require.NotNil(t, workspace)
	require.Contains(t, workspace, "@org/shared-types")
	require.Equal(t, root+"/packages/shared/src/index.ts", workspace["@org/shared-types"].EntryPoint)

	// Exact package name resolves to the entry point.
	got := ResolveWorkspaceImport("@org/shared-types", workspace, known)
	require.Equal(t, root+"/packages/shared/src/index.ts", got)

	// A subpath resolves against the package root.
	got = ResolveWorkspaceImport("@org/shared-types/src/types", workspace, known)
	require.Equal(t, root+"/packages/shared/src/types.ts", got)

	require.Equal(t, "", ResolveWorkspaceImport("@org/absent", workspace, known))
}

func TestBuildWorkspaceMapYarnAndExports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{
		"workspaces": {"packages": ["libs/*"]}
	}`)
	writeFile(t, filepath.Join(dir, "libs", "core", "package.json"), `{
		"name": "@org/core",
		"exports": {
			".": {"import": "./src/index.ts"},
			"./utils/*": "./src/utils/*.ts"
		}
	}`)

	root := filepath.ToSlash(dir)
	known := knownSet(
		root+"/libs/core/src/index.ts",
		root+"/libs/core/src/utils/strings.ts",
	)

	r := NewResolver(logging.NewDiscard())
	workspace := r.BuildWorkspaceMap(root, known)
	require.NotNil(t, workspace)
	require.Equal(t, root+"/libs/core/src/index.ts", workspace["@org/core"].EntryPoint)

	got := ResolveWorkspaceImport("@org/core/utils/strings", workspace, known)
	require.Equal(t, root+"/libs/core/src/utils/strings.ts", got)
}

func TestBuildWorkspaceMapPnpm(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pnpm-workspace.yaml"), "packages:\n  - modules/*\n")
	writeFile(t, filepath.Join(dir, "modules", "api", "package.json"), `{
		"name": "api"
	}`)

	root := filepath.ToSlash(dir)
	// No main, no exports: the src/index fallback applies.
	known := knownSet(root + "/modules/api/src/index.tsx")

	r := NewResolver(logging.NewDiscard())
	workspace := r.BuildWorkspaceMap(root, known)
	require.NotNil(t, workspace)
	require.Equal(t, root+"/modules/api/src/index.tsx", workspace["api"].EntryPoint)
}

func TestBuildWorkspaceMapUnusableReturnsNil(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{
		"workspaces": ["packages/*"]
	}`)
	writeFile(t, filepath.Join(dir, "packages", "ghost", "package.json"), `{
		"name": "ghost",
		"main": "src/index.ts"
	}`)

	root := filepath.ToSlash(dir)
	// Entry point not in the known file set: the package must be dropped,
	// and with no packages left the map must be nil, not empty.
	r := NewResolver(logging.NewDiscard())
	workspace := r.BuildWorkspaceMap(root, knownSet(root+"/unrelated.ts"))
	require.Nil(t, workspace)
}

func TestBuildWorkspaceMapNoConfig(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(logging.NewDiscard())
	require.Nil(t, r.BuildWorkspaceMap(filepath.ToSlash(dir), knownSet()))
}

func TestWorkspaceMapCachedPerRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{"workspaces": ["packages/*"]}`)
	writeFile(t, filepath.Join(dir, "packages", "a", "package.json"), `{"name": "a", "main": "index.ts"}`)

	root := filepath.ToSlash(dir)
	known := knownSet(root + "/packages/a/index.ts")

	r := NewResolver(logging.NewDiscard())
	first := r.BuildWorkspaceMap(root, known)
	require.NotNil(t, first)

	// Removing the config on disk does not invalidate the run cache.
	require.NoError(t, os.Remove(filepath.Join(dir, "package.json")))
	second := r.BuildWorkspaceMap(root, known)
	require.Same(t, first["a"], second["a"])

	// Reset clears the cache for the next run.
	r.Reset()
	require.Nil(t, r.BuildWorkspaceMap(root, known))
}
