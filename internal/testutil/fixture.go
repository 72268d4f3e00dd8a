// Package testutil provides small fixture helpers shared by integration
// tests that index real source trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree writes the given relative-path → content map under root,
// creating parent directories as needed. Paths use forward slashes.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

// RemoveFile deletes one file from a fixture tree.
func RemoveFile(t *testing.T, root, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("remove %s: %v", rel, err)
	}
}
