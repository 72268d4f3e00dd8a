// Package scan walks a source tree and classifies files against stored
// state: new, modified, deleted, unchanged.
package scan

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"codegraph/internal/config"
	"codegraph/internal/lang"
)

// Directories never worth scanning.
var skipDirs = map[string]bool{
	".git":         true,
	".codegraph":   true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"out":          true,
	".next":        true,
	"coverage":     true,
	".cache":       true,
}

// ChangeType classifies one file against stored state.
type ChangeType string

const (
	ChangeNew      ChangeType = "new"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// ChangedFile is one classified file. Path is relative to the scanned root;
// AbsPath is the slash-separated absolute path downstream reads use. Deleted
// files carry no hash.
type ChangedFile struct {
	Path    string
	AbsPath string
	Type    ChangeType
	Hash    string
	Size    int64
}

// Result is a complete change classification. Unchanged files are counted,
// not listed.
type Result struct {
	Changes        []ChangedFile
	UnchangedCount int
	FileCount      int
}

// Detector walks a tree, hashes source files concurrently, and classifies
// them against a stored path -> hash map.
type Detector struct {
	cfg     config.ScanConfig
	logger  *slog.Logger
	matcher *ignore.GitIgnore
}

// NewDetector creates a detector for one scan configuration.
func NewDetector(cfg config.ScanConfig, logger *slog.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// DetectChanges walks rootDir and classifies every source file against
// stored (path -> content hash, paths relative to rootDir). All hashing
// completes before any classification is emitted, so a partial walk can
// never masquerade as a final result.
func (d *Detector) DetectChanges(rootDir string, stored map[string]string) (*Result, error) {
	rootDir = filepath.Clean(rootDir)

	if d.cfg.UseGitignore {
		d.matcher = loadGitignore(rootDir)
	}

	paths, err := d.collectPaths(rootDir)
	if err != nil {
		return nil, err
	}

	hashes, err := d.hashAll(paths)
	if err != nil {
		return nil, err
	}

	result := &Result{FileCount: len(paths)}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return nil, fmt.Errorf("failed to relativize path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = true

		h, ok := hashes[p]
		if !ok {
			// Unreadable between walk and hash; treat as absent.
			result.FileCount--
			continue
		}

		prev, exists := stored[rel]
		switch {
		case !exists:
			result.Changes = append(result.Changes, ChangedFile{
				Path: rel, AbsPath: filepath.ToSlash(p), Type: ChangeNew,
				Hash: h.hash, Size: h.size,
			})
		case prev != h.hash:
			result.Changes = append(result.Changes, ChangedFile{
				Path: rel, AbsPath: filepath.ToSlash(p), Type: ChangeModified,
				Hash: h.hash, Size: h.size,
			})
		default:
			result.UnchangedCount++
		}
	}

	for rel := range stored {
		if !seen[rel] {
			result.Changes = append(result.Changes, ChangedFile{
				Path:    rel,
				AbsPath: filepath.ToSlash(filepath.Join(rootDir, rel)),
				Type:    ChangeDeleted,
			})
		}
	}

	d.logger.Debug("change detection complete",
		"files", result.FileCount,
		"changed", len(result.Changes),
		"unchanged", result.UnchangedCount)
	return result, nil
}

// collectPaths walks the tree and returns every indexable source file.
func (d *Detector) collectPaths(rootDir string) ([]string, error) {
	var paths []string
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // Skip inaccessible entries, continue walking
		}

		rel, relErr := filepath.Rel(rootDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if path == rootDir {
				return nil
			}
			if skipDirs[filepath.Base(path)] || d.isExcluded(rel) {
				return filepath.SkipDir
			}
			if d.matcher != nil && d.matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !lang.IsSourceFile(path) {
			return nil
		}
		if !d.cfg.IncludeTests && isTestFile(rel) {
			return nil
		}
		if d.isExcluded(rel) {
			return nil
		}
		if d.matcher != nil && d.matcher.MatchesPath(rel) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", rootDir, err)
	}
	return paths, nil
}

type hashed struct {
	hash string
	size int64
}

// hashAll hashes files concurrently, bounded by CPU count. Unreadable files
// are skipped, not fatal.
func (d *Detector) hashAll(paths []string) (map[string]hashed, error) {
	hashes := make(map[string]hashed, len(paths))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, path := range paths {
		path := path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				d.logger.Debug("skipping unreadable file", "path", path, "error", err)
				return nil
			}
			sum := blake2b.Sum256(data)
			mu.Lock()
			hashes[path] = hashed{hash: hex.EncodeToString(sum[:]), size: int64(len(data))}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// isExcluded matches a relative path against configured exclude patterns.
// A bare directory pattern excludes the whole subtree.
func (d *Detector) isExcluded(rel string) bool {
	for _, pattern := range d.cfg.Excludes {
		pattern = filepath.ToSlash(pattern)
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		dirPattern := strings.TrimSuffix(pattern, "/") + "/"
		if strings.HasPrefix(rel, dirPattern) {
			return true
		}
		if rel == strings.TrimSuffix(pattern, "/") {
			return true
		}
	}
	return false
}

func isTestFile(rel string) bool {
	base := filepath.Base(rel)
	return strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(rel, "__tests__/") ||
		strings.Contains(rel, "/__tests__/")
}

// loadGitignore reads the root .gitignore; absence is not an error.
func loadGitignore(rootDir string) *ignore.GitIgnore {
	matcher, err := ignore.CompileIgnoreFile(filepath.Join(rootDir, ".gitignore"))
	if err != nil {
		return nil
	}
	return matcher
}

// HashContent returns the content hash used for change detection, exposed so
// insert paths store the same hash the next scan will compare against.
func HashContent(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
