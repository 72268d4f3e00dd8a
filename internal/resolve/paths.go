// Package resolve turns import specifiers into absolute file paths and
// imported names into definition ids.
package resolve

import (
	"encoding/json"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"codegraph/internal/lang"
)

// Resolver resolves import specifiers against a set of known source files.
// It owns per-run caches (package.json "imports" maps, workspace maps); call
// Reset at the start of each indexing run. Known-file paths are absolute,
// slash-separated.
type Resolver struct {
	logger *slog.Logger

	// importsCache caches the nearest package.json "imports" map per
	// starting directory. A present nil entry means "searched, none found".
	importsCache map[string]*importsEntry

	// workspaceCache caches workspace maps per root directory.
	workspaceCache map[string]map[string]*WorkspacePackage
}

type importsEntry struct {
	dir     string // directory containing the package.json
	imports map[string]any
}

// NewResolver creates a resolver with empty caches.
func NewResolver(logger *slog.Logger) *Resolver {
	r := &Resolver{logger: logger}
	r.Reset()
	return r
}

// Reset clears all caches. Caches live for one indexing run.
func (r *Resolver) Reset() {
	r.importsCache = make(map[string]*importsEntry)
	r.workspaceCache = make(map[string]map[string]*WorkspacePackage)
}

// ResolveImportPath resolves a raw import specifier from fromFile to an
// absolute path in known. It returns "" for unresolved and external
// specifiers; resolution failure is never an error.
func (r *Resolver) ResolveImportPath(source, fromFile string, known map[string]bool) string {
	switch {
	case strings.HasPrefix(source, "."):
		candidate := path.Join(path.Dir(fromFile), source)
		return probePath(candidate, known)
	case strings.HasPrefix(source, "/"):
		return probePath(path.Clean(source), known)
	case strings.HasPrefix(source, "#"):
		return r.resolveSubpathImport(source, fromFile, known)
	default:
		// Bare specifier: external unless a workspace package matches,
		// which the caller resolves via ResolveWorkspaceImport.
		return ""
	}
}

// probePath tries a candidate path against known files: exact match, each
// source extension appended, TypeScript ESM correction (.js -> .ts), then
// directory index fallback.
func probePath(candidate string, known map[string]bool) string {
	if known[candidate] {
		return candidate
	}

	for _, ext := range lang.SourceExtensions {
		if p := candidate + ext; known[p] {
			return p
		}
	}

	// ESM specifiers name the compiled .js file; correct to the .ts source.
	if corrected := probeESMCorrection(candidate, known); corrected != "" {
		return corrected
	}

	for _, ext := range lang.SourceExtensions {
		if p := candidate + "/index" + ext; known[p] {
			return p
		}
	}
	return ""
}

func probeESMCorrection(candidate string, known map[string]bool) string {
	var tries []string
	switch {
	case strings.HasSuffix(candidate, ".js"):
		base := strings.TrimSuffix(candidate, ".js")
		tries = []string{base + ".ts", base + ".tsx"}
	case strings.HasSuffix(candidate, ".jsx"):
		base := strings.TrimSuffix(candidate, ".jsx")
		tries = []string{base + ".tsx", base + ".ts"}
	}
	for _, p := range tries {
		if known[p] {
			return p
		}
	}
	return ""
}

// resolveSubpathImport resolves a "#" specifier via the nearest ancestor
// package.json "imports" map.
func (r *Resolver) resolveSubpathImport(source, fromFile string, known map[string]bool) string {
	entry := r.findImportsMap(path.Dir(fromFile))
	if entry == nil {
		return ""
	}

	target := matchSubpathPattern(source, entry.imports)
	if target == "" {
		return ""
	}
	return probePath(path.Join(entry.dir, target), known)
}

// findImportsMap walks ancestor directories for a package.json carrying an
// "imports" field. Results (including misses) are cached per starting
// directory. Malformed or missing files are treated as "not found" and the
// search continues upward.
func (r *Resolver) findImportsMap(startDir string) *importsEntry {
	if cached, ok := r.importsCache[startDir]; ok {
		return cached
	}

	dir := startDir
	for {
		if imports := readImportsField(filepath.FromSlash(path.Join(dir, "package.json"))); imports != nil {
			entry := &importsEntry{dir: dir, imports: imports}
			r.importsCache[startDir] = entry
			return entry
		}
		parent := path.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	r.importsCache[startDir] = nil
	return nil
}

func readImportsField(pkgPath string) map[string]any {
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return nil
	}
	var pkg struct {
		Imports map[string]any `json:"imports"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	if len(pkg.Imports) == 0 {
		return nil
	}
	return pkg.Imports
}

// matchSubpathPattern matches a specifier against a package.json subpath
// map ("imports" or "exports"), most specific pattern first: exact match
// before wildcard, longer wildcard prefix before shorter. The wildcard
// suffix is substituted into the target.
func matchSubpathPattern(specifier string, patterns map[string]any) string {
	if value, ok := patterns[specifier]; ok {
		return conditionTarget(value)
	}

	bestPrefix := -1
	var bestTarget, bestSuffix string
	for pattern, value := range patterns {
		star := strings.Index(pattern, "*")
		if star < 0 {
			continue
		}
		prefix, suffix := pattern[:star], pattern[star+1:]
		if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
			continue
		}
		if len(specifier) < len(prefix)+len(suffix) {
			continue
		}
		if len(prefix) > bestPrefix {
			bestPrefix = len(prefix)
			bestTarget = conditionTarget(value)
			bestSuffix = specifier[len(prefix) : len(specifier)-len(suffix)]
		}
	}

	if bestPrefix < 0 || bestTarget == "" {
		return ""
	}
	return strings.Replace(bestTarget, "*", bestSuffix, 1)
}

// conditionTarget unwraps a subpath target: a plain string, or a conditions
// object where "import" then "default" win.
func conditionTarget(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"import", "default", "require"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
		// Nested conditions: take the first resolvable entry.
		for _, nested := range v {
			if s := conditionTarget(nested); s != "" {
				return s
			}
		}
	}
	return ""
}
