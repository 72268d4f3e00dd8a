package resolve

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkspacePackage is a monorepo sub-package with a resolvable entry point.
// Derived per indexing run, never persisted.
type WorkspacePackage struct {
	Name       string
	EntryPoint string
	Root       string
	// Exports is the package's normalized "exports" map for subpath
	// resolution; nil when the package has none.
	Exports map[string]any
}

// packageManifest is the subset of package.json the resolver reads.
type packageManifest struct {
	Name       string          `json:"name"`
	Main       string          `json:"main"`
	Exports    json.RawMessage `json:"exports"`
	Workspaces json.RawMessage `json:"workspaces"`
}

// BuildWorkspaceMap detects workspace configuration at rootDir (npm array,
// yarn object, or pnpm-workspace.yaml) and maps each package name to its
// resolved entry point. A package is included only when its entry point is
// present in known. Returns nil when no config exists or no package
// resolves — never an empty-but-usable map.
func (r *Resolver) BuildWorkspaceMap(rootDir string, known map[string]bool) map[string]*WorkspacePackage {
	rootDir = filepath.ToSlash(rootDir)
	if cached, ok := r.workspaceCache[rootDir]; ok {
		return cached
	}

	patterns := workspacePatterns(rootDir)
	if len(patterns) == 0 {
		r.workspaceCache[rootDir] = nil
		return nil
	}

	result := make(map[string]*WorkspacePackage)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(filepath.FromSlash(rootDir), filepath.FromSlash(pattern)))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				continue
			}
			if pkg := r.loadWorkspacePackage(filepath.ToSlash(match), known); pkg != nil {
				result[pkg.Name] = pkg
			}
		}
	}

	if len(result) == 0 {
		// Config present but unusable.
		r.workspaceCache[rootDir] = nil
		return nil
	}
	r.workspaceCache[rootDir] = result
	return result
}

// workspacePatterns reads the workspace globs from package.json (npm/yarn)
// or pnpm-workspace.yaml. Malformed config is treated as "not found".
func workspacePatterns(rootDir string) []string {
	if data, err := os.ReadFile(filepath.FromSlash(path.Join(rootDir, "package.json"))); err == nil {
		var manifest packageManifest
		if json.Unmarshal(data, &manifest) == nil && len(manifest.Workspaces) > 0 {
			// npm: "workspaces": ["packages/*"]
			var npmStyle []string
			if json.Unmarshal(manifest.Workspaces, &npmStyle) == nil && len(npmStyle) > 0 {
				return npmStyle
			}
			// yarn: "workspaces": {"packages": ["packages/*"]}
			var yarnStyle struct {
				Packages []string `json:"packages"`
			}
			if json.Unmarshal(manifest.Workspaces, &yarnStyle) == nil && len(yarnStyle.Packages) > 0 {
				return yarnStyle.Packages
			}
		}
	}

	if data, err := os.ReadFile(filepath.FromSlash(path.Join(rootDir, "pnpm-workspace.yaml"))); err == nil {
		var pnpm struct {
			Packages []string `yaml:"packages"`
		}
		if yaml.Unmarshal(data, &pnpm) == nil && len(pnpm.Packages) > 0 {
			return pnpm.Packages
		}
	}
	return nil
}

// loadWorkspacePackage reads one package directory's package.json and
// resolves its entry point with precedence exports["."] -> main ->
// src/index.*. Returns nil when the entry point is not a known file.
func (r *Resolver) loadWorkspacePackage(pkgDir string, known map[string]bool) *WorkspacePackage {
	data, err := os.ReadFile(filepath.FromSlash(path.Join(pkgDir, "package.json")))
	if err != nil {
		return nil
	}
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil || manifest.Name == "" {
		return nil
	}

	var exports map[string]any
	entry := ""
	if len(manifest.Exports) > 0 {
		// "exports" may be a bare string, a conditions object, or a
		// subpath map; a bare string or conditions object is the "."
		// entry itself.
		var exportsStr string
		if json.Unmarshal(manifest.Exports, &exportsStr) == nil && exportsStr != "" {
			entry = probePath(path.Join(pkgDir, exportsStr), known)
		} else if json.Unmarshal(manifest.Exports, &exports) == nil && exports != nil {
			if target := conditionTarget(exports["."]); target != "" {
				entry = probePath(path.Join(pkgDir, target), known)
			} else if !hasSubpathKeys(exports) {
				if target := conditionTarget(any(exports)); target != "" {
					entry = probePath(path.Join(pkgDir, target), known)
				}
			}
		}
	}
	if entry == "" && manifest.Main != "" {
		entry = probePath(path.Join(pkgDir, manifest.Main), known)
	}
	if entry == "" {
		entry = probePath(path.Join(pkgDir, "src/index"), known)
	}
	if entry == "" {
		return nil
	}

	return &WorkspacePackage{
		Name:       manifest.Name,
		EntryPoint: entry,
		Root:       pkgDir,
		Exports:    exports,
	}
}

// hasSubpathKeys reports whether an exports map keys subpaths rather than
// conditions.
func hasSubpathKeys(exports map[string]any) bool {
	for key := range exports {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

// ResolveWorkspaceImport resolves a bare specifier against the workspace
// map: the exact package name resolves to its entry point; a name+subpath
// specifier resolves through the package's exports map (same pattern rules
// as "#" imports) or directly against the package root.
func ResolveWorkspaceImport(specifier string, workspace map[string]*WorkspacePackage, known map[string]bool) string {
	if workspace == nil {
		return ""
	}

	if pkg, ok := workspace[specifier]; ok {
		return pkg.EntryPoint
	}

	for name, pkg := range workspace {
		if !strings.HasPrefix(specifier, name+"/") {
			continue
		}
		subpath := strings.TrimPrefix(specifier, name+"/")

		if pkg.Exports != nil {
			if target := matchSubpathPattern("./"+subpath, pkg.Exports); target != "" {
				if p := probePath(path.Join(pkg.Root, target), known); p != "" {
					return p
				}
			}
		}
		if p := probePath(path.Join(pkg.Root, subpath), known); p != "" {
			return p
		}
	}
	return ""
}
