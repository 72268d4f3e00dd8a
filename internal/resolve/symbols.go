package resolve

import (
	"codegraph/internal/extract"
)

// maxReExportDepth bounds re-export chain traversal. Chains deeper than this
// resolve to "not found" rather than erroring; real codebases rarely nest
// barrel files past two or three hops.
const maxReExportDepth = 5

// DefinitionLookup provides per-file definition name maps.
type DefinitionLookup interface {
	// NameMap returns name -> definition id for a file's top-level
	// definitions. Unknown files return an empty map, not an error.
	NameMap(path string) (map[string]int64, error)
}

// ReexportEdge is one re-export statement of a file, as the chain follower
// sees it.
type ReexportEdge struct {
	Kind extract.ReferenceKind
	// ResolvedPath is the absolute target path; empty when unresolved or
	// external.
	ResolvedPath string
	// Names maps exported alias -> original name for named re-exports;
	// nil for export-all.
	Names map[string]string
}

// ReexportLookup lists the re-export references of a file.
type ReexportLookup interface {
	Reexports(path string) ([]ReexportEdge, error)
}

// ResolveSymbolToDefinition resolves an imported symbol against the target
// file's definitions. External references resolve to not-found. Default
// imports fall back to a definition named like the local alias, covering
// `export { X as default }` patterns.
func ResolveSymbolToDefinition(sym extract.ImportedSymbol, isExternal bool, resolvedPath string, defs DefinitionLookup) (int64, bool, error) {
	if isExternal || resolvedPath == "" {
		return 0, false, nil
	}

	nameMap, err := defs.NameMap(resolvedPath)
	if err != nil {
		return 0, false, err
	}

	switch sym.Kind {
	case extract.ImportNamed:
		if id, ok := nameMap[sym.Name]; ok {
			return id, true, nil
		}
	case extract.ImportDefault:
		if id, ok := nameMap["default"]; ok {
			return id, true, nil
		}
		if id, ok := nameMap[sym.Alias]; ok {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// FollowReExportChain traces symbolName through export-all and named
// re-export hops starting at fromFile, stopping as soon as a file defines
// the symbol. Traversal is doubly bounded: a visited set breaks cycles and
// a depth cap of 5 stops pathological chains. Hitting either bound returns
// not-found, never an error.
func FollowReExportChain(symbolName, fromFile string, reexports ReexportLookup, defs DefinitionLookup) (int64, bool, error) {
	walk := NewBoundedWalk(maxReExportDepth)
	return followReExport(symbolName, fromFile, 0, walk, reexports, defs)
}

func followReExport(name, file string, depth int, walk *BoundedWalk, reexports ReexportLookup, defs DefinitionLookup) (int64, bool, error) {
	if !walk.Enter(file, depth) {
		return 0, false, nil
	}

	nameMap, err := defs.NameMap(file)
	if err != nil {
		return 0, false, err
	}
	if id, ok := nameMap[name]; ok {
		return id, true, nil
	}

	edges, err := reexports.Reexports(file)
	if err != nil {
		return 0, false, err
	}
	for _, edge := range edges {
		if edge.ResolvedPath == "" {
			continue
		}
		switch edge.Kind {
		case extract.RefExportAll:
			if id, ok, err := followReExport(name, edge.ResolvedPath, depth+1, walk, reexports, defs); err != nil || ok {
				return id, ok, err
			}
		case extract.RefReExport:
			original, ok := edge.Names[name]
			if !ok {
				continue
			}
			if id, ok, err := followReExport(original, edge.ResolvedPath, depth+1, walk, reexports, defs); err != nil || ok {
				return id, ok, err
			}
		}
	}
	return 0, false, nil
}
