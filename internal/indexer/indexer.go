// Package indexer orchestrates one indexing run: change detection, parsing,
// storage mutation, and cross-file symbol resolution.
package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codegraph/internal/config"
	"codegraph/internal/extract"
	"codegraph/internal/graph"
	"codegraph/internal/lang"
	"codegraph/internal/resolve"
	"codegraph/internal/scan"
	"codegraph/internal/storage"
)

// FileError is a per-file failure that did not abort the run.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result summarizes one indexing run.
type Result struct {
	RunID            string      `json:"runId"`
	FilesIndexed     int         `json:"filesIndexed"`
	FilesDeleted     int         `json:"filesDeleted"`
	UnchangedCount   int         `json:"unchangedCount"`
	Definitions      int         `json:"definitions"`
	SymbolsResolved  int         `json:"symbolsResolved"`
	RelationsCreated int         `json:"relationsCreated"`
	FullRebuild      bool        `json:"fullRebuild"`
	Errors           []FileError `json:"errors,omitempty"`
}

// Indexer drives indexing runs against one database.
type Indexer struct {
	db       *storage.DB
	cfg      *config.Config
	logger   *slog.Logger
	parser   *lang.Parser
	resolver *resolve.Resolver

	files       *storage.FileRepository
	definitions *storage.DefinitionRepository
	imports     *storage.ImportRepository
	symbols     *storage.SymbolRepository
	usages      *storage.UsageRepository
	runs        *storage.RunRepository
}

// New creates an indexer.
func New(db *storage.DB, cfg *config.Config, logger *slog.Logger) *Indexer {
	return &Indexer{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		parser:      lang.NewParser(),
		resolver:    resolve.NewResolver(logger),
		files:       storage.NewFileRepository(db),
		definitions: storage.NewDefinitionRepository(db),
		imports:     storage.NewImportRepository(db),
		symbols:     storage.NewSymbolRepository(db),
		usages:      storage.NewUsageRepository(db),
		runs:        storage.NewRunRepository(db),
	}
}

// parsedFile is one successfully parsed changed file, held until all parse
// outcomes are collected.
type parsedFile struct {
	change      scan.ChangedFile
	language    lang.Language
	modifiedAt  time.Time
	fileID      int64
	definitions []extract.Definition
	references  []extract.Reference
	locals      []extract.LocalSymbol
}

// Run executes one indexing run over rootDir. Per-file parse failures are
// collected in the result, never fatal; storage mutation errors abort.
func (ix *Indexer) Run(ctx context.Context, rootDir string) (*Result, error) {
	rootDir = filepath.Clean(rootDir)
	rootSlash := filepath.ToSlash(rootDir)
	ix.resolver.Reset()

	runID, err := ix.runs.Start()
	if err != nil {
		return nil, err
	}
	result := &Result{RunID: runID}

	storedRel, storedIDs, err := ix.storedState(rootSlash)
	if err != nil {
		return nil, err
	}

	detector := scan.NewDetector(ix.cfg.Scan, ix.logger)
	changes, err := detector.DetectChanges(rootDir, storedRel)
	if err != nil {
		return nil, err
	}
	result.UnchangedCount = changes.UnchangedCount

	// When most of the tree changed, incremental bookkeeping buys nothing;
	// rebuild from scratch instead.
	if ix.overThreshold(len(storedRel), changes) {
		ix.logger.Info("change volume over incremental threshold, rebuilding index")
		result.FullRebuild = true
		for _, id := range storedIDs {
			if err := ix.db.CascadeDeleteFile(id); err != nil {
				return nil, err
			}
		}
		changes, err = detector.DetectChanges(rootDir, nil)
		if err != nil {
			return nil, err
		}
		result.UnchangedCount = 0
	}

	// Stale rows first: deleted files, and modified files whose rows are
	// about to be rebuilt.
	for _, change := range changes.Changes {
		if change.Type != scan.ChangeDeleted && change.Type != scan.ChangeModified {
			continue
		}
		abs := change.AbsPath
		file, err := ix.files.GetByPath(abs)
		if err != nil {
			return nil, err
		}
		if file == nil {
			continue
		}
		if err := ix.db.CascadeDeleteFile(file.ID); err != nil {
			return nil, err
		}
		if change.Type == scan.ChangeDeleted {
			result.FilesDeleted++
		}
	}

	// Parse phase: every outcome is collected before any insertion, and one
	// bad file never aborts its siblings.
	var parsed []*parsedFile
	for _, change := range changes.Changes {
		if change.Type == scan.ChangeDeleted {
			continue
		}
		pf, ferr := ix.parseFile(ctx, change)
		if ferr != nil {
			ix.logger.Warn("failed to parse file", "path", change.Path, "error", ferr)
			result.Errors = append(result.Errors, FileError{Path: change.Path, Message: ferr.Error()})
			continue
		}
		parsed = append(parsed, pf)
	}

	// File rows before anything else, so the known-file set is complete when
	// import paths resolve.
	for _, pf := range parsed {
		file := &storage.FileRecord{
			Path:        pf.change.AbsPath,
			Language:    string(pf.language),
			ContentHash: pf.change.Hash,
			Size:        pf.change.Size,
			ModifiedAt:  pf.modifiedAt,
		}
		if err := ix.files.Insert(file); err != nil {
			return nil, err
		}
		pf.fileID = file.ID
		result.FilesIndexed++
	}

	known, err := ix.knownFiles()
	if err != nil {
		return nil, err
	}
	workspace := ix.resolver.BuildWorkspaceMap(rootSlash, known)

	for _, pf := range parsed {
		defCount, err := ix.insertExtracted(pf, known, workspace)
		if err != nil {
			return nil, err
		}
		result.Definitions += defCount
	}

	resolved, err := ix.resolveSymbols()
	if err != nil {
		return nil, err
	}
	result.SymbolsResolved = resolved

	if _, err := ix.symbols.CleanDanglingSymbolRefs(); err != nil {
		return nil, err
	}

	graphRepo := graph.NewRepository(ix.db, ix.logger, ix.cfg.Graph.IncludeJSX)
	result.RelationsCreated, err = graphRepo.CreateInheritanceRelationships()
	if err != nil {
		return nil, err
	}

	if err := ix.finishRun(result); err != nil {
		return nil, err
	}

	ix.logger.Info("indexing run complete",
		"run_id", runID,
		"indexed", result.FilesIndexed,
		"deleted", result.FilesDeleted,
		"unchanged", result.UnchangedCount,
		"definitions", result.Definitions,
		"resolved", result.SymbolsResolved,
		"errors", len(result.Errors))
	return result, nil
}

// storedState returns the stored path -> hash map keyed by root-relative
// path, plus every stored file id.
func (ix *Indexer) storedState(rootSlash string) (map[string]string, []int64, error) {
	files, err := ix.files.GetAll()
	if err != nil {
		return nil, nil, err
	}

	rel := make(map[string]string, len(files))
	ids := make([]int64, 0, len(files))
	prefix := strings.TrimSuffix(rootSlash, "/") + "/"
	for _, f := range files {
		rel[strings.TrimPrefix(f.Path, prefix)] = f.ContentHash
		ids = append(ids, f.ID)
	}
	return rel, ids, nil
}

func (ix *Indexer) overThreshold(storedCount int, changes *scan.Result) bool {
	threshold := ix.cfg.Scan.IncrementalThreshold
	if storedCount == 0 || threshold <= 0 {
		return false
	}
	percent := float64(len(changes.Changes)) / float64(storedCount) * 100
	return percent > float64(threshold)
}

func (ix *Indexer) parseFile(ctx context.Context, change scan.ChangedFile) (*parsedFile, error) {
	source, err := os.ReadFile(filepath.FromSlash(change.AbsPath))
	if err != nil {
		return nil, err
	}

	language, _ := lang.FromPath(change.AbsPath)
	root, err := ix.parser.Parse(ctx, source, language)
	if err != nil {
		return nil, err
	}

	modifiedAt := time.Now().UTC()
	if info, statErr := os.Stat(filepath.FromSlash(change.AbsPath)); statErr == nil {
		modifiedAt = info.ModTime().UTC()
	}

	defs := extract.Definitions(root, source)
	return &parsedFile{
		change:      change,
		language:    language,
		modifiedAt:  modifiedAt,
		definitions: defs,
		references:  extract.References(root, source),
		locals:      extract.LocalUsages(root, source, defs),
	}, nil
}

// insertExtracted writes one parsed file's definitions, references, symbols
// and usages. Returns the number of definitions inserted.
func (ix *Indexer) insertExtracted(pf *parsedFile, known map[string]bool, workspace map[string]*resolve.WorkspacePackage) (int, error) {
	defIDs := make(map[string]int64, len(pf.definitions))
	for _, def := range pf.definitions {
		record := &storage.DefinitionRecord{
			FileID:     pf.fileID,
			Name:       def.Name,
			Kind:       string(def.Kind),
			IsExported: def.IsExported,
			IsDefault:  def.IsDefault,
			StartRow:   def.Range.Start.Row,
			StartCol:   def.Range.Start.Column,
			EndRow:     def.Range.End.Row,
			EndCol:     def.Range.End.Column,
			Extends:    def.Extends,
			Implements: def.Implements,
			ExtendsAll: def.ExtendsAll,
		}
		if err := ix.definitions.Insert(record); err != nil {
			return 0, err
		}
		if _, seen := defIDs[def.Name]; !seen {
			defIDs[def.Name] = record.ID
		}
	}

	for _, ref := range pf.references {
		resolvedPath, isExternal := ix.resolveReference(ref.Source, pf.change.AbsPath, known, workspace)

		imp := &storage.ImportRecord{
			FileID:       pf.fileID,
			Kind:         string(ref.Kind),
			Source:       ref.Source,
			ResolvedPath: resolvedPath,
			IsExternal:   isExternal,
			IsTypeOnly:   ref.IsTypeOnly,
			Row:          ref.Pos.Row,
			Col:          ref.Pos.Column,
		}
		if err := ix.imports.Insert(imp); err != nil {
			return 0, err
		}

		for _, sym := range ref.Symbols {
			record := &storage.SymbolRecord{
				ReferenceID: &imp.ID,
				Name:        sym.Name,
				Alias:       sym.Alias,
				Kind:        string(sym.Kind),
			}
			if err := ix.symbols.Insert(record); err != nil {
				return 0, err
			}
			if err := ix.insertUsages(record.ID, sym.Usages); err != nil {
				return 0, err
			}
		}
	}

	for _, local := range pf.locals {
		defID, ok := defIDs[local.Name]
		if !ok {
			continue
		}
		record := &storage.SymbolRecord{
			FileID:       &pf.fileID,
			Name:         local.Name,
			Alias:        local.Name,
			Kind:         "local",
			DefinitionID: &defID,
		}
		if err := ix.symbols.Insert(record); err != nil {
			return 0, err
		}
		if err := ix.insertUsages(record.ID, local.Usages); err != nil {
			return 0, err
		}
	}

	return len(pf.definitions), nil
}

// resolveReference resolves one import specifier. Bare specifiers try the
// workspace map before being marked external; unresolved relative specifiers
// stay internal with no path.
func (ix *Indexer) resolveReference(source, fromFile string, known map[string]bool, workspace map[string]*resolve.WorkspacePackage) (string, bool) {
	if resolved := ix.resolver.ResolveImportPath(source, fromFile, known); resolved != "" {
		return resolved, false
	}

	bare := !strings.HasPrefix(source, ".") &&
		!strings.HasPrefix(source, "/") &&
		!strings.HasPrefix(source, "#")
	if !bare {
		return "", false
	}
	if resolved := resolve.ResolveWorkspaceImport(source, workspace, known); resolved != "" {
		return resolved, false
	}
	return "", true
}

func (ix *Indexer) insertUsages(symbolID int64, usages []extract.Usage) error {
	for _, u := range usages {
		record := &storage.UsageRecord{
			SymbolID: symbolID,
			Row:      u.Pos.Row,
			Col:      u.Pos.Column,
			Context:  string(u.Context),
		}
		if u.Call != nil {
			argCount := u.Call.ArgCount
			record.ArgCount = &argCount
			record.IsMethodCall = u.Call.IsMethodCall
			record.IsConstructor = u.Call.IsConstructor
			record.ReceiverName = u.Call.ReceiverName
		}
		if err := ix.usages.Insert(record); err != nil {
			return err
		}
	}
	return nil
}

// resolveSymbols links unresolved cross-file symbols to definitions: direct
// lookup in the target file first, then the re-export chain fallback.
func (ix *Indexer) resolveSymbols() (int, error) {
	unresolved, err := ix.symbols.GetUnresolvedWithImports()
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, u := range unresolved {
		kind := extract.ImportKind(u.Symbol.Kind)
		if kind != extract.ImportNamed && kind != extract.ImportDefault {
			continue
		}

		sym := extract.ImportedSymbol{Name: u.Symbol.Name, Alias: u.Symbol.Alias, Kind: kind}
		defID, found, err := resolve.ResolveSymbolToDefinition(sym, u.IsExternal, u.ResolvedPath, ix.definitions)
		if err != nil {
			return 0, err
		}
		if !found && !u.IsExternal && u.ResolvedPath != "" {
			defID, found, err = resolve.FollowReExportChain(u.Symbol.Name, u.ResolvedPath, ix.imports, ix.definitions)
			if err != nil {
				return 0, err
			}
		}
		if !found {
			continue
		}
		if err := ix.symbols.SetDefinition(u.Symbol.ID, defID); err != nil {
			return 0, err
		}
		resolved++
	}
	return resolved, nil
}

func (ix *Indexer) knownFiles() (map[string]bool, error) {
	hashes, err := ix.files.HashesByPath()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(hashes))
	for path := range hashes {
		known[path] = true
	}
	return known, nil
}

func (ix *Indexer) finishRun(result *Result) error {
	errorsJSON := ""
	if len(result.Errors) > 0 {
		data, err := json.Marshal(result.Errors)
		if err != nil {
			return err
		}
		errorsJSON = string(data)
	}
	return ix.runs.Finish(&storage.IndexRunRecord{
		ID:               result.RunID,
		FilesIndexed:     result.FilesIndexed,
		FilesDeleted:     result.FilesDeleted,
		DefinitionsFound: result.Definitions,
		SymbolsResolved:  result.SymbolsResolved,
		ErrorsJSON:       errorsJSON,
	})
}
