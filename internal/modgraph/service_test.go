package modgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/config"
	"codegraph/internal/logging"
	"codegraph/internal/storage"
)

type fixture struct {
	t       *testing.T
	db      *storage.DB
	svc     *Service
	files   *storage.FileRepository
	defs    *storage.DefinitionRepository
	symbols *storage.SymbolRepository
	usages  *storage.UsageRepository
	modules *storage.ModuleRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &fixture{
		t:       t,
		db:      db,
		svc:     NewService(db, config.DefaultConfig().Modules, logging.NewDiscard(), false),
		files:   storage.NewFileRepository(db),
		defs:    storage.NewDefinitionRepository(db),
		symbols: storage.NewSymbolRepository(db),
		usages:  storage.NewUsageRepository(db),
		modules: storage.NewModuleRepository(db),
	}
}

func (f *fixture) file(path string) *storage.FileRecord {
	f.t.Helper()
	file := &storage.FileRecord{
		Path: path, Language: "typescript",
		ContentHash: "h", Size: 1, ModifiedAt: time.Now().UTC(),
	}
	require.NoError(f.t, f.files.Insert(file))
	return file
}

// member creates a definition in the given file and module.
func (f *fixture) member(file *storage.FileRecord, module *storage.ModuleRecord, name, kind string, startRow, endRow int) *storage.DefinitionRecord {
	f.t.Helper()
	def := &storage.DefinitionRecord{
		FileID: file.ID, Name: name, Kind: kind,
		IsExported: true, StartRow: startRow, EndRow: endRow,
	}
	require.NoError(f.t, f.defs.Insert(def))
	require.NoError(f.t, f.modules.AssignMember(module.ID, def.ID))
	return def
}

// call records count intra-file call usages of target starting at the given
// row (each on its own row so they stay inside the caller's range).
func (f *fixture) call(file *storage.FileRecord, target *storage.DefinitionRecord, startRow, count int) {
	f.t.Helper()
	sym := &storage.SymbolRecord{
		FileID: &file.ID, Name: target.Name, Alias: target.Name,
		Kind: "local", DefinitionID: &target.ID,
	}
	require.NoError(f.t, f.symbols.Insert(sym))
	for i := 0; i < count; i++ {
		require.NoError(f.t, f.usages.Insert(&storage.UsageRecord{
			SymbolID: sym.ID, Row: startRow + i, Context: "call_expression",
		}))
	}
}

func (f *fixture) module(name string, isTest bool) *storage.ModuleRecord {
	f.t.Helper()
	m, err := f.modules.Ensure(name, isTest)
	require.NoError(f.t, err)
	return m
}

func TestBuildModuleCallGraphAggregation(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/app.ts")

	api := f.module("api", false)
	auth := f.module("auth", false)

	login := f.member(file, auth, "login", "function", 100, 110)
	handler := f.member(file, api, "handler", "function", 0, 20)
	f.call(file, login, 5, 2)

	// Same-module edge dropped: handler also calls another api member.
	other := f.member(file, api, "other", "function", 200, 210)
	f.call(file, other, 10, 1)

	edges, err := f.svc.BuildModuleCallGraph()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, api.ID, edges[0].FromModuleID)
	require.Equal(t, auth.ID, edges[0].ToModuleID)
	require.Equal(t, 2, edges[0].Weight)
	require.Equal(t, 1, edges[0].CallerCount)
	require.Len(t, edges[0].CalledSymbols, 1)
	require.Equal(t, "login", edges[0].CalledSymbols[0].Name)
	require.Equal(t, PatternBusiness, edges[0].Pattern)

	_ = handler
}

func TestClassifyUtility(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/app.ts")

	app := f.module("app", false)
	util := f.module("util", false)

	// Three distinct callers, 12 calls total to one function: weight 11+ with
	// avg calls/symbol > 3 and no class involved.
	format := f.member(file, util, "format", "function", 500, 510)
	f.member(file, app, "a", "function", 0, 10)
	f.member(file, app, "b", "function", 20, 30)
	f.member(file, app, "c", "function", 40, 50)
	f.call(file, format, 0, 4)
	f.call(file, format, 20, 4)
	f.call(file, format, 40, 4)

	edges, err := f.svc.BuildModuleCallGraph()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, 12, edges[0].Weight)
	require.Equal(t, 3, edges[0].CallerCount)
	require.Equal(t, PatternUtility, edges[0].Pattern)
}

func TestClassifyClassBlocksUtility(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/app.ts")

	app := f.module("app", false)
	util := f.module("util", false)

	// Same traffic shape as the utility case, but the callee is a class.
	helper := f.member(file, util, "Helper", "class", 500, 510)
	f.member(file, app, "a", "function", 0, 10)
	f.member(file, app, "b", "function", 20, 30)
	f.member(file, app, "c", "function", 40, 50)
	f.call(file, helper, 0, 4)
	f.call(file, helper, 20, 4)
	f.call(file, helper, 40, 4)

	edges, err := f.svc.BuildModuleCallGraph()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, PatternBusiness, edges[0].Pattern)
}

func TestClassifyTestInternal(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/tests.ts")

	specs := f.module("specs", true)
	helpers := f.module("test-helpers", true)

	mock := f.member(file, helpers, "mockDb", "function", 100, 110)
	f.member(file, specs, "spec", "function", 0, 20)
	f.call(file, mock, 5, 1)

	edges, err := f.svc.BuildModuleCallGraph()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, PatternTestInternal, edges[0].Pattern)
}

func TestSyncFromCallGraphUpsert(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/app.ts")

	api := f.module("api", false)
	auth := f.module("auth", false)

	login := f.member(file, auth, "login", "function", 100, 110)
	f.member(file, api, "handler", "function", 0, 20)
	f.call(file, login, 5, 2)

	result, err := f.svc.SyncFromCallGraph()
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 0, result.Updated)

	// More traffic on the same pair updates in place.
	f.call(file, login, 7, 3)
	result, err = f.svc.SyncFromCallGraph()
	require.NoError(t, err)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.Updated)

	stored, err := storage.NewInteractionRepository(f.db).GetAll()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, 5, stored[0].Weight)
}

func TestUnassignedDefinitionsDropped(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/app.ts")

	auth := f.module("auth", false)
	login := f.member(file, auth, "login", "function", 100, 110)

	// Caller has no module assignment: the edge contributes nothing.
	def := &storage.DefinitionRecord{
		FileID: file.ID, Name: "orphan", Kind: "function",
		StartRow: 0, EndRow: 20,
	}
	require.NoError(t, f.defs.Insert(def))
	f.call(file, login, 5, 1)

	edges, err := f.svc.BuildModuleCallGraph()
	require.NoError(t, err)
	require.Empty(t, edges)
}
