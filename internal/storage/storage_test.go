package storage

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/extract"
	"codegraph/internal/logging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertFile(t *testing.T, db *DB, path string) *FileRecord {
	t.Helper()
	file := &FileRecord{
		Path:        path,
		Language:    "typescript",
		ContentHash: "hash-" + path,
		Size:        100,
		ModifiedAt:  time.Now().UTC(),
	}
	require.NoError(t, NewFileRepository(db).Insert(file))
	return file
}

func insertDef(t *testing.T, db *DB, fileID int64, name, kind string) *DefinitionRecord {
	t.Helper()
	def := &DefinitionRecord{
		FileID:     fileID,
		Name:       name,
		Kind:       kind,
		IsExported: true,
		StartRow:   1,
		EndRow:     10,
	}
	require.NoError(t, NewDefinitionRepository(db).Insert(def))
	return def
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
	return count
}

func TestOpenReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, logging.NewDiscard())
	require.NoError(t, err)
	insertFile(t, db, "/repo/a.ts")
	require.NoError(t, db.Close())

	db2, err := Open(dir, logging.NewDiscard())
	require.NoError(t, err)
	defer db2.Close()

	file, err := NewFileRepository(db2).GetByPath("/repo/a.ts")
	require.NoError(t, err)
	require.NotNil(t, file)
}

func TestSymbolOriginCheck(t *testing.T) {
	db := openTestDB(t)
	file := insertFile(t, db, "/repo/a.ts")

	symbols := NewSymbolRepository(db)

	// Neither origin set.
	err := symbols.Insert(&SymbolRecord{Name: "x", Alias: "x", Kind: "named"})
	require.Error(t, err)

	// File origin alone is valid.
	err = symbols.Insert(&SymbolRecord{FileID: &file.ID, Name: "x", Alias: "x", Kind: "named"})
	require.NoError(t, err)
}

func TestNameMapDefaultKeys(t *testing.T) {
	db := openTestDB(t)
	file := insertFile(t, db, "/repo/button.ts")

	defs := NewDefinitionRepository(db)
	def := &DefinitionRecord{
		FileID: file.ID, Name: "Button", Kind: "class",
		IsExported: true, IsDefault: true, StartRow: 1, EndRow: 5,
	}
	require.NoError(t, defs.Insert(def))

	nameMap, err := defs.NameMap("/repo/button.ts")
	require.NoError(t, err)
	require.Equal(t, def.ID, nameMap["Button"])
	require.Equal(t, def.ID, nameMap["default"])

	empty, err := defs.NameMap("/repo/missing.ts")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCascadeDeleteFileIntegrity(t *testing.T) {
	db := openTestDB(t)

	// lib.ts defines helper; app.ts imports and uses it.
	lib := insertFile(t, db, "/repo/lib.ts")
	app := insertFile(t, db, "/repo/app.ts")
	helper := insertDef(t, db, lib.ID, "helper", "function")
	appMain := insertDef(t, db, app.ID, "main", "function")

	imports := NewImportRepository(db)
	imp := &ImportRecord{
		FileID: app.ID, Kind: "import", Source: "./lib",
		ResolvedPath: "/repo/lib.ts", Row: 0, Col: 0,
	}
	require.NoError(t, imports.Insert(imp))

	symbols := NewSymbolRepository(db)
	sym := &SymbolRecord{
		ReferenceID: &imp.ID, Name: "helper", Alias: "helper",
		Kind: "named", DefinitionID: &helper.ID,
	}
	require.NoError(t, symbols.Insert(sym))

	usages := NewUsageRepository(db)
	require.NoError(t, usages.Insert(&UsageRecord{
		SymbolID: sym.ID, Row: 3, Col: 2, Context: "call_expression",
	}))

	// Consumer tables referencing the definitions.
	meta := NewMetadataRepository(db)
	require.NoError(t, meta.Set(helper.ID, "purpose", "does things"))
	annotations := NewAnnotationRepository(db)
	require.NoError(t, db.WithTx(func(tx *sql.Tx) error {
		return annotations.InsertTx(tx, appMain.ID, helper.ID, "calls", PendingDescription)
	}))

	// Deleting app.ts removes its definition, import, symbol, usage, and the
	// relationship touching its definition; lib.ts stays intact.
	require.NoError(t, db.CascadeDeleteFile(app.ID))

	require.Equal(t, 1, countRows(t, db, "files"))
	require.Equal(t, 1, countRows(t, db, "definitions"))
	require.Equal(t, 0, countRows(t, db, "imports"))
	require.Equal(t, 0, countRows(t, db, "symbols"))
	require.Equal(t, 0, countRows(t, db, "usages"))
	require.Equal(t, 0, countRows(t, db, "relationship_annotations"))
	require.Equal(t, 1, countRows(t, db, "definition_metadata"))

	// Deleting lib.ts clears the rest.
	require.NoError(t, db.CascadeDeleteFile(lib.ID))
	require.Equal(t, 0, countRows(t, db, "files"))
	require.Equal(t, 0, countRows(t, db, "definitions"))
	require.Equal(t, 0, countRows(t, db, "definition_metadata"))
}

func TestCascadeDeleteDefinitionsLeavesSymbols(t *testing.T) {
	db := openTestDB(t)
	lib := insertFile(t, db, "/repo/lib.ts")
	app := insertFile(t, db, "/repo/app.ts")
	helper := insertDef(t, db, lib.ID, "helper", "function")

	imports := NewImportRepository(db)
	imp := &ImportRecord{FileID: app.ID, Kind: "import", Source: "./lib", ResolvedPath: "/repo/lib.ts"}
	require.NoError(t, imports.Insert(imp))

	symbols := NewSymbolRepository(db)
	resolved := &SymbolRecord{ReferenceID: &imp.ID, Name: "helper", Alias: "helper", Kind: "named", DefinitionID: &helper.ID}
	require.NoError(t, symbols.Insert(resolved))
	unresolved := &SymbolRecord{ReferenceID: &imp.ID, Name: "other", Alias: "other", Kind: "named"}
	require.NoError(t, symbols.Insert(unresolved))

	require.NoError(t, db.CascadeDeleteDefinitions([]int64{helper.ID}))

	// The symbol pointing at the deleted definition is gone; the unresolved
	// one survives.
	require.Equal(t, 1, countRows(t, db, "symbols"))
	require.Equal(t, 0, countRows(t, db, "definitions"))
}

func TestCleanDanglingSymbolRefs(t *testing.T) {
	db := openTestDB(t)
	file := insertFile(t, db, "/repo/a.ts")
	def := insertDef(t, db, file.ID, "x", "const")

	symbols := NewSymbolRepository(db)
	sym := &SymbolRecord{FileID: &file.ID, Name: "x", Alias: "x", Kind: "named", DefinitionID: &def.ID}
	require.NoError(t, symbols.Insert(sym))

	// Delete the definition out from under the symbol, bypassing the cascade.
	_, err := db.Exec("DELETE FROM definitions WHERE id = ?", def.ID)
	require.NoError(t, err)

	cleaned, err := symbols.CleanDanglingSymbolRefs()
	require.NoError(t, err)
	require.Equal(t, int64(1), cleaned)

	// Idempotent.
	cleaned, err = symbols.CleanDanglingSymbolRefs()
	require.NoError(t, err)
	require.Equal(t, int64(0), cleaned)
}

func TestReexportsLookup(t *testing.T) {
	db := openTestDB(t)
	barrel := insertFile(t, db, "/repo/index.ts")

	imports := NewImportRepository(db)
	all := &ImportRecord{FileID: barrel.ID, Kind: "export-all", Source: "./util", ResolvedPath: "/repo/util.ts", Row: 0}
	require.NoError(t, imports.Insert(all))
	named := &ImportRecord{FileID: barrel.ID, Kind: "re-export", Source: "./impl", ResolvedPath: "/repo/impl.ts", Row: 1}
	require.NoError(t, imports.Insert(named))
	plain := &ImportRecord{FileID: barrel.ID, Kind: "import", Source: "react", IsExternal: true, Row: 2}
	require.NoError(t, imports.Insert(plain))

	symbols := NewSymbolRepository(db)
	require.NoError(t, symbols.Insert(&SymbolRecord{
		ReferenceID: &named.ID, Name: "internalName", Alias: "publicName", Kind: "named",
	}))

	edges, err := imports.Reexports("/repo/index.ts")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	require.Equal(t, extract.RefExportAll, edges[0].Kind)
	require.Equal(t, "/repo/util.ts", edges[0].ResolvedPath)
	require.Equal(t, extract.RefReExport, edges[1].Kind)
	require.Equal(t, map[string]string{"publicName": "internalName"}, edges[1].Names)
}

func TestInteractionUpsert(t *testing.T) {
	db := openTestDB(t)

	modules := NewModuleRepository(db)
	auth, err := modules.Ensure("auth", false)
	require.NoError(t, err)
	api, err := modules.Ensure("api", false)
	require.NoError(t, err)

	// Ensure is idempotent.
	again, err := modules.Ensure("auth", false)
	require.NoError(t, err)
	require.Equal(t, auth.ID, again.ID)

	interactions := NewInteractionRepository(db)
	created, err := interactions.Upsert(&InteractionRecord{
		FromModuleID: api.ID, ToModuleID: auth.ID,
		Weight: 5, Pattern: "business", SymbolsJSON: `["login"]`,
	})
	require.NoError(t, err)
	require.True(t, created)

	created, err = interactions.Upsert(&InteractionRecord{
		FromModuleID: api.ID, ToModuleID: auth.ID,
		Weight: 12, Pattern: "utility", SymbolsJSON: `["login","verify"]`,
	})
	require.NoError(t, err)
	require.False(t, created)

	all, err := interactions.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 12, all[0].Weight)
	require.Equal(t, "utility", all[0].Pattern)
}

func TestIndexRuns(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)

	id, err := runs.Start()
	require.NoError(t, err)

	require.NoError(t, runs.Finish(&IndexRunRecord{
		ID: id, FilesIndexed: 3, DefinitionsFound: 12, SymbolsResolved: 9,
	}))

	latest, err := runs.Latest()
	require.NoError(t, err)
	require.Equal(t, id, latest.ID)
	require.NotNil(t, latest.FinishedAt)
	require.Equal(t, 3, latest.FilesIndexed)
}
