package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/logging"
	"codegraph/internal/storage"
)

func seedGraph(t *testing.T, db *storage.DB) {
	t.Helper()
	files := storage.NewFileRepository(db)
	defs := storage.NewDefinitionRepository(db)
	symbols := storage.NewSymbolRepository(db)
	usages := storage.NewUsageRepository(db)

	file := &storage.FileRecord{
		Path: "/repo/app.ts", Language: "typescript",
		ContentHash: "h1", Size: 10, ModifiedAt: time.Now().UTC(),
	}
	require.NoError(t, files.Insert(file))

	callee := &storage.DefinitionRecord{
		FileID: file.ID, Name: "helper", Kind: "function",
		IsExported: true, StartRow: 0, EndRow: 2,
	}
	require.NoError(t, defs.Insert(callee))
	caller := &storage.DefinitionRecord{
		FileID: file.ID, Name: "main", Kind: "function",
		IsExported: true, StartRow: 4, EndRow: 10,
	}
	require.NoError(t, defs.Insert(caller))

	sym := &storage.SymbolRecord{
		FileID: &file.ID, Name: "helper", Alias: "helper",
		Kind: "local", DefinitionID: &callee.ID,
	}
	require.NoError(t, symbols.Insert(sym))
	require.NoError(t, usages.Insert(&storage.UsageRecord{
		SymbolID: sym.ID, Row: 6, Context: "call_expression",
	}))

	modules := storage.NewModuleRepository(db)
	app, err := modules.Ensure("app", false)
	require.NoError(t, err)
	require.NoError(t, modules.AssignMember(app.ID, caller.ID))
}

func TestSnapshotRoundTrip(t *testing.T) {
	db, err := storage.Open(t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)
	defer db.Close()
	seedGraph(t, db)

	exporter := NewExporter(db, logging.NewDiscard(), false)
	snap, err := exporter.Build()
	require.NoError(t, err)
	require.Equal(t, 1, snap.Metadata.FileCount)
	require.Equal(t, 2, snap.Metadata.SymbolCount)
	require.Len(t, snap.Calls, 1)
	require.Equal(t, 1, snap.Calls[0].Weight)
	require.Len(t, snap.Modules, 1)

	// The caller carries its module name; the callee is unassigned.
	byName := map[string]Definition{}
	for _, d := range snap.Definitions {
		byName[d.Name] = d
	}
	require.Equal(t, "app", snap.Modules[0].Name)
	require.NotEmpty(t, byName["main"].Module)
	require.Empty(t, byName["helper"].Module)

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, snap))

	decoded, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, snap.Metadata.FileCount, decoded.Metadata.FileCount)
	require.Len(t, decoded.Definitions, 2)
	require.Equal(t, snap.Calls, decoded.Calls)
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	db, err := storage.Open(t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)
	defer db.Close()
	seedGraph(t, db)

	path := filepath.Join(t.TempDir(), "out", "snapshot.json.gz")
	exporter := NewExporter(db, logging.NewDiscard(), false)
	snap, err := exporter.WriteFile(path)
	require.NoError(t, err)
	require.NotNil(t, snap)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := Read(f)
	require.NoError(t, err)
	require.Equal(t, 1, decoded.Metadata.FileCount)
}

func TestSnapshotEmptyDatabase(t *testing.T) {
	db, err := storage.Open(t.TempDir(), logging.NewDiscard())
	require.NoError(t, err)
	defer db.Close()

	snap, err := NewExporter(db, logging.NewDiscard(), false).Build()
	require.NoError(t, err)
	require.Equal(t, 0, snap.Metadata.FileCount)
	require.Empty(t, snap.Calls)
	require.Empty(t, snap.Metadata.RunID)
}
