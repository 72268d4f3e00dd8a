package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/storage"
)

func (f *fixture) classDef(file *storage.FileRecord, name string, mutate func(*storage.DefinitionRecord)) *storage.DefinitionRecord {
	f.t.Helper()
	def := &storage.DefinitionRecord{
		FileID: file.ID, Name: name, Kind: "class",
		IsExported: true, StartRow: 0, EndRow: 10,
	}
	if mutate != nil {
		mutate(def)
	}
	require.NoError(f.t, f.definitions.Insert(def))
	return def
}

func (f *fixture) importOf(from, to *storage.FileRecord) {
	f.t.Helper()
	require.NoError(f.t, f.imports.Insert(&storage.ImportRecord{
		FileID: from.ID, Kind: "import", Source: "./dep", ResolvedPath: to.Path,
	}))
}

func TestInheritanceSimpleExtends(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/models.ts")
	base := f.classDef(file, "Base", nil)
	child := f.classDef(file, "Child", func(d *storage.DefinitionRecord) {
		d.StartRow, d.EndRow = 20, 30
		d.Extends = "Base"
	})

	created, err := f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 1, created)

	subclasses, err := f.definitions.GetSubclasses(base.ID)
	require.NoError(t, err)
	require.Len(t, subclasses, 1)
	require.Equal(t, child.ID, subclasses[0].ID)

	// Re-running never duplicates existing relationships.
	created, err = f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 0, created)
}

func TestInheritanceImportDisambiguation(t *testing.T) {
	f := newFixture(t)

	// Two unrelated files both define class Base; the child's file imports
	// only one of them.
	imported := f.file("/repo/a/base.ts")
	unrelated := f.file("/repo/b/base.ts")
	childFile := f.file("/repo/child.ts")

	importedBase := f.classDef(imported, "Base", nil)
	unrelatedBase := f.classDef(unrelated, "Base", nil)
	child := f.classDef(childFile, "Child", func(d *storage.DefinitionRecord) {
		d.Extends = "Base"
	})
	f.importOf(childFile, imported)

	created, err := f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 1, created)

	subclasses, err := f.definitions.GetSubclasses(importedBase.ID)
	require.NoError(t, err)
	require.Len(t, subclasses, 1)
	require.Equal(t, child.ID, subclasses[0].ID)

	none, err := f.definitions.GetSubclasses(unrelatedBase.ID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestInheritanceTransitiveImportReachability(t *testing.T) {
	f := newFixture(t)

	// child.ts -> middle.ts -> base.ts; the base definition two hops away
	// still wins over an unimported same-named one.
	baseFile := f.file("/repo/base.ts")
	middleFile := f.file("/repo/middle.ts")
	childFile := f.file("/repo/child.ts")
	otherFile := f.file("/repo/other.ts")

	reachableBase := f.classDef(baseFile, "Base", nil)
	f.classDef(otherFile, "Base", nil)
	child := f.classDef(childFile, "Child", func(d *storage.DefinitionRecord) {
		d.Extends = "Base"
	})
	f.importOf(childFile, middleFile)
	f.importOf(middleFile, baseFile)

	created, err := f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 1, created)

	subclasses, err := f.definitions.GetSubclasses(reachableBase.ID)
	require.NoError(t, err)
	require.Len(t, subclasses, 1)
	require.Equal(t, child.ID, subclasses[0].ID)
}

func TestInheritanceFallbackFirstCandidate(t *testing.T) {
	f := newFixture(t)

	// Neither candidate is import-reachable: the first candidate by id wins,
	// deterministically.
	fileA := f.file("/repo/a.ts")
	fileB := f.file("/repo/b.ts")
	childFile := f.file("/repo/child.ts")

	first := f.classDef(fileA, "Base", nil)
	f.classDef(fileB, "Base", nil)
	f.classDef(childFile, "Child", func(d *storage.DefinitionRecord) {
		d.Extends = "Base"
	})

	created, err := f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 1, created)

	subclasses, err := f.definitions.GetSubclasses(first.ID)
	require.NoError(t, err)
	require.Len(t, subclasses, 1)
}

func TestInheritanceImplementsAndInterfaceExtends(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/types.ts")

	serializable := f.classDef(file, "Serializable", func(d *storage.DefinitionRecord) {
		d.Kind = "interface"
	})
	comparable := f.classDef(file, "Comparable", func(d *storage.DefinitionRecord) {
		d.Kind = "interface"
		d.StartRow, d.EndRow = 12, 14
	})
	doc := f.classDef(file, "Document", func(d *storage.DefinitionRecord) {
		d.StartRow, d.EndRow = 20, 40
		d.Implements = []string{"Serializable", "Comparable"}
	})
	combined := f.classDef(file, "Combined", func(d *storage.DefinitionRecord) {
		d.Kind = "interface"
		d.StartRow, d.EndRow = 50, 55
		d.ExtendsAll = []string{"Serializable", "Comparable"}
	})

	created, err := f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 4, created)

	impls, err := f.definitions.GetImplementations(serializable.ID)
	require.NoError(t, err)
	require.Len(t, impls, 1)
	require.Equal(t, doc.ID, impls[0].ID)

	subs, err := f.definitions.GetSubclasses(comparable.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, combined.ID, subs[0].ID)

	// PENDING sentinel on every inferred row.
	annotations, err := storage.NewAnnotationRepository(f.db).GetForDefinition(doc.ID)
	require.NoError(t, err)
	for _, a := range annotations {
		require.Equal(t, storage.PendingDescription, a.Description)
	}
}

func TestInheritanceUnresolvableName(t *testing.T) {
	f := newFixture(t)
	file := f.file("/repo/app.ts")
	f.classDef(file, "Child", func(d *storage.DefinitionRecord) {
		d.Extends = "ExternalBase"
	})

	// Extending a name with no stored definition creates nothing.
	created, err := f.repo.CreateInheritanceRelationships()
	require.NoError(t, err)
	require.Equal(t, 0, created)
}
