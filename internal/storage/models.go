package storage

import (
	"time"
)

// FileRecord is a row in the files table. Path is absolute and
// slash-separated.
type FileRecord struct {
	ID          int64
	Path        string
	Language    string
	ContentHash string
	Size        int64
	ModifiedAt  time.Time
}

// DefinitionRecord is a row in the definitions table.
type DefinitionRecord struct {
	ID         int64
	FileID     int64
	Name       string
	Kind       string
	IsExported bool
	IsDefault  bool
	StartRow   int
	StartCol   int
	EndRow     int
	EndCol     int
	// Extends is the single extends-clause name of a class; empty when none.
	Extends string
	// Implements are the implements-clause names of a class.
	Implements []string
	// ExtendsAll are the extends-clause names of an interface.
	ExtendsAll []string
}

// ImportRecord is a row in the imports table. One row per reference
// statement: import, dynamic import, require, re-export, export-all.
type ImportRecord struct {
	ID     int64
	FileID int64
	Kind   string
	Source string
	// ResolvedPath is the absolute target path, empty when unresolved or
	// external.
	ResolvedPath string
	IsExternal   bool
	IsTypeOnly   bool
	Row          int
	Col          int
}

// SymbolRecord is a row in the symbols table. Exactly one of ReferenceID and
// FileID is set: cross-file symbols hang off an import, intra-file symbols
// off their file.
type SymbolRecord struct {
	ID          int64
	ReferenceID *int64
	FileID      *int64
	Name        string
	Alias       string
	Kind        string
	// DefinitionID is the resolved target, nil until resolution succeeds.
	DefinitionID *int64
}

// UsageRecord is a row in the usages table.
type UsageRecord struct {
	ID            int64
	SymbolID      int64
	Row           int
	Col           int
	Context       string
	ArgCount      *int
	IsMethodCall  bool
	IsConstructor bool
	ReceiverName  string
}

// ModuleRecord is a row in the modules table.
type ModuleRecord struct {
	ID        string
	Name      string
	IsTest    bool
	CreatedAt time.Time
}

// InteractionRecord is a persisted module-level call edge.
type InteractionRecord struct {
	ID           int64
	FromModuleID string
	ToModuleID   string
	Weight       int
	Pattern      string
	SymbolsJSON  string
	UpdatedAt    time.Time
}

// IndexRunRecord is one indexing run's bookkeeping row.
type IndexRunRecord struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       *time.Time
	FilesIndexed     int
	FilesDeleted     int
	DefinitionsFound int
	SymbolsResolved  int
	ErrorsJSON       string
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
