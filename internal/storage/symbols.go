package storage

import (
	"fmt"
)

// SymbolRepository provides access to the symbols table.
type SymbolRepository struct {
	db *DB
}

// NewSymbolRepository creates a new symbol repository.
func NewSymbolRepository(db *DB) *SymbolRepository {
	return &SymbolRepository{db: db}
}

// Insert creates a new symbol row and fills in its id. Exactly one of
// ReferenceID and FileID must be set; the schema enforces this.
func (r *SymbolRepository) Insert(sym *SymbolRecord) error {
	result, err := r.db.Exec(`
		INSERT INTO symbols (reference_id, file_id, name, alias, kind, definition_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		sym.ReferenceID,
		sym.FileID,
		sym.Name,
		sym.Alias,
		sym.Kind,
		sym.DefinitionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert symbol: %w", err)
	}

	sym.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get symbol id: %w", err)
	}
	return nil
}

// SetDefinition records the resolved target definition for a symbol.
func (r *SymbolRepository) SetDefinition(symbolID, definitionID int64) error {
	_, err := r.db.Exec(
		"UPDATE symbols SET definition_id = ? WHERE id = ?", definitionID, symbolID)
	if err != nil {
		return fmt.Errorf("failed to set symbol definition: %w", err)
	}
	return nil
}

// GetForReference returns the symbols belonging to one import.
func (r *SymbolRepository) GetForReference(referenceID int64) ([]*SymbolRecord, error) {
	return r.querySymbols(`
		SELECT id, reference_id, file_id, name, alias, kind, definition_id
		FROM symbols
		WHERE reference_id = ?
		ORDER BY id
	`, referenceID)
}

// GetUnresolved returns cross-file symbols whose definition is still unknown.
func (r *SymbolRepository) GetUnresolved() ([]*SymbolRecord, error) {
	return r.querySymbols(`
		SELECT id, reference_id, file_id, name, alias, kind, definition_id
		FROM symbols
		WHERE definition_id IS NULL AND reference_id IS NOT NULL
		ORDER BY id
	`)
}

// UnresolvedSymbol pairs an unresolved cross-file symbol with its import's
// resolution state.
type UnresolvedSymbol struct {
	Symbol       SymbolRecord
	ResolvedPath string
	IsExternal   bool
}

// GetUnresolvedWithImports returns unresolved cross-file symbols joined with
// their import's resolved path and external flag, the input set for the
// resolution pass.
func (r *SymbolRepository) GetUnresolvedWithImports() ([]*UnresolvedSymbol, error) {
	rows, err := r.db.Query(`
		SELECT s.id, s.reference_id, s.name, s.alias, s.kind,
		       COALESCE(i.resolved_path, ''), i.is_external
		FROM symbols s
		JOIN imports i ON i.id = s.reference_id
		WHERE s.definition_id IS NULL
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved symbols: %w", err)
	}
	defer rows.Close()

	var result []*UnresolvedSymbol
	for rows.Next() {
		var u UnresolvedSymbol
		var isExternal int
		err := rows.Scan(&u.Symbol.ID, &u.Symbol.ReferenceID,
			&u.Symbol.Name, &u.Symbol.Alias, &u.Symbol.Kind,
			&u.ResolvedPath, &isExternal)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unresolved symbol: %w", err)
		}
		u.IsExternal = isExternal == 1
		result = append(result, &u)
	}
	return result, rows.Err()
}

// CleanDanglingSymbolRefs nulls any definition_id pointing at a definition
// that no longer exists. Idempotent; a safety net for mutation paths that
// bypass the cascade helpers. Returns the number of symbols repaired.
func (r *SymbolRepository) CleanDanglingSymbolRefs() (int64, error) {
	result, err := r.db.Exec(`
		UPDATE symbols
		SET definition_id = NULL
		WHERE definition_id IS NOT NULL
		  AND definition_id NOT IN (SELECT id FROM definitions)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean dangling symbol refs: %w", err)
	}
	cleaned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return cleaned, nil
}

func (r *SymbolRepository) querySymbols(query string, args ...interface{}) ([]*SymbolRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []*SymbolRecord
	for rows.Next() {
		var sym SymbolRecord
		err := rows.Scan(
			&sym.ID, &sym.ReferenceID, &sym.FileID,
			&sym.Name, &sym.Alias, &sym.Kind, &sym.DefinitionID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, &sym)
	}
	return symbols, rows.Err()
}
