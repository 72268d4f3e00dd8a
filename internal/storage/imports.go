package storage

import (
	"database/sql"
	"fmt"

	"codegraph/internal/extract"
	"codegraph/internal/resolve"
)

// ImportRepository provides access to the imports table.
type ImportRepository struct {
	db *DB
}

// NewImportRepository creates a new import repository.
func NewImportRepository(db *DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// Insert creates a new import row and fills in its id.
func (r *ImportRepository) Insert(imp *ImportRecord) error {
	result, err := r.db.Exec(`
		INSERT INTO imports (
			file_id, kind, source, resolved_path,
			is_external, is_type_only, row, col
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		imp.FileID,
		imp.Kind,
		imp.Source,
		nullIfEmpty(imp.ResolvedPath),
		boolToInt(imp.IsExternal),
		boolToInt(imp.IsTypeOnly),
		imp.Row,
		imp.Col,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import: %w", err)
	}

	imp.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get import id: %w", err)
	}
	return nil
}

// GetForFile returns a file's imports in source order.
func (r *ImportRepository) GetForFile(fileID int64) ([]*ImportRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, file_id, kind, source, resolved_path,
		       is_external, is_type_only, row, col
		FROM imports
		WHERE file_id = ?
		ORDER BY row, col
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var imports []*ImportRecord
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// Reexports returns the re-export edges of the file at path, in the shape the
// re-export chain follower consumes. Named re-exports carry their
// alias -> original map built from the import's symbols.
func (r *ImportRepository) Reexports(path string) ([]resolve.ReexportEdge, error) {
	rows, err := r.db.Query(`
		SELECT i.id, i.kind, i.resolved_path
		FROM imports i
		JOIN files f ON f.id = i.file_id
		WHERE f.path = ? AND i.kind IN (?, ?)
		ORDER BY i.row, i.col
	`, path, string(extract.RefReExport), string(extract.RefExportAll))
	if err != nil {
		return nil, fmt.Errorf("failed to query re-exports: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id   int64
		edge resolve.ReexportEdge
	}
	var edges []pending
	for rows.Next() {
		var id int64
		var kind string
		var resolvedPath sql.NullString
		if err := rows.Scan(&id, &kind, &resolvedPath); err != nil {
			return nil, fmt.Errorf("failed to scan re-export: %w", err)
		}
		edges = append(edges, pending{
			id: id,
			edge: resolve.ReexportEdge{
				Kind:         extract.ReferenceKind(kind),
				ResolvedPath: resolvedPath.String,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]resolve.ReexportEdge, 0, len(edges))
	for _, p := range edges {
		if p.edge.Kind == extract.RefReExport {
			names, err := r.reexportNames(p.id)
			if err != nil {
				return nil, err
			}
			p.edge.Names = names
		}
		result = append(result, p.edge)
	}
	return result, nil
}

// reexportNames builds alias -> original name for one named re-export.
func (r *ImportRepository) reexportNames(importID int64) (map[string]string, error) {
	rows, err := r.db.Query(
		"SELECT name, alias FROM symbols WHERE reference_id = ?", importID)
	if err != nil {
		return nil, fmt.Errorf("failed to query re-export symbols: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var name, alias string
		if err := rows.Scan(&name, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan re-export symbol: %w", err)
		}
		if alias == "" {
			alias = name
		}
		names[alias] = name
	}
	return names, rows.Err()
}

func scanImport(s rowScanner) (*ImportRecord, error) {
	var imp ImportRecord
	var resolvedPath sql.NullString
	var isExternal, isTypeOnly int
	err := s.Scan(
		&imp.ID, &imp.FileID, &imp.Kind, &imp.Source, &resolvedPath,
		&isExternal, &isTypeOnly, &imp.Row, &imp.Col,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan import: %w", err)
	}
	imp.ResolvedPath = resolvedPath.String
	imp.IsExternal = isExternal == 1
	imp.IsTypeOnly = isTypeOnly == 1
	return &imp, nil
}
