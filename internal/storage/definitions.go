package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// DefinitionRepository provides access to the definitions table.
type DefinitionRepository struct {
	db *DB
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

const definitionColumns = `id, file_id, name, kind, is_exported, is_default,
	start_row, start_col, end_row, end_col,
	extends_name, implements_json, extends_all_json`

// Insert creates a new definition row and fills in its id.
func (r *DefinitionRepository) Insert(def *DefinitionRecord) error {
	implementsJSON, err := marshalNames(def.Implements)
	if err != nil {
		return err
	}
	extendsAllJSON, err := marshalNames(def.ExtendsAll)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(`
		INSERT INTO definitions (
			file_id, name, kind, is_exported, is_default,
			start_row, start_col, end_row, end_col,
			extends_name, implements_json, extends_all_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		def.FileID,
		def.Name,
		def.Kind,
		boolToInt(def.IsExported),
		boolToInt(def.IsDefault),
		def.StartRow,
		def.StartCol,
		def.EndRow,
		def.EndCol,
		nullIfEmpty(def.Extends),
		implementsJSON,
		extendsAllJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert definition: %w", err)
	}

	def.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get definition id: %w", err)
	}
	return nil
}

// GetByID retrieves a definition by id. Returns nil when absent.
func (r *DefinitionRepository) GetByID(id int64) (*DefinitionRecord, error) {
	row := r.db.QueryRow(
		"SELECT "+definitionColumns+" FROM definitions WHERE id = ?", id)
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, nil
}

// GetByName returns all definitions with the given name, across files.
func (r *DefinitionRepository) GetByName(name string) ([]*DefinitionRecord, error) {
	return r.queryDefinitions(
		"SELECT "+definitionColumns+" FROM definitions WHERE name = ? ORDER BY id", name)
}

// GetForFile returns a file's definitions in source order.
func (r *DefinitionRepository) GetForFile(fileID int64) ([]*DefinitionRecord, error) {
	return r.queryDefinitions(
		"SELECT "+definitionColumns+" FROM definitions WHERE file_id = ? ORDER BY start_row, start_col", fileID)
}

// GetAll returns definitions filtered by kind and export status. Empty kind
// matches all kinds; nil exported matches both statuses.
func (r *DefinitionRepository) GetAll(kind string, exported *bool) ([]*DefinitionRecord, error) {
	query := "SELECT " + definitionColumns + " FROM definitions WHERE 1=1"
	var args []interface{}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if exported != nil {
		query += " AND is_exported = ?"
		args = append(args, boolToInt(*exported))
	}
	query += " ORDER BY id"
	return r.queryDefinitions(query, args...)
}

// NameMap returns name -> definition id for a file's definitions, looked up
// by file path. Default exports appear under both their own name and the
// "default" key. Unknown paths return an empty map.
func (r *DefinitionRepository) NameMap(path string) (map[string]int64, error) {
	rows, err := r.db.Query(`
		SELECT d.name, d.is_default, d.id
		FROM definitions d
		JOIN files f ON f.id = d.file_id
		WHERE f.path = ?
		ORDER BY d.id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition name map: %w", err)
	}
	defer rows.Close()

	nameMap := make(map[string]int64)
	for rows.Next() {
		var name string
		var isDefault int
		var id int64
		if err := rows.Scan(&name, &isDefault, &id); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if _, seen := nameMap[name]; !seen {
			nameMap[name] = id
		}
		if isDefault == 1 {
			if _, seen := nameMap["default"]; !seen {
				nameMap["default"] = id
			}
		}
	}
	return nameMap, rows.Err()
}

// WithHeritage returns every definition carrying an extends, implements or
// extends-all clause, the input set for inheritance inference.
func (r *DefinitionRepository) WithHeritage() ([]*DefinitionRecord, error) {
	return r.queryDefinitions(`
		SELECT ` + definitionColumns + `
		FROM definitions
		WHERE extends_name IS NOT NULL
		   OR implements_json IS NOT NULL
		   OR extends_all_json IS NOT NULL
		ORDER BY id
	`)
}

// GetSubclasses returns definitions related to the given definition by an
// extends relationship annotation.
func (r *DefinitionRepository) GetSubclasses(defID int64) ([]*DefinitionRecord, error) {
	return r.relatedBy(defID, "extends")
}

// GetImplementations returns definitions related to the given definition by
// an implements relationship annotation.
func (r *DefinitionRepository) GetImplementations(defID int64) ([]*DefinitionRecord, error) {
	return r.relatedBy(defID, "implements")
}

func (r *DefinitionRepository) relatedBy(defID int64, kind string) ([]*DefinitionRecord, error) {
	return r.queryDefinitions(`
		SELECT d.id, d.file_id, d.name, d.kind, d.is_exported, d.is_default,
			d.start_row, d.start_col, d.end_row, d.end_col,
			d.extends_name, d.implements_json, d.extends_all_json
		FROM definitions d
		JOIN relationship_annotations ra ON ra.from_definition_id = d.id
		WHERE ra.to_definition_id = ? AND ra.kind = ?
		ORDER BY d.id
	`, defID, kind)
}

func (r *DefinitionRepository) queryDefinitions(query string, args ...interface{}) ([]*DefinitionRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	var defs []*DefinitionRecord
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanDefinition(s rowScanner) (*DefinitionRecord, error) {
	var def DefinitionRecord
	var isExported, isDefault int
	var extendsName, implementsJSON, extendsAllJSON sql.NullString

	err := s.Scan(
		&def.ID, &def.FileID, &def.Name, &def.Kind, &isExported, &isDefault,
		&def.StartRow, &def.StartCol, &def.EndRow, &def.EndCol,
		&extendsName, &implementsJSON, &extendsAllJSON,
	)
	if err != nil {
		return nil, err
	}

	def.IsExported = isExported == 1
	def.IsDefault = isDefault == 1
	def.Extends = extendsName.String
	if def.Implements, err = unmarshalNames(implementsJSON); err != nil {
		return nil, err
	}
	if def.ExtendsAll, err = unmarshalNames(extendsAllJSON); err != nil {
		return nil, err
	}
	return &def, nil
}

func marshalNames(names []string) (interface{}, error) {
	if len(names) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal name list: %w", err)
	}
	return string(data), nil
}

func unmarshalNames(value sql.NullString) ([]string, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(value.String), &names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal name list: %w", err)
	}
	return names, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
