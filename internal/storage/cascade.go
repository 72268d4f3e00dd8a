package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Cascade deletes keep the graph referentially consistent under incremental
// re-indexing. Each cascade runs leaf-to-root inside a single transaction:
// a failure partway through rolls back rather than leaving a dangling
// reference no sweep can repair across tables.

// CascadeDeleteDefinitions deletes the given definitions and every row that
// points at them: usages of their symbols, the symbols, metadata,
// relationship annotations from either side, module memberships, and flow
// steps from either side.
func (db *DB) CascadeDeleteDefinitions(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithTx(func(tx *sql.Tx) error {
		return cascadeDeleteDefinitionsTx(tx, ids)
	})
}

// CascadeDeleteFile deletes a file row and everything it owns: its
// definitions (cascaded), symbols and usages hanging off its imports,
// symbols owned directly by the file, and the imports themselves.
func (db *DB) CascadeDeleteFile(fileID int64) error {
	return db.WithTx(func(tx *sql.Tx) error {
		return cascadeDeleteFileTx(tx, fileID)
	})
}

func cascadeDeleteDefinitionsTx(tx *sql.Tx, ids []int64) error {
	placeholders, args := idList(ids)

	steps := []struct {
		desc  string
		query string
		both  bool // id list appears twice (from/to columns)
	}{
		{"usages of symbols", `
			DELETE FROM usages WHERE symbol_id IN (
				SELECT id FROM symbols WHERE definition_id IN (` + placeholders + `)
			)`, false},
		{"symbols", "DELETE FROM symbols WHERE definition_id IN (" + placeholders + ")", false},
		{"definition metadata", "DELETE FROM definition_metadata WHERE definition_id IN (" + placeholders + ")", false},
		{"relationship annotations", `
			DELETE FROM relationship_annotations
			WHERE from_definition_id IN (` + placeholders + `)
			   OR to_definition_id IN (` + placeholders + `)`, true},
		{"module members", "DELETE FROM module_members WHERE definition_id IN (" + placeholders + ")", false},
		{"flow steps", `
			DELETE FROM flow_definition_steps
			WHERE from_definition_id IN (` + placeholders + `)
			   OR to_definition_id IN (` + placeholders + `)`, true},
		{"definitions", "DELETE FROM definitions WHERE id IN (" + placeholders + ")", false},
	}

	for _, step := range steps {
		stepArgs := args
		if step.both {
			stepArgs = append(append([]interface{}{}, args...), args...)
		}
		if _, err := tx.Exec(step.query, stepArgs...); err != nil {
			return fmt.Errorf("cascade delete failed at %s: %w", step.desc, err)
		}
	}
	return nil
}

func cascadeDeleteFileTx(tx *sql.Tx, fileID int64) error {
	defIDs, err := fileDefinitionIDs(tx, fileID)
	if err != nil {
		return err
	}
	if len(defIDs) > 0 {
		if err := cascadeDeleteDefinitionsTx(tx, defIDs); err != nil {
			return err
		}
	}

	// Symbols reached through the file's imports, then their usages first.
	steps := []struct {
		desc  string
		query string
	}{
		{"usages of import symbols", `
			DELETE FROM usages WHERE symbol_id IN (
				SELECT id FROM symbols WHERE reference_id IN (
					SELECT id FROM imports WHERE file_id = ?
				)
			)`},
		{"import symbols", `
			DELETE FROM symbols WHERE reference_id IN (
				SELECT id FROM imports WHERE file_id = ?
			)`},
		{"usages of file symbols", `
			DELETE FROM usages WHERE symbol_id IN (
				SELECT id FROM symbols WHERE file_id = ?
			)`},
		{"file symbols", "DELETE FROM symbols WHERE file_id = ?"},
		{"imports", "DELETE FROM imports WHERE file_id = ?"},
		{"file", "DELETE FROM files WHERE id = ?"},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.query, fileID); err != nil {
			return fmt.Errorf("cascade delete failed at %s: %w", step.desc, err)
		}
	}
	return nil
}

func fileDefinitionIDs(tx *sql.Tx, fileID int64) ([]int64, error) {
	rows, err := tx.Query("SELECT id FROM definitions WHERE file_id = ?", fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file definitions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan definition id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// idList builds a placeholder string and argument slice for an IN clause.
func idList(ids []int64) (string, []interface{}) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders, args
}
