package storage

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database.
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createGraphTables(tx); err != nil {
			return err
		}
		if err := createAnnotationTables(tx); err != nil {
			return err
		}
		if err := createModuleTables(tx); err != nil {
			return err
		}
		if err := createIndexRunsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations.
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("database schema is up to date", "version", version)
		return nil
	}

	db.logger.Info("running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion)

	// Migration functions go here as the schema evolves.

	return nil
}

func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createGraphTables creates the core tables: files, definitions, imports,
// symbols, usages.
func createGraphTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			language TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			size INTEGER NOT NULL,
			modified_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS definitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER NOT NULL REFERENCES files(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('function', 'class', 'variable', 'const', 'type', 'interface', 'enum')),
			is_exported INTEGER NOT NULL DEFAULT 0,
			is_default INTEGER NOT NULL DEFAULT 0,
			start_row INTEGER NOT NULL,
			start_col INTEGER NOT NULL,
			end_row INTEGER NOT NULL,
			end_col INTEGER NOT NULL,
			extends_name TEXT,
			implements_json TEXT,
			extends_all_json TEXT
		)
	`); err != nil {
		return fmt.Errorf("failed to create definitions table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS imports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER NOT NULL REFERENCES files(id),
			kind TEXT NOT NULL CHECK(kind IN ('import', 'dynamic-import', 'require', 're-export', 'export-all')),
			source TEXT NOT NULL,
			resolved_path TEXT,
			is_external INTEGER NOT NULL DEFAULT 0,
			is_type_only INTEGER NOT NULL DEFAULT 0,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create imports table: %w", err)
	}

	// A symbol originates from exactly one of: an import statement
	// (cross-file) or a file directly (intra-file).
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS symbols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference_id INTEGER REFERENCES imports(id),
			file_id INTEGER REFERENCES files(id),
			name TEXT NOT NULL,
			alias TEXT NOT NULL,
			kind TEXT NOT NULL,
			definition_id INTEGER REFERENCES definitions(id),

			CHECK((reference_id IS NULL) != (file_id IS NULL))
		)
	`); err != nil {
		return fmt.Errorf("failed to create symbols table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS usages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id INTEGER NOT NULL REFERENCES symbols(id),
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			context TEXT NOT NULL,
			arg_count INTEGER,
			is_method_call INTEGER NOT NULL DEFAULT 0,
			is_constructor INTEGER NOT NULL DEFAULT 0,
			receiver_name TEXT
		)
	`); err != nil {
		return fmt.Errorf("failed to create usages table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_definitions_file_id ON definitions(file_id)",
		"CREATE INDEX IF NOT EXISTS idx_definitions_name ON definitions(name)",
		"CREATE INDEX IF NOT EXISTS idx_imports_file_id ON imports(file_id)",
		"CREATE INDEX IF NOT EXISTS idx_imports_resolved_path ON imports(resolved_path)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_reference_id ON symbols(reference_id)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_file_id ON symbols(file_id)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_definition_id ON symbols(definition_id)",
		"CREATE INDEX IF NOT EXISTS idx_usages_symbol_id ON usages(symbol_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createAnnotationTables creates the consumer-owned tables the engine writes
// into: definition metadata, relationship annotations, flow steps.
func createAnnotationTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS definition_metadata (
			definition_id INTEGER NOT NULL REFERENCES definitions(id),
			aspect TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (definition_id, aspect)
		)
	`); err != nil {
		return fmt.Errorf("failed to create definition_metadata table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS relationship_annotations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_definition_id INTEGER NOT NULL REFERENCES definitions(id),
			to_definition_id INTEGER NOT NULL REFERENCES definitions(id),
			kind TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at TEXT NOT NULL,

			UNIQUE (from_definition_id, to_definition_id, kind)
		)
	`); err != nil {
		return fmt.Errorf("failed to create relationship_annotations table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS flow_definition_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flow_name TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			from_definition_id INTEGER REFERENCES definitions(id),
			to_definition_id INTEGER REFERENCES definitions(id)
		)
	`); err != nil {
		return fmt.Errorf("failed to create flow_definition_steps table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_relationship_annotations_from ON relationship_annotations(from_definition_id)",
		"CREATE INDEX IF NOT EXISTS idx_relationship_annotations_to ON relationship_annotations(to_definition_id)",
		"CREATE INDEX IF NOT EXISTS idx_flow_steps_from ON flow_definition_steps(from_definition_id)",
		"CREATE INDEX IF NOT EXISTS idx_flow_steps_to ON flow_definition_steps(to_definition_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createModuleTables creates modules, module_members and interactions.
func createModuleTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS modules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			is_test INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create modules table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS module_members (
			module_id TEXT NOT NULL REFERENCES modules(id),
			definition_id INTEGER NOT NULL REFERENCES definitions(id),

			PRIMARY KEY (module_id, definition_id)
		)
	`); err != nil {
		return fmt.Errorf("failed to create module_members table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_module_id TEXT NOT NULL REFERENCES modules(id),
			to_module_id TEXT NOT NULL REFERENCES modules(id),
			weight INTEGER NOT NULL,
			pattern TEXT NOT NULL,
			symbols_json TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			UNIQUE (from_module_id, to_module_id)
		)
	`); err != nil {
		return fmt.Errorf("failed to create interactions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_module_members_definition_id ON module_members(definition_id)",
		"CREATE INDEX IF NOT EXISTS idx_interactions_to_module ON interactions(to_module_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createIndexRunsTable creates the per-run bookkeeping table.
func createIndexRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS index_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			files_indexed INTEGER NOT NULL DEFAULT 0,
			files_deleted INTEGER NOT NULL DEFAULT 0,
			definitions_found INTEGER NOT NULL DEFAULT 0,
			symbols_resolved INTEGER NOT NULL DEFAULT 0,
			errors_json TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index_runs table: %w", err)
	}
	return nil
}
