package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ModuleRepository provides access to the modules and module_members tables.
type ModuleRepository struct {
	db *DB
}

// NewModuleRepository creates a new module repository.
func NewModuleRepository(db *DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// Ensure returns the module with the given name, creating it if absent.
func (r *ModuleRepository) Ensure(name string, isTest bool) (*ModuleRecord, error) {
	existing, err := r.GetByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	module := &ModuleRecord{
		ID:        uuid.NewString(),
		Name:      name,
		IsTest:    isTest,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.Exec(`
		INSERT INTO modules (id, name, is_test, created_at)
		VALUES (?, ?, ?, ?)
	`, module.ID, module.Name, boolToInt(module.IsTest), module.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to insert module: %w", err)
	}
	return module, nil
}

// GetByName retrieves a module by name. Returns nil when absent.
func (r *ModuleRepository) GetByName(name string) (*ModuleRecord, error) {
	row := r.db.QueryRow(
		"SELECT id, name, is_test, created_at FROM modules WHERE name = ?", name)
	module, err := scanModule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return module, err
}

// GetAll returns every module ordered by name.
func (r *ModuleRepository) GetAll() ([]*ModuleRecord, error) {
	rows, err := r.db.Query("SELECT id, name, is_test, created_at FROM modules ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	var modules []*ModuleRecord
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, rows.Err()
}

// AssignMember adds a definition to a module; already-assigned pairs are
// no-ops.
func (r *ModuleRepository) AssignMember(moduleID string, definitionID int64) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO module_members (module_id, definition_id)
		VALUES (?, ?)
	`, moduleID, definitionID)
	if err != nil {
		return fmt.Errorf("failed to assign module member: %w", err)
	}
	return nil
}

// MembershipByDefinition returns definition id -> module id for the whole
// table, the shape call-graph aggregation consumes.
func (r *ModuleRepository) MembershipByDefinition() (map[int64]string, error) {
	rows, err := r.db.Query("SELECT definition_id, module_id FROM module_members")
	if err != nil {
		return nil, fmt.Errorf("failed to read module membership: %w", err)
	}
	defer rows.Close()

	membership := make(map[int64]string)
	for rows.Next() {
		var defID int64
		var moduleID string
		if err := rows.Scan(&defID, &moduleID); err != nil {
			return nil, fmt.Errorf("failed to scan module member: %w", err)
		}
		membership[defID] = moduleID
	}
	return membership, rows.Err()
}

// TestModuleIDs returns the set of module ids flagged as test modules.
func (r *ModuleRepository) TestModuleIDs() (map[string]bool, error) {
	rows, err := r.db.Query("SELECT id FROM modules WHERE is_test = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to query test modules: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan module id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func scanModule(s rowScanner) (*ModuleRecord, error) {
	var module ModuleRecord
	var isTest int
	var createdAt string
	err := s.Scan(&module.ID, &module.Name, &isTest, &createdAt)
	if err != nil {
		return nil, err
	}
	module.IsTest = isTest == 1
	if module.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at format: %w", err)
	}
	return &module, nil
}

// InteractionRepository provides access to the interactions table.
type InteractionRepository struct {
	db *DB
}

// NewInteractionRepository creates a new interaction repository.
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Upsert writes a module-pair interaction, updating weight, pattern and
// symbol list when the pair already has a row. Returns true when a new row
// was created.
func (r *InteractionRepository) Upsert(interaction *InteractionRecord) (bool, error) {
	var existingID int64
	err := r.db.QueryRow(`
		SELECT id FROM interactions
		WHERE from_module_id = ? AND to_module_id = ?
	`, interaction.FromModuleID, interaction.ToModuleID).Scan(&existingID)

	now := time.Now().UTC().Format(time.RFC3339)
	switch {
	case err == sql.ErrNoRows:
		result, err := r.db.Exec(`
			INSERT INTO interactions
				(from_module_id, to_module_id, weight, pattern, symbols_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, interaction.FromModuleID, interaction.ToModuleID,
			interaction.Weight, interaction.Pattern, interaction.SymbolsJSON, now)
		if err != nil {
			return false, fmt.Errorf("failed to insert interaction: %w", err)
		}
		interaction.ID, _ = result.LastInsertId()
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up interaction: %w", err)
	default:
		_, err := r.db.Exec(`
			UPDATE interactions
			SET weight = ?, pattern = ?, symbols_json = ?, updated_at = ?
			WHERE id = ?
		`, interaction.Weight, interaction.Pattern, interaction.SymbolsJSON, now, existingID)
		if err != nil {
			return false, fmt.Errorf("failed to update interaction: %w", err)
		}
		interaction.ID = existingID
		return false, nil
	}
}

// GetAll returns every interaction ordered by module pair.
func (r *InteractionRepository) GetAll() ([]*InteractionRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, from_module_id, to_module_id, weight, pattern, symbols_json, updated_at
		FROM interactions
		ORDER BY from_module_id, to_module_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*InteractionRecord
	for rows.Next() {
		var ia InteractionRecord
		var updatedAt string
		err := rows.Scan(&ia.ID, &ia.FromModuleID, &ia.ToModuleID,
			&ia.Weight, &ia.Pattern, &ia.SymbolsJSON, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if ia.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("invalid updated_at format: %w", err)
		}
		interactions = append(interactions, &ia)
	}
	return interactions, rows.Err()
}
