package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRepository provides access to the index_runs table.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start records the beginning of an indexing run and returns its id.
func (r *RunRepository) Start() (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(`
		INSERT INTO index_runs (id, started_at)
		VALUES (?, ?)
	`, id, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to start index run: %w", err)
	}
	return id, nil
}

// Finish records an indexing run's results.
func (r *RunRepository) Finish(run *IndexRunRecord) error {
	_, err := r.db.Exec(`
		UPDATE index_runs
		SET finished_at = ?,
		    files_indexed = ?,
		    files_deleted = ?,
		    definitions_found = ?,
		    symbols_resolved = ?,
		    errors_json = ?
		WHERE id = ?
	`,
		time.Now().UTC().Format(time.RFC3339),
		run.FilesIndexed,
		run.FilesDeleted,
		run.DefinitionsFound,
		run.SymbolsResolved,
		nullIfEmpty(run.ErrorsJSON),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish index run: %w", err)
	}
	return nil
}

// Latest returns the most recent run, or nil when none exists.
func (r *RunRepository) Latest() (*IndexRunRecord, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, finished_at,
		       files_indexed, files_deleted, definitions_found, symbols_resolved,
		       errors_json
		FROM index_runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	var run IndexRunRecord
	var startedAt string
	var finishedAt, errorsJSON sql.NullString
	err := row.Scan(&run.ID, &startedAt, &finishedAt,
		&run.FilesIndexed, &run.FilesDeleted, &run.DefinitionsFound, &run.SymbolsResolved,
		&errorsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at format: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid finished_at format: %w", err)
		}
		run.FinishedAt = &t
	}
	run.ErrorsJSON = errorsJSON.String
	return &run, nil
}
