package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// PendingDescription marks a relationship row that was inferred structurally
// and has not yet been described by the annotation layer.
const PendingDescription = "PENDING"

// MetadataRepository provides access to the definition_metadata table.
type MetadataRepository struct {
	db *DB
}

// NewMetadataRepository creates a new metadata repository.
func NewMetadataRepository(db *DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Set upserts metadata content for a definition and aspect.
func (r *MetadataRepository) Set(definitionID int64, aspect, content string) error {
	_, err := r.db.Exec(`
		INSERT INTO definition_metadata (definition_id, aspect, content, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (definition_id, aspect) DO UPDATE SET content = excluded.content
	`, definitionID, aspect, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set definition metadata: %w", err)
	}
	return nil
}

// AnnotatedIDs returns the set of definition ids carrying metadata for the
// given aspect.
func (r *MetadataRepository) AnnotatedIDs(aspect string) (map[int64]bool, error) {
	rows, err := r.db.Query(
		"SELECT definition_id FROM definition_metadata WHERE aspect = ?", aspect)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotated definitions: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan definition id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// RelationshipAnnotation is a row in the relationship_annotations table.
type RelationshipAnnotation struct {
	ID               int64
	FromDefinitionID int64
	ToDefinitionID   int64
	Kind             string
	Description      string
	CreatedAt        time.Time
}

// AnnotationRepository provides access to the relationship_annotations table.
type AnnotationRepository struct {
	db *DB
}

// NewAnnotationRepository creates a new annotation repository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// EdgeExists reports whether a relationship of the given kind already links
// the pair.
func (r *AnnotationRepository) EdgeExists(fromID, toID int64, kind string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM relationship_annotations
		WHERE from_definition_id = ? AND to_definition_id = ? AND kind = ?
	`, fromID, toID, kind).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check relationship: %w", err)
	}
	return true, nil
}

// InsertTx creates a relationship row within a caller-owned transaction.
// Inheritance inference batches its inserts this way so a failure rolls the
// whole batch back.
func (r *AnnotationRepository) InsertTx(tx *sql.Tx, fromID, toID int64, kind, description string) error {
	_, err := tx.Exec(`
		INSERT INTO relationship_annotations
			(from_definition_id, to_definition_id, kind, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, fromID, toID, kind, description, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

// ExistsTx is EdgeExists within a caller-owned transaction.
func (r *AnnotationRepository) ExistsTx(tx *sql.Tx, fromID, toID int64, kind string) (bool, error) {
	var one int
	err := tx.QueryRow(`
		SELECT 1 FROM relationship_annotations
		WHERE from_definition_id = ? AND to_definition_id = ? AND kind = ?
	`, fromID, toID, kind).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check relationship: %w", err)
	}
	return true, nil
}

// GetForDefinition returns relationships touching a definition from either
// side.
func (r *AnnotationRepository) GetForDefinition(defID int64) ([]*RelationshipAnnotation, error) {
	rows, err := r.db.Query(`
		SELECT id, from_definition_id, to_definition_id, kind, description, created_at
		FROM relationship_annotations
		WHERE from_definition_id = ? OR to_definition_id = ?
		ORDER BY id
	`, defID, defID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var annotations []*RelationshipAnnotation
	for rows.Next() {
		var ra RelationshipAnnotation
		var createdAt string
		err := rows.Scan(&ra.ID, &ra.FromDefinitionID, &ra.ToDefinitionID,
			&ra.Kind, &ra.Description, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		if ra.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at format: %w", err)
		}
		annotations = append(annotations, &ra)
	}
	return annotations, rows.Err()
}
