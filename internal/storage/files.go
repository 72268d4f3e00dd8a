package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// FileRepository provides access to the files table.
type FileRepository struct {
	db *DB
}

// NewFileRepository creates a new file repository.
func NewFileRepository(db *DB) *FileRepository {
	return &FileRepository{db: db}
}

// Insert creates a new file row and fills in its id.
func (r *FileRepository) Insert(file *FileRecord) error {
	result, err := r.db.Exec(`
		INSERT INTO files (path, language, content_hash, size, modified_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		file.Path,
		file.Language,
		file.ContentHash,
		file.Size,
		file.ModifiedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	file.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get file id: %w", err)
	}
	return nil
}

// GetByPath retrieves a file by its absolute path. Returns nil when absent.
func (r *FileRepository) GetByPath(path string) (*FileRecord, error) {
	row := r.db.QueryRow(`
		SELECT id, path, language, content_hash, size, modified_at
		FROM files
		WHERE path = ?
	`, path)
	return scanFile(row)
}

// GetAll returns every stored file ordered by path.
func (r *FileRepository) GetAll() ([]*FileRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, path, language, content_hash, size, modified_at
		FROM files
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*FileRecord
	for rows.Next() {
		file, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// HashesByPath returns path -> content hash for the whole table, the shape
// change detection consumes.
func (r *FileRepository) HashesByPath() (map[string]string, error) {
	rows, err := r.db.Query("SELECT path, content_hash FROM files")
	if err != nil {
		return nil, fmt.Errorf("failed to read file hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan file hash: %w", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// UpdateHash updates a file's content hash, size and modification time.
func (r *FileRepository) UpdateHash(id int64, hash string, size int64, modifiedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE files
		SET content_hash = ?, size = ?, modified_at = ?
		WHERE id = ?
	`, hash, size, modifiedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update file hash: %w", err)
	}
	return nil
}

// Count returns the number of stored files.
func (r *FileRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row *sql.Row) (*FileRecord, error) {
	file, err := scanFileFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return file, err
}

func scanFileRows(rows *sql.Rows) (*FileRecord, error) {
	return scanFileFrom(rows)
}

func scanFileFrom(s rowScanner) (*FileRecord, error) {
	var file FileRecord
	var modifiedAt string
	err := s.Scan(&file.ID, &file.Path, &file.Language, &file.ContentHash, &file.Size, &modifiedAt)
	if err != nil {
		return nil, err
	}
	file.ModifiedAt, err = time.Parse(time.RFC3339, modifiedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid modified_at format: %w", err)
	}
	return &file, nil
}
