package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Artifact is a stored recording.
type Artifact struct {
	ID        string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

// ArtifactRepository keeps a single downloadable recording.
type ArtifactRepository struct {
	db *sql.DB
}

// Artifacts returns the artifact repository for this store.
func (s *Store) Artifacts() *ArtifactRepository {
	return &ArtifactRepository{db: s.db}
}

// Save replaces any stored artifact with a.
func (r *ArtifactRepository) Save(a *Artifact) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO artifacts (id, mime_type, data, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.MimeType, a.Data, len(a.Data), a.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}

	return tx.Commit()
}

// Latest returns the stored artifact or ErrNotFound.
func (r *ArtifactRepository) Latest() (*Artifact, error) {
	a := &Artifact{}
	err := r.db.QueryRow(
		`SELECT id, mime_type, data, created_at FROM artifacts ORDER BY created_at DESC LIMIT 1`,
	).Scan(&a.ID, &a.MimeType, &a.Data, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Clear deletes the stored artifact.
func (r *ArtifactRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM artifacts`)
	return err
}
