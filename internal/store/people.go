// ABOUTME: SQLite queries for tenant-scoped people
// ABOUTME: Person lookups are always keyed by project to preserve tenant isolation

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const personColumns = `id, project_id, username, secret, email, first_name, last_name, is_online, created_at`

// scanPerson reads one person row from a *sql.Row or *sql.Rows scanner
func scanPerson(scan func(dest ...any) error) (*Person, error) {
	var p Person
	var createdAt string

	err := scan(
		&p.ID,
		&p.ProjectID,
		&p.Username,
		&p.Secret,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.IsOnline,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying person: %w", err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &p, nil
}

// CreatePerson inserts a new person. The secret must already be hashed.
// Returns ErrDuplicate when the (project, username) pair is taken.
func (s *SQLiteStore) CreatePerson(ctx context.Context, p *Person) error {
	query := `
		INSERT INTO people (project_id, username, secret, email, first_name, last_name, is_online, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		p.ProjectID,
		p.Username,
		p.Secret,
		p.Email,
		p.FirstName,
		p.LastName,
		p.IsOnline,
		formatTime(p.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting person: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting person id: %w", err)
	}

	s.logger.Debug("created person", "project", p.ProjectID, "username", p.Username)
	return nil
}

// GetPerson retrieves a person by (project, username).
// Returns ErrNotFound if no such person exists in the project.
func (s *SQLiteStore) GetPerson(ctx context.Context, projectID, username string) (*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE project_id = ? AND username = ?`
	return scanPerson(s.db.QueryRowContext(ctx, query, projectID, username).Scan)
}

// GetPersonByID retrieves a person by id within a project. A valid id that
// belongs to another project resolves as ErrNotFound.
func (s *SQLiteStore) GetPersonByID(ctx context.Context, projectID string, id int64) (*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE project_id = ? AND id = ?`
	return scanPerson(s.db.QueryRowContext(ctx, query, projectID, id).Scan)
}

// LookupPerson retrieves a person by bare id across all projects.
func (s *SQLiteStore) LookupPerson(ctx context.Context, id int64) (*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE id = ?`
	return scanPerson(s.db.QueryRowContext(ctx, query, id).Scan)
}

// FirstPerson returns the project's oldest person by (created_at, id).
// The ordering is deliberately stable so that private-key auth without a
// username resolves to the same person on every call.
func (s *SQLiteStore) FirstPerson(ctx context.Context, projectID string) (*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE project_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`
	return scanPerson(s.db.QueryRowContext(ctx, query, projectID).Scan)
}

// ListPeople returns all people in a project ordered by username
func (s *SQLiteStore) ListPeople(ctx context.Context, projectID string) ([]*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE project_id = ? ORDER BY username ASC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		p, err := scanPerson(rows.Scan)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// UpdatePerson rewrites a person's mutable fields. The caller is responsible
// for re-hashing the secret only when its plaintext changed.
// Returns ErrNotFound if the person doesn't exist in the project.
func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *Person) error {
	query := `
		UPDATE people
		SET username = ?, secret = ?, email = ?, first_name = ?, last_name = ?, is_online = ?
		WHERE project_id = ? AND id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		p.Username,
		p.Secret,
		p.Email,
		p.FirstName,
		p.LastName,
		p.IsOnline,
		p.ProjectID,
		p.ID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating person: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeletePerson removes a person from a project. Memberships cascade;
// their messages keep the masked sender username with a nil sender.
func (s *SQLiteStore) DeletePerson(ctx context.Context, projectID string, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM people WHERE project_id = ? AND id = ?`, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted person", "project", projectID, "id", id)
	return nil
}
