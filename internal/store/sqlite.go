// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Handles connection setup, schema creation and project/collaborator rows

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			public_key           TEXT PRIMARY KEY,
			private_key          TEXT NOT NULL UNIQUE,
			owner_email          TEXT NOT NULL,
			title                TEXT NOT NULL,
			is_active            INTEGER NOT NULL DEFAULT 1,
			plan_type            TEXT NOT NULL DEFAULT 'basic',
			monthly_users        INTEGER NOT NULL DEFAULT 25,
			message_history_days INTEGER NOT NULL DEFAULT 14,
			emails_enabled       INTEGER NOT NULL DEFAULT 0,
			email_company_name   TEXT NOT NULL DEFAULT '',
			email_sender         TEXT NOT NULL DEFAULT '',
			email_link           TEXT NOT NULL DEFAULT '',
			email_last_sent      TEXT NOT NULL,
			last_inactive_notice TEXT,
			created_at           TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_projects_private_key ON projects(private_key);

		CREATE TABLE IF NOT EXISTS collaborators (
			email      TEXT NOT NULL,
			project_id TEXT NOT NULL REFERENCES projects(public_key) ON DELETE CASCADE,
			role       TEXT NOT NULL DEFAULT 'member',
			created_at TEXT NOT NULL,

			PRIMARY KEY (email, project_id),
			CHECK (role IN ('admin', 'member'))
		);

		CREATE TABLE IF NOT EXISTS people (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL REFERENCES projects(public_key) ON DELETE CASCADE,
			username   TEXT NOT NULL,
			secret     TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL DEFAULT '',
			is_online  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,

			UNIQUE (project_id, username)
		);

		CREATE INDEX IF NOT EXISTS idx_people_project_username ON people(project_id, username);
		CREATE INDEX IF NOT EXISTS idx_people_project_created ON people(project_id, created_at, id);

		CREATE TABLE IF NOT EXISTS chats (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL REFERENCES projects(public_key) ON DELETE CASCADE,
			admin_id   INTEGER REFERENCES people(id) ON DELETE CASCADE,
			title      TEXT NOT NULL DEFAULT '',
			is_direct  INTEGER NOT NULL DEFAULT 0,
			access_key TEXT NOT NULL,
			member_ids TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_chats_access_key ON chats(access_key);
		CREATE INDEX IF NOT EXISTS idx_chats_project ON chats(project_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_chats_project_members ON chats(project_id, member_ids);

		CREATE TABLE IF NOT EXISTS chat_members (
			chat_id      INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			person_id    INTEGER NOT NULL REFERENCES people(id) ON DELETE CASCADE,
			last_read_id INTEGER,
			chat_updated TEXT NOT NULL,

			PRIMARY KEY (chat_id, person_id)
		);

		CREATE INDEX IF NOT EXISTS idx_chat_members_person ON chat_members(person_id, chat_updated DESC);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id         INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			sender_id       INTEGER REFERENCES people(id) ON DELETE SET NULL,
			sender_username TEXT NOT NULL DEFAULT '',
			text            TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

		CREATE TABLE IF NOT EXISTS webhooks (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id    TEXT NOT NULL REFERENCES projects(public_key) ON DELETE CASCADE,
			event_trigger TEXT NOT NULL,
			url           TEXT NOT NULL,
			secret        TEXT NOT NULL,
			created_at    TEXT NOT NULL,

			UNIQUE (project_id, event_trigger)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			person_id INTEGER PRIMARY KEY REFERENCES people(id) ON DELETE CASCADE,
			token     TEXT NOT NULL UNIQUE,
			expiry    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// formatTime serializes a timestamp for storage. Always UTC RFC3339 so that
// stored stamps compare correctly as strings (the purge relies on this).
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime deserializes a stored timestamp
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// CreateProject inserts a new tenant row.
// Returns ErrDuplicate when the public or private key is already taken.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (
			public_key, private_key, owner_email, title, is_active, plan_type,
			monthly_users, message_history_days, emails_enabled, email_company_name,
			email_sender, email_link, email_last_sent, last_inactive_notice, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastNotice any
	if p.LastInactiveNotice != nil {
		lastNotice = formatTime(*p.LastInactiveNotice)
	}

	_, err := s.db.ExecContext(ctx, query,
		p.PublicKey,
		p.PrivateKey,
		p.OwnerEmail,
		p.Title,
		p.IsActive,
		p.PlanType,
		p.MonthlyUsers,
		p.MessageHistoryDays,
		p.EmailsEnabled,
		p.EmailCompanyName,
		p.EmailSender,
		p.EmailLink,
		formatTime(p.EmailLastSent),
		lastNotice,
		formatTime(p.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting project: %w", err)
	}

	s.logger.Debug("created project", "public_key", p.PublicKey, "title", p.Title)
	return nil
}

const projectColumns = `
	public_key, private_key, owner_email, title, is_active, plan_type,
	monthly_users, message_history_days, emails_enabled, email_company_name,
	email_sender, email_link, email_last_sent, last_inactive_notice, created_at
`

// scanProject reads one project row
func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var emailLastSent, createdAt string
	var lastNotice sql.NullString

	err := row.Scan(
		&p.PublicKey,
		&p.PrivateKey,
		&p.OwnerEmail,
		&p.Title,
		&p.IsActive,
		&p.PlanType,
		&p.MonthlyUsers,
		&p.MessageHistoryDays,
		&p.EmailsEnabled,
		&p.EmailCompanyName,
		&p.EmailSender,
		&p.EmailLink,
		&emailLastSent,
		&lastNotice,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	if p.EmailLastSent, err = parseTime(emailLastSent); err != nil {
		return nil, err
	}
	if lastNotice.Valid {
		t, err := parseTime(lastNotice.String)
		if err != nil {
			return nil, err
		}
		p.LastInactiveNotice = &t
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &p, nil
}

// GetProject retrieves a project by its public key.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) GetProject(ctx context.Context, publicKey string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE public_key = ?`
	return scanProject(s.db.QueryRowContext(ctx, query, publicKey))
}

// GetProjectByPublicKey is the low-trust tenant lookup used by client-side auth
func (s *SQLiteStore) GetProjectByPublicKey(ctx context.Context, key string) (*Project, error) {
	return s.GetProject(ctx, key)
}

// GetProjectByPrivateKey is the high-trust tenant lookup used by server-side auth
func (s *SQLiteStore) GetProjectByPrivateKey(ctx context.Context, key string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE private_key = ?`
	return scanProject(s.db.QueryRowContext(ctx, query, key))
}

// UpdateProject rewrites a project's mutable fields.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	query := `
		UPDATE projects
		SET title = ?, is_active = ?, plan_type = ?, monthly_users = ?,
		    message_history_days = ?, emails_enabled = ?, email_company_name = ?,
		    email_sender = ?, email_link = ?, email_last_sent = ?, last_inactive_notice = ?
		WHERE public_key = ?
	`

	var lastNotice any
	if p.LastInactiveNotice != nil {
		lastNotice = formatTime(*p.LastInactiveNotice)
	}

	result, err := s.db.ExecContext(ctx, query,
		p.Title,
		p.IsActive,
		p.PlanType,
		p.MonthlyUsers,
		p.MessageHistoryDays,
		p.EmailsEnabled,
		p.EmailCompanyName,
		p.EmailSender,
		p.EmailLink,
		formatTime(p.EmailLastSent),
		lastNotice,
		p.PublicKey,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
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

// DeleteProject removes a tenant. People, chats, messages and webhooks
// cascade via foreign keys.
func (s *SQLiteStore) DeleteProject(ctx context.Context, publicKey string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE public_key = ?`, publicKey)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted project", "public_key", publicKey)
	return nil
}

// CreateCollaborator links an account email to a project with a role
func (s *SQLiteStore) CreateCollaborator(ctx context.Context, c *Collaborator) error {
	query := `INSERT INTO collaborators (email, project_id, role, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, c.Email, c.ProjectID, c.Role, formatTime(c.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting collaborator: %w", err)
	}

	return nil
}

// GetCollaborator retrieves the role row linking an account to a project.
// Returns ErrNotFound if the account is not a collaborator on the project.
func (s *SQLiteStore) GetCollaborator(ctx context.Context, email, projectID string) (*Collaborator, error) {
	query := `SELECT email, project_id, role, created_at FROM collaborators WHERE email = ? AND project_id = ?`

	var c Collaborator
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, email, projectID).Scan(&c.Email, &c.ProjectID, &c.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying collaborator: %w", err)
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &c, nil
}
