// ABOUTME: SQLite queries for outbound webhook registrations
// ABOUTME: One webhook per (project, event trigger) with a one-time secret

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const webhookColumns = `id, project_id, event_trigger, url, secret, created_at`

// scanWebhook reads one webhook row
func scanWebhook(scan func(dest ...any) error) (*Webhook, error) {
	var w Webhook
	var createdAt string

	err := scan(&w.ID, &w.ProjectID, &w.EventTrigger, &w.URL, &w.Secret, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying webhook: %w", err)
	}

	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &w, nil
}

// CreateWebhook registers a webhook for one event trigger. The secret must
// already be assigned ("whk-" prefix) and is never rotated here.
// Returns ErrDuplicate when the project already has a hook for the trigger.
func (s *SQLiteStore) CreateWebhook(ctx context.Context, w *Webhook) error {
	query := `
		INSERT INTO webhooks (project_id, event_trigger, url, secret, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		w.ProjectID,
		w.EventTrigger,
		w.URL,
		w.Secret,
		formatTime(w.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting webhook: %w", err)
	}

	w.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting webhook id: %w", err)
	}

	s.logger.Debug("created webhook", "project", w.ProjectID, "trigger", w.EventTrigger)
	return nil
}

// GetWebhook retrieves the project's webhook for an event trigger.
// Returns ErrNotFound when none is registered, which the dispatcher treats
// as "skip silently".
func (s *SQLiteStore) GetWebhook(ctx context.Context, projectID, eventTrigger string) (*Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE project_id = ? AND event_trigger = ?`
	return scanWebhook(s.db.QueryRowContext(ctx, query, projectID, eventTrigger).Scan)
}

// ListWebhooks returns all webhooks registered for a project
func (s *SQLiteStore) ListWebhooks(ctx context.Context, projectID string) ([]*Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE project_id = ? ORDER BY event_trigger ASC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

// DeleteWebhook removes a webhook registration from a project
func (s *SQLiteStore) DeleteWebhook(ctx context.Context, projectID string, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE project_id = ? AND id = ?`, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
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
