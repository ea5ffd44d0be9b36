// ABOUTME: SQLite queries for chat messages
// ABOUTME: Includes the retention purge that enforces per-project message history

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = `id, chat_id, sender_id, sender_username, text, created_at`

// scanMessage reads one message row
func scanMessage(scan func(dest ...any) error) (*Message, error) {
	var m Message
	var senderID sql.NullInt64
	var createdAt string

	err := scan(
		&m.ID,
		&m.ChatID,
		&senderID,
		&m.SenderUsername,
		&m.Text,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	if senderID.Valid {
		m.SenderID = &senderID.Int64
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &m, nil
}

// CreateMessage inserts a new message. When the sender is set and no display
// username was given, the sender's username is recorded as the mask.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (chat_id, sender_id, sender_username, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	var senderID any
	if m.SenderID != nil {
		senderID = *m.SenderID
	}

	result, err := s.db.ExecContext(ctx, query,
		m.ChatID,
		senderID,
		m.SenderUsername,
		m.Text,
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	m.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting message id: %w", err)
	}

	return nil
}

// GetMessage retrieves a message by id within a chat.
// A message id belonging to another chat resolves as ErrNotFound.
func (s *SQLiteStore) GetMessage(ctx context.Context, chatID, messageID int64) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = ? AND id = ?`
	return scanMessage(s.db.QueryRowContext(ctx, query, chatID, messageID).Scan)
}

// ListMessages returns the chat's newest messages in chronological order.
// limit <= 0 means no limit.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = ? ORDER BY id DESC`
	args := []any{chatID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the index, oldest-first for the caller
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateMessage rewrites a message's text
func (s *SQLiteStore) UpdateMessage(ctx context.Context, m *Message) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET text = ? WHERE chat_id = ? AND id = ?`,
		m.Text, m.ChatID, m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
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

// DeleteMessage removes a message from a chat
func (s *SQLiteStore) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ? AND id = ?`, chatID, messageID)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
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

// PurgeMessages deletes messages strictly older than each project's
// message-history window. The boundary is strictly-older-than: a message
// whose age equals the window exactly survives.
func (s *SQLiteStore) PurgeMessages(ctx context.Context, now time.Time) (int64, error) {
	// One pass per project keeps the cutoff computation in Go, where the
	// retention window lives on the project row.
	rows, err := s.db.QueryContext(ctx, `SELECT public_key, message_history_days FROM projects`)
	if err != nil {
		return 0, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	type retention struct {
		projectID string
		days      int
	}
	var retentions []retention
	for rows.Next() {
		var r retention
		if err := rows.Scan(&r.projectID, &r.days); err != nil {
			return 0, fmt.Errorf("scanning project retention: %w", err)
		}
		retentions = append(retentions, r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var purged int64
	for _, r := range retentions {
		cutoff := now.Add(-time.Duration(r.days) * 24 * time.Hour)
		result, err := s.db.ExecContext(ctx, `
			DELETE FROM messages
			WHERE created_at < ?
			  AND chat_id IN (SELECT id FROM chats WHERE project_id = ?)
		`, formatTime(cutoff), r.projectID)
		if err != nil {
			return purged, fmt.Errorf("purging messages for project %s: %w", r.projectID, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return purged, fmt.Errorf("getting rows affected: %w", err)
		}
		purged += n
	}

	if purged > 0 {
		s.logger.Info("purged expired messages", "count", purged)
	}
	return purged, nil
}
