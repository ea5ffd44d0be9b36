// ABOUTME: SQLite queries for chats and chat memberships
// ABOUTME: Keeps the denormalized sorted member-id list in sync with membership rows

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

const chatColumns = `id, project_id, admin_id, title, is_direct, access_key, member_ids, created_at`

// encodeMemberIDs serializes a sorted copy of the member id list
func encodeMemberIDs(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []int64{}
	}
	data, _ := json.Marshal(sorted)
	return string(data)
}

// scanChat reads one chat row
func scanChat(scan func(dest ...any) error) (*Chat, error) {
	var c Chat
	var adminID sql.NullInt64
	var memberIDs, createdAt string

	err := scan(
		&c.ID,
		&c.ProjectID,
		&adminID,
		&c.Title,
		&c.IsDirect,
		&c.AccessKey,
		&memberIDs,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat: %w", err)
	}

	if adminID.Valid {
		c.AdminID = &adminID.Int64
	}
	if err := json.Unmarshal([]byte(memberIDs), &c.MemberIDs); err != nil {
		return nil, fmt.Errorf("parsing member_ids: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &c, nil
}

// CreateChat inserts a new chat. The access key must already be assigned;
// it is never regenerated afterwards.
func (s *SQLiteStore) CreateChat(ctx context.Context, c *Chat) error {
	query := `
		INSERT INTO chats (project_id, admin_id, title, is_direct, access_key, member_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var adminID any
	if c.AdminID != nil {
		adminID = *c.AdminID
	}

	result, err := s.db.ExecContext(ctx, query,
		c.ProjectID,
		adminID,
		c.Title,
		c.IsDirect,
		c.AccessKey,
		encodeMemberIDs(c.MemberIDs),
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting chat: %w", err)
	}

	c.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting chat id: %w", err)
	}

	s.logger.Debug("created chat", "project", c.ProjectID, "id", c.ID)
	return nil
}

// GetChat retrieves a chat by id within a project.
// A chat id belonging to another project resolves as ErrNotFound.
func (s *SQLiteStore) GetChat(ctx context.Context, projectID string, chatID int64) (*Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE project_id = ? AND id = ?`
	return scanChat(s.db.QueryRowContext(ctx, query, projectID, chatID).Scan)
}

// GetChatByAccessKey retrieves a chat by id and access key within a project.
// A wrong key is indistinguishable from a missing chat.
func (s *SQLiteStore) GetChatByAccessKey(ctx context.Context, projectID string, chatID int64, accessKey string) (*Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE project_id = ? AND id = ? AND access_key = ?`
	return scanChat(s.db.QueryRowContext(ctx, query, projectID, chatID, accessKey).Scan)
}

// FindChatByMembers finds a chat with exactly the given member set, using the
// denormalized sorted id list. Member order does not matter. When title is
// non-empty it must match too. Returns ErrNotFound when no chat matches.
func (s *SQLiteStore) FindChatByMembers(ctx context.Context, projectID string, memberIDs []int64, title string) (*Chat, error) {
	encoded := encodeMemberIDs(memberIDs)

	if title != "" {
		query := `SELECT ` + chatColumns + ` FROM chats WHERE project_id = ? AND member_ids = ? AND title = ? LIMIT 1`
		return scanChat(s.db.QueryRowContext(ctx, query, projectID, encoded, title).Scan)
	}

	query := `SELECT ` + chatColumns + ` FROM chats WHERE project_id = ? AND member_ids = ? LIMIT 1`
	return scanChat(s.db.QueryRowContext(ctx, query, projectID, encoded).Scan)
}

// ListChats returns every chat in a project, newest first.
func (s *SQLiteStore) ListChats(ctx context.Context, projectID string) ([]*Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE project_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		c, err := scanChat(rows.Scan)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// UpdateChat rewrites a chat's mutable fields. The access key is not
// touched here.
func (s *SQLiteStore) UpdateChat(ctx context.Context, c *Chat) error {
	query := `
		UPDATE chats
		SET admin_id = ?, title = ?, is_direct = ?, member_ids = ?
		WHERE project_id = ? AND id = ?
	`

	var adminID any
	if c.AdminID != nil {
		adminID = *c.AdminID
	}

	result, err := s.db.ExecContext(ctx, query,
		adminID,
		c.Title,
		c.IsDirect,
		encodeMemberIDs(c.MemberIDs),
		c.ProjectID,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating chat: %w", err)
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

// DeleteChat removes a chat and cascades memberships and messages
func (s *SQLiteStore) DeleteChat(ctx context.Context, projectID string, chatID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE project_id = ? AND id = ?`, projectID, chatID)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted chat", "project", projectID, "id", chatID)
	return nil
}

// AddChatMember creates a membership row if absent and folds the person id
// into the chat's sorted member list. Returns created=false when the person
// was already a member.
func (s *SQLiteStore) AddChatMember(ctx context.Context, chatID, personID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_members (chat_id, person_id, chat_updated) VALUES (?, ?, ?)`,
		chatID, personID, formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("inserting chat member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, tx.Commit()
	}

	var memberIDs string
	if err := tx.QueryRowContext(ctx, `SELECT member_ids FROM chats WHERE id = ?`, chatID).Scan(&memberIDs); err != nil {
		if err == sql.ErrNoRows {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("querying member_ids: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(memberIDs), &ids); err != nil {
		return false, fmt.Errorf("parsing member_ids: %w", err)
	}
	if !slices.Contains(ids, personID) {
		ids = append(ids, personID)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chats SET member_ids = ? WHERE id = ?`, encodeMemberIDs(ids), chatID); err != nil {
		return false, fmt.Errorf("updating member_ids: %w", err)
	}

	return true, tx.Commit()
}

// GetChatMember retrieves a membership row.
// Returns ErrNotFound when the person is not a member of the chat.
func (s *SQLiteStore) GetChatMember(ctx context.Context, chatID, personID int64) (*ChatMember, error) {
	query := `SELECT chat_id, person_id, last_read_id, chat_updated FROM chat_members WHERE chat_id = ? AND person_id = ?`

	var m ChatMember
	var lastRead sql.NullInt64
	var chatUpdated string

	err := s.db.QueryRowContext(ctx, query, chatID, personID).Scan(&m.ChatID, &m.PersonID, &lastRead, &chatUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat member: %w", err)
	}

	if lastRead.Valid {
		m.LastReadID = &lastRead.Int64
	}
	if m.ChatUpdated, err = parseTime(chatUpdated); err != nil {
		return nil, err
	}

	return &m, nil
}

// ListChatMembers returns all membership rows for a chat
func (s *SQLiteStore) ListChatMembers(ctx context.Context, chatID int64) ([]*ChatMember, error) {
	query := `SELECT chat_id, person_id, last_read_id, chat_updated FROM chat_members WHERE chat_id = ? ORDER BY person_id ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing chat members: %w", err)
	}
	defer rows.Close()

	var members []*ChatMember
	for rows.Next() {
		var m ChatMember
		var lastRead sql.NullInt64
		var chatUpdated string

		if err := rows.Scan(&m.ChatID, &m.PersonID, &lastRead, &chatUpdated); err != nil {
			return nil, fmt.Errorf("scanning chat member: %w", err)
		}
		if lastRead.Valid {
			m.LastReadID = &lastRead.Int64
		}
		if m.ChatUpdated, err = parseTime(chatUpdated); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ListChatsForPerson returns the person's chats ordered by most recent
// activity, newest first. limit <= 0 means no limit.
func (s *SQLiteStore) ListChatsForPerson(ctx context.Context, personID int64, limit int) ([]*Chat, error) {
	query := `
		SELECT c.id, c.project_id, c.admin_id, c.title, c.is_direct, c.access_key, c.member_ids, c.created_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.person_id = ?
		ORDER BY m.chat_updated DESC
	`
	args := []any{personID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		c, err := scanChat(rows.Scan)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// UpdateChatMember rewrites the last-read pointer and activity stamp
func (s *SQLiteStore) UpdateChatMember(ctx context.Context, m *ChatMember) error {
	query := `UPDATE chat_members SET last_read_id = ?, chat_updated = ? WHERE chat_id = ? AND person_id = ?`

	var lastRead any
	if m.LastReadID != nil {
		lastRead = *m.LastReadID
	}

	result, err := s.db.ExecContext(ctx, query, lastRead, formatTime(m.ChatUpdated), m.ChatID, m.PersonID)
	if err != nil {
		return fmt.Errorf("updating chat member: %w", err)
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

// RemoveChatMember deletes a membership row and drops the person id from
// the chat's member list
func (s *SQLiteStore) RemoveChatMember(ctx context.Context, chatID, personID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id = ? AND person_id = ?`, chatID, personID)
	if err != nil {
		return fmt.Errorf("deleting chat member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	var memberIDs string
	if err := tx.QueryRowContext(ctx, `SELECT member_ids FROM chats WHERE id = ?`, chatID).Scan(&memberIDs); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("querying member_ids: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(memberIDs), &ids); err != nil {
		return fmt.Errorf("parsing member_ids: %w", err)
	}
	ids = slices.DeleteFunc(ids, func(id int64) bool { return id == personID })

	if _, err := tx.ExecContext(ctx, `UPDATE chats SET member_ids = ? WHERE id = ?`, encodeMemberIDs(ids), chatID); err != nil {
		return fmt.Errorf("updating member_ids: %w", err)
	}

	return tx.Commit()
}
