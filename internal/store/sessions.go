// ABOUTME: SQLite queries for reconnect session tokens
// ABOUTME: Sessions are refresh-on-read: expired tokens are extended, not rejected

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sessionLifetime is how far a session's expiry is pushed out when minted
// or refreshed. Sessions are a convenience layer, not a strict credential:
// the expiry only bounds how long a token can sit unused before a read
// rewrites it.
const sessionLifetime = 24 * time.Hour

// GetOrCreateSession returns the session for a person, minting an "st-"
// token on first use. Calling it again returns the same token; an expired
// session is extended in place rather than replaced.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, personID int64) (*Session, error) {
	sess, err := s.getSession(ctx, `SELECT person_id, token, expiry FROM sessions WHERE person_id = ?`, personID)
	if err == nil {
		return s.refreshIfStale(ctx, sess)
	}
	if err != ErrNotFound {
		return nil, err
	}

	sess = &Session{
		PersonID: personID,
		Token:    "st-" + uuid.New().String(),
		Expiry:   time.Now().Add(sessionLifetime),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (person_id, token, expiry) VALUES (?, ?, ?)`,
		sess.PersonID, sess.Token, formatTime(sess.Expiry),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "person_id", personID)
	return sess, nil
}

// GetSessionByToken resolves a bearer token. A stale expiry is silently
// extended (refresh-on-read); only an unknown token fails.
func (s *SQLiteStore) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	sess, err := s.getSession(ctx, `SELECT person_id, token, expiry FROM sessions WHERE token = ?`, token)
	if err != nil {
		return nil, err
	}
	return s.refreshIfStale(ctx, sess)
}

// getSession runs a single-row session query
func (s *SQLiteStore) getSession(ctx context.Context, query string, arg any) (*Session, error) {
	var sess Session
	var expiry string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(&sess.PersonID, &sess.Token, &expiry)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if sess.Expiry, err = parseTime(expiry); err != nil {
		return nil, err
	}

	return &sess, nil
}

// refreshIfStale pushes the expiry forward when it has already passed
func (s *SQLiteStore) refreshIfStale(ctx context.Context, sess *Session) (*Session, error) {
	if time.Now().Before(sess.Expiry) {
		return sess, nil
	}

	sess.Expiry = time.Now().Add(sessionLifetime)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expiry = ? WHERE person_id = ?`,
		formatTime(sess.Expiry), sess.PersonID,
	)
	if err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	s.logger.Debug("refreshed stale session", "person_id", sess.PersonID)
	return sess, nil
}
