package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNoSession indicates no stored session credentials exist.
	ErrNoSession = errors.New("storage: no stored session")
)

// Session is the persisted credential set returned by login.
// The three values are written and cleared together.
type Session struct {
	Token    string
	Username string
	UserID   int64
	SavedAt  int64
}

// SaveSession overwrites the single stored session row.
//
// It fails closed: a session with an empty token, empty username, or
// non-positive user ID is never persisted.
func (s *Store) SaveSession(session Session) error {
	if session.Token == "" {
		return errors.New("token is required")
	}
	if session.Username == "" {
		return errors.New("username is required")
	}
	if session.UserID <= 0 {
		return errors.New("user_id must be > 0")
	}
	if session.SavedAt == 0 {
		session.SavedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO session (id, token, username, user_id, saved_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			username = excluded.username,
			user_id = excluded.user_id,
			saved_at = excluded.saved_at`,
		session.Token,
		session.Username,
		session.UserID,
		session.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("save session for %q: %w", session.Username, err)
	}

	return nil
}

// LoadSession returns the stored session, or ErrNoSession if absent.
func (s *Store) LoadSession() (Session, error) {
	var session Session
	err := s.db.QueryRow(
		`SELECT token, username, user_id, saved_at FROM session WHERE id = 1`,
	).Scan(&session.Token, &session.Username, &session.UserID, &session.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	return session, nil
}

// ClearSession removes the stored token, username, and user ID together.
// Clearing an empty store is not an error.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
