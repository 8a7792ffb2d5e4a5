package storage

import (
	"errors"
	"fmt"

	"netrunner/models"
)

// ReplaceContacts stores the latest fetched user list, replacing the
// previous snapshot so removed accounts disappear from the cache.
func (s *Store) ReplaceContacts(users []models.User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin contacts transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}

	fetchedAt := nowUnixMilli()
	for _, user := range users {
		if user.ID <= 0 || user.Username == "" {
			return errors.New("contact requires positive id and non-empty username")
		}
		if _, err := tx.Exec(
			`INSERT INTO contacts (user_id, username, fetched_at) VALUES (?, ?, ?)`,
			user.ID, user.Username, fetchedAt,
		); err != nil {
			return fmt.Errorf("insert contact %q: %w", user.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contacts transaction: %w", err)
	}

	return nil
}

// ListContacts returns the cached user list ordered by username.
func (s *Store) ListContacts() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT user_id, username FROM contacts ORDER BY username, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return users, nil
}
