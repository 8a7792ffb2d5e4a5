package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"netrunner/models"
)

// SaveMessage inserts one archived message row keyed by correlation ID.
// Saving the same correlation ID again updates the server-owned fields,
// which is how an optimistic entry becomes the confirmed copy.
func (s *Store) SaveMessage(message models.ChatMessage) error {
	if message.CorrelationID == "" {
		return errors.New("correlation_id is required")
	}
	if message.SenderUsername == "" {
		return errors.New("sender_username is required")
	}
	if message.RecipientUsername == "" {
		return errors.New("recipient_username is required")
	}
	if message.Content == "" {
		return errors.New("content is required")
	}

	timestamp := message.Timestamp.UnixMilli()
	if message.Timestamp.IsZero() {
		timestamp = nowUnixMilli()
	}

	delivered := 0
	if message.Delivered {
		delivered = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (
			correlation_id,
			server_id,
			sender_id,
			sender_username,
			receiver_id,
			recipient_username,
			content,
			timestamp,
			delivered
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			server_id = excluded.server_id,
			timestamp = excluded.timestamp,
			delivered = excluded.delivered`,
		message.CorrelationID,
		nullInt64(message.ID),
		message.SenderID,
		message.SenderUsername,
		nullInt64(message.ReceiverID),
		message.RecipientUsername,
		message.Content,
		timestamp,
		delivered,
	)
	if err != nil {
		return fmt.Errorf("insert message %q: %w", message.CorrelationID, err)
	}

	return nil
}

// MarkDelivered records server confirmation for an optimistic message.
func (s *Store) MarkDelivered(correlationID string, serverID int64) error {
	if correlationID == "" {
		return errors.New("correlation_id is required")
	}

	res, err := s.db.Exec(
		`UPDATE messages SET delivered = 1, server_id = ? WHERE correlation_id = ?`,
		nullInt64(serverID), correlationID,
	)
	if err != nil {
		return fmt.Errorf("mark message %q delivered: %w", correlationID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for %q: %w", correlationID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Conversation returns archived messages exchanged with one peer ordered
// by timestamp, oldest first.
func (s *Store) Conversation(peerUsername string, limit int) ([]models.ChatMessage, error) {
	if peerUsername == "" {
		return nil, errors.New("peer_username is required")
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(
		`SELECT correlation_id, server_id, sender_id, sender_username,
			receiver_id, recipient_username, content, timestamp, delivered
		FROM messages
		WHERE sender_username = ? OR recipient_username = ?
		ORDER BY timestamp, correlation_id
		LIMIT ?`,
		peerUsername, peerUsername, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation with %q: %w", peerUsername, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []models.ChatMessage
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation: %w", err)
	}

	return messages, nil
}

func scanMessage(rows *sql.Rows) (models.ChatMessage, error) {
	var (
		message    models.ChatMessage
		serverID   sql.NullInt64
		receiverID sql.NullInt64
		timestamp  int64
		delivered  int
	)
	if err := rows.Scan(
		&message.CorrelationID,
		&serverID,
		&message.SenderID,
		&message.SenderUsername,
		&receiverID,
		&message.RecipientUsername,
		&message.Content,
		&timestamp,
		&delivered,
	); err != nil {
		return models.ChatMessage{}, fmt.Errorf("scan message: %w", err)
	}

	if serverID.Valid {
		message.ID = serverID.Int64
	}
	if receiverID.Valid {
		message.ReceiverID = receiverID.Int64
	}
	message.Timestamp = unixMilliTime(timestamp)
	message.Delivered = delivered == 1

	return message, nil
}
