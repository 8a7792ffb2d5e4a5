package models

import "time"

// ChatMessage is a chat message as the server broadcasts it.
//
// CorrelationID is assigned locally before an optimistic send and echoed
// back by servers that support it; it never appears in REST payloads.
type ChatMessage struct {
	ID                int64     `json:"id"`
	CorrelationID     string    `json:"correlationId,omitempty"`
	SenderID          int64     `json:"senderId"`
	SenderUsername    string    `json:"senderUsername"`
	ReceiverID        int64     `json:"receiverId"`
	RecipientUsername string    `json:"recipientUsername,omitempty"`
	Content           string    `json:"content"`
	Timestamp         time.Time `json:"timestamp"`
	Delivered         bool      `json:"delivered"`
}

// Involves reports whether the given user is the sender or receiver.
func (m ChatMessage) Involves(userID int64, username string) bool {
	if userID > 0 && (m.SenderID == userID || m.ReceiverID == userID) {
		return true
	}
	return username != "" && (m.SenderUsername == username || m.RecipientUsername == username)
}
