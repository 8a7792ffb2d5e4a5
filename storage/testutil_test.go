package storage

import (
	"testing"
	"time"

	"netrunner/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func testMessage(correlationID, from, to, content string, at time.Time) models.ChatMessage {
	return models.ChatMessage{
		CorrelationID:     correlationID,
		SenderID:          1,
		SenderUsername:    from,
		ReceiverID:        2,
		RecipientUsername: to,
		Content:           content,
		Timestamp:         at,
	}
}
