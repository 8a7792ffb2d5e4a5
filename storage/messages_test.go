package storage

import (
	"errors"
	"testing"
	"time"

	"netrunner/models"
)

func TestSaveMessageAndConversationOrdering(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	if err := store.SaveMessage(testMessage("c-2", "alice", "bob", "second", base.Add(2*time.Minute))); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if err := store.SaveMessage(testMessage("c-1", "alice", "bob", "first", base.Add(time.Minute))); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if err := store.SaveMessage(testMessage("c-3", "bob", "alice", "third", base.Add(3*time.Minute))); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	messages, err := store.Conversation("bob", 0)
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 archived messages, got %d", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Content != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, messages[i].Content)
		}
	}
}

func TestMarkDeliveredUpdatesOptimisticEntry(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveMessage(testMessage("c-1", "alice", "bob", "hi", time.Now())); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	if err := store.MarkDelivered("c-1", 42); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	messages, err := store.Conversation("bob", 0)
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if !messages[0].Delivered {
		t.Fatalf("expected message to be marked delivered")
	}
	if messages[0].ID != 42 {
		t.Fatalf("expected server ID 42, got %d", messages[0].ID)
	}
}

func TestMarkDeliveredUnknownCorrelationID(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkDelivered("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveMessageUpsertsByCorrelationID(t *testing.T) {
	store := newTestStore(t)
	at := time.Now()

	optimistic := testMessage("c-1", "alice", "bob", "hi", at)
	if err := store.SaveMessage(optimistic); err != nil {
		t.Fatalf("SaveMessage optimistic failed: %v", err)
	}

	confirmed := optimistic
	confirmed.ID = 42
	confirmed.Delivered = true
	confirmed.Timestamp = at.Add(time.Second)
	if err := store.SaveMessage(confirmed); err != nil {
		t.Fatalf("SaveMessage confirmed failed: %v", err)
	}

	messages, err := store.Conversation("bob", 0)
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected confirmed copy to replace optimistic entry, got %d rows", len(messages))
	}
	if messages[0].ID != 42 || !messages[0].Delivered {
		t.Fatalf("unexpected confirmed message: %+v", messages[0])
	}
}

func TestSaveMessageRequiresFields(t *testing.T) {
	store := newTestStore(t)

	invalid := []models.ChatMessage{
		{SenderUsername: "alice", RecipientUsername: "bob", Content: "hi"},
		{CorrelationID: "c-1", RecipientUsername: "bob", Content: "hi"},
		{CorrelationID: "c-1", SenderUsername: "alice", Content: "hi"},
		{CorrelationID: "c-1", SenderUsername: "alice", RecipientUsername: "bob"},
	}
	for _, message := range invalid {
		if err := store.SaveMessage(message); err == nil {
			t.Fatalf("expected SaveMessage to reject %+v", message)
		}
	}
}
