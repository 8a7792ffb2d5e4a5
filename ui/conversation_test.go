package ui

import (
	"testing"

	"netrunner/models"
)

func TestApplyInboundReplacesOptimisticByCorrelationID(t *testing.T) {
	var conv conversation
	conv.appendOptimistic(models.ChatMessage{
		CorrelationID:     "corr-1",
		SenderUsername:    "alice",
		RecipientUsername: "bob",
		Content:           "hello",
	})

	conv.applyInbound(models.ChatMessage{
		ID:                42,
		CorrelationID:     "corr-1",
		SenderUsername:    "alice",
		RecipientUsername: "bob",
		Content:           "hello",
		Delivered:         true,
	})

	messages := conv.snapshot()
	if len(messages) != 1 {
		t.Fatalf("expected optimistic entry replaced, got %d messages", len(messages))
	}
	if messages[0].ID != 42 || !messages[0].Delivered {
		t.Fatalf("expected confirmed copy in place, got %+v", messages[0])
	}
}

func TestApplyInboundFallsBackToContentMatch(t *testing.T) {
	var conv conversation
	conv.appendOptimistic(models.ChatMessage{
		CorrelationID:     "corr-1",
		SenderUsername:    "alice",
		RecipientUsername: "bob",
		Content:           "hello",
	})

	// Server echo without the correlation id.
	conv.applyInbound(models.ChatMessage{
		ID:             7,
		SenderUsername: "alice",
		ReceiverID:     2,
		Content:        "hello",
		Delivered:      true,
	})

	messages := conv.snapshot()
	if len(messages) != 1 {
		t.Fatalf("expected echo to settle the pending entry, got %d messages", len(messages))
	}
	if messages[0].ID != 7 {
		t.Fatalf("expected confirmed copy, got %+v", messages[0])
	}
}

func TestApplyInboundAppendsPeerMessages(t *testing.T) {
	var conv conversation
	conv.appendOptimistic(models.ChatMessage{
		CorrelationID:     "corr-1",
		SenderUsername:    "alice",
		RecipientUsername: "bob",
		Content:           "hello",
	})

	conv.applyInbound(models.ChatMessage{
		ID:             8,
		SenderUsername: "bob",
		Content:        "hi back",
		Delivered:      true,
	})

	messages := conv.snapshot()
	if len(messages) != 2 {
		t.Fatalf("expected append, got %d messages", len(messages))
	}
	if messages[1].SenderUsername != "bob" {
		t.Fatalf("expected peer message appended last, got %+v", messages[1])
	}
}

func TestApplyInboundPreservesArrivalOrder(t *testing.T) {
	var conv conversation
	for _, content := range []string{"one", "two", "three"} {
		conv.applyInbound(models.ChatMessage{
			SenderUsername: "bob",
			Content:        content,
			Delivered:      true,
		})
	}

	messages := conv.snapshot()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"one", "two", "three"} {
		if messages[i].Content != want {
			t.Fatalf("message %d = %q, want %q", i, messages[i].Content, want)
		}
	}
}
