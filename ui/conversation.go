package ui

import "netrunner/models"

// conversation is the in-memory chat transcript for one open chat view.
// Messages are appended in arrival order; an optimistic local entry is
// replaced in place when the server-confirmed copy arrives.
type conversation struct {
	messages []models.ChatMessage
}

// appendOptimistic records a locally sent message before confirmation.
func (c *conversation) appendOptimistic(message models.ChatMessage) {
	message.Delivered = false
	c.messages = append(c.messages, message)
}

// applyInbound merges a message from the channel into the transcript.
// A server copy of our own optimistic send replaces the pending entry;
// everything else is appended.
func (c *conversation) applyInbound(message models.ChatMessage) {
	if idx := c.findPending(message); idx >= 0 {
		c.messages[idx] = message
		return
	}
	c.messages = append(c.messages, message)
}

// findPending locates the optimistic entry a confirmed message settles.
// Correlation ID is authoritative; when the server echoes without one,
// fall back to the oldest undelivered entry with the same participants
// and content.
func (c *conversation) findPending(confirmed models.ChatMessage) int {
	if confirmed.CorrelationID != "" {
		for i, m := range c.messages {
			if !m.Delivered && m.CorrelationID == confirmed.CorrelationID {
				return i
			}
		}
		return -1
	}
	for i, m := range c.messages {
		if m.Delivered || m.CorrelationID == "" {
			continue
		}
		if m.SenderUsername != confirmed.SenderUsername || m.Content != confirmed.Content {
			continue
		}
		// The server echo may carry the receiver ID instead of the name.
		if confirmed.RecipientUsername != "" && m.RecipientUsername != confirmed.RecipientUsername {
			continue
		}
		return i
	}
	return -1
}

// pendingFor returns the optimistic entry a confirmed message settles.
func (c *conversation) pendingFor(confirmed models.ChatMessage) (models.ChatMessage, bool) {
	if idx := c.findPending(confirmed); idx >= 0 {
		return c.messages[idx], true
	}
	return models.ChatMessage{}, false
}

func (c *conversation) snapshot() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *conversation) reset(history []models.ChatMessage) {
	c.messages = append(c.messages[:0], history...)
}
