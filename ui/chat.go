package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"netrunner/models"
	"netrunner/network"
)

type chatPane int

const (
	paneContacts chatPane = iota
	paneInput
)

// chatState holds the chat screen: contact list, transcript, composer.
type chatState struct {
	input    textinput.Model
	viewport viewport.Model

	contacts []models.User
	selected int
	pane     chatPane

	conv    conversation
	state   network.State
	notice  string
	errText string

	username string
	userID   int64

	sized bool
}

func newChatState(username string, userID int64) chatState {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = MaxMessageLength + 1
	input.Focus()

	return chatState{
		input:    input,
		pane:     paneInput,
		state:    network.StateDisconnected,
		username: username,
		userID:   userID,
	}
}

func (c chatState) peer() string {
	if c.selected < 0 || c.selected >= len(c.contacts) {
		return ""
	}
	return c.contacts[c.selected].Username
}

func (c chatState) resize(width, height int) chatState {
	contentHeight := height - 6
	if contentHeight < 3 {
		contentHeight = 3
	}
	contentWidth := width - 24
	if contentWidth < 20 {
		contentWidth = 20
	}
	if !c.sized {
		c.viewport = viewport.New(contentWidth, contentHeight)
		c.sized = true
	} else {
		c.viewport.Width = contentWidth
		c.viewport.Height = contentHeight
	}
	c.input.Width = contentWidth - 4
	c.viewport.SetContent(c.renderTranscript())
	c.viewport.GotoBottom()
	return c
}

func (c chatState) setContacts(users []models.User) chatState {
	current := c.peer()
	c.contacts = users
	c.selected = 0
	for i, user := range users {
		if user.Username == current {
			c.selected = i
			break
		}
	}
	return c
}

func (c chatState) selectOffset(delta int) chatState {
	if len(c.contacts) == 0 {
		return c
	}
	c.selected += delta
	if c.selected < 0 {
		c.selected = 0
	}
	if c.selected >= len(c.contacts) {
		c.selected = len(c.contacts) - 1
	}
	return c
}

// composeMessage validates the composer input and builds the optimistic
// message. It returns false when nothing should be sent.
func (c *chatState) composeMessage() (models.ChatMessage, bool) {
	content := strings.TrimSpace(c.input.Value())
	if err := ValidateMessageContent(content); err != nil {
		c.errText = err.Error()
		return models.ChatMessage{}, false
	}
	peer := c.peer()
	if peer == "" {
		c.errText = "Select a contact first"
		return models.ChatMessage{}, false
	}

	message := models.ChatMessage{
		CorrelationID:     uuid.NewString(),
		SenderID:          c.userID,
		SenderUsername:    c.username,
		RecipientUsername: peer,
		Content:           content,
		Timestamp:         time.Now(),
		Delivered:         false,
	}
	c.errText = ""
	c.input.Reset()
	return message, true
}

func (c chatState) withOptimistic(message models.ChatMessage) chatState {
	c.conv.appendOptimistic(message)
	return c.refreshTranscript()
}

func (c chatState) withInbound(message models.ChatMessage) chatState {
	peer := c.peer()
	if peer == "" {
		return c
	}
	if message.SenderUsername != peer && message.RecipientUsername != peer &&
		message.SenderUsername != c.username {
		return c
	}
	c.conv.applyInbound(message)
	return c.refreshTranscript()
}

func (c chatState) withHistory(peer string, history []models.ChatMessage) chatState {
	if peer != c.peer() {
		return c
	}
	c.conv.reset(history)
	return c.refreshTranscript()
}

func (c chatState) refreshTranscript() chatState {
	if c.sized {
		c.viewport.SetContent(c.renderTranscript())
		c.viewport.GotoBottom()
	}
	return c
}

func (c chatState) update(msg tea.Msg) (chatState, tea.Cmd) {
	var inputCmd, viewCmd tea.Cmd
	if c.pane == paneInput {
		c.input, inputCmd = c.input.Update(msg)
	}
	c.viewport, viewCmd = c.viewport.Update(msg)
	return c, tea.Batch(inputCmd, viewCmd)
}

func (c chatState) renderTranscript() string {
	styles := DefaultStyles()
	lines := make([]string, 0, len(c.conv.messages))
	for _, message := range c.conv.messages {
		stamp := message.Timestamp.Format("15:04")
		author := styles.Peer.Render(message.SenderUsername)
		if message.SenderUsername == c.username {
			author = styles.Self.Render(message.SenderUsername)
		}
		line := fmt.Sprintf("%s %s: %s", stamp, author, message.Content)
		if !message.Delivered && message.SenderUsername == c.username {
			line = styles.Pending.Render(line + " (sending)")
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return styles.Subtle.Render("No messages yet.")
	}
	return strings.Join(lines, "\n")
}

func (c chatState) view(styles Styles) string {
	var contactsCol strings.Builder
	contactsCol.WriteString(styles.Title.Render("Contacts"))
	contactsCol.WriteString("\n")
	if len(c.contacts) == 0 {
		contactsCol.WriteString(styles.Subtle.Render("(nobody yet)"))
		contactsCol.WriteString("\n")
	}
	for i, user := range c.contacts {
		label := user.Username
		if i == c.selected {
			label = styles.Selected.Render("> " + label)
		} else {
			label = "  " + label
		}
		contactsCol.WriteString(label)
		contactsCol.WriteString("\n")
	}

	var b strings.Builder
	header := fmt.Sprintf("%s · %s", c.username, strings.ToLower(string(c.state)))
	b.WriteString(styles.Title.Render(header))
	if c.notice != "" {
		b.WriteString("  ")
		b.WriteString(styles.Notice.Render(c.notice))
	}
	b.WriteString("\n\n")

	transcript := c.viewport.View()
	if !c.sized {
		transcript = c.renderTranscript()
	}
	contactsBlock := lipgloss.NewStyle().Width(20).Render(contactsCol.String())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, contactsBlock, transcript))
	b.WriteString("\n")
	b.WriteString(c.input.View())
	b.WriteString("\n")
	if c.errText != "" {
		b.WriteString(styles.Error.Render(c.errText))
		b.WriteString("\n")
	}
	b.WriteString(styles.Subtle.Render("tab: switch pane · up/down: pick contact · enter: send · ctrl+l: logout · ctrl+c: quit"))
	return styles.Frame.Render(b.String())
}
