package ui

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"netrunner/gateway"
	"netrunner/models"
	"netrunner/network"
	"netrunner/storage"
)

type countingAPI struct {
	calls int32
}

func (c *countingAPI) Register(ctx context.Context, username, password string) (gateway.AuthResult, error) {
	atomic.AddInt32(&c.calls, 1)
	return gateway.AuthResult{Username: username, Message: "User registered successfully"}, nil
}

func (c *countingAPI) Login(ctx context.Context, username, password string) (gateway.AuthResult, error) {
	atomic.AddInt32(&c.calls, 1)
	return gateway.AuthResult{Token: "t", Username: username, UserID: 1}, nil
}

func (c *countingAPI) ListUsers(ctx context.Context) ([]models.User, error) {
	atomic.AddInt32(&c.calls, 1)
	return nil, nil
}

type fakeMessenger struct {
	opened int
	closed int
	sent   []network.OutboundMessage
	ready  bool
}

func (f *fakeMessenger) Open(url string, handlers network.Handlers) { f.opened++ }
func (f *fakeMessenger) Send(message network.OutboundMessage)       { f.sent = append(f.sent, message) }
func (f *fakeMessenger) Ready() bool                                { return f.ready }
func (f *fakeMessenger) Close()                                     { f.closed++ }

func newTestApp(api AuthAPI, messenger Messenger) App {
	return NewApp(Deps{
		API:       api,
		SocketURL: "ws://localhost/ws/messages",
		NewSession: func(identity network.Identity) (Messenger, error) {
			return messenger, nil
		},
	}, nil)
}

func typeKeys(t *testing.T, model tea.Model, text string) tea.Model {
	t.Helper()
	for _, r := range text {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return model
}

func TestShortPasswordLoginMakesNoNetworkCall(t *testing.T) {
	api := &countingAPI{}
	app := newTestApp(api, &fakeMessenger{})
	app.page = pageSignIn
	app.form = newAuthForm(modeSignIn)

	var model tea.Model = app
	model = typeKeys(t, model, "alice")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = typeKeys(t, model, "short")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := model.(App)
	if got.form.errText != "Password must be at least 8 characters" {
		t.Fatalf("unexpected validation message: %q", got.form.errText)
	}
	if calls := atomic.LoadInt32(&api.calls); calls != 0 {
		t.Fatalf("expected zero network calls, got %d", calls)
	}
}

func TestMismatchedConfirmMakesNoNetworkCall(t *testing.T) {
	api := &countingAPI{}
	app := newTestApp(api, &fakeMessenger{})
	app.page = pageSignUp
	app.form = newAuthForm(modeSignUp)

	var model tea.Model = app
	model = typeKeys(t, model, "alice")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = typeKeys(t, model, "longenough")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = typeKeys(t, model, "different1")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := model.(App)
	if got.form.errText != "Passwords do not match" {
		t.Fatalf("unexpected validation message: %q", got.form.errText)
	}
	if calls := atomic.LoadInt32(&api.calls); calls != 0 {
		t.Fatalf("expected zero network calls, got %d", calls)
	}
}

func TestRegisterSuccessReturnsToSignInWithoutSession(t *testing.T) {
	api := &countingAPI{}
	messenger := &fakeMessenger{}
	app := newTestApp(api, messenger)
	app.page = pageSignUp
	app.form = newAuthForm(modeSignUp)

	var model tea.Model = app
	model = typeKeys(t, model, "alice")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = typeKeys(t, model, "longenough")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = typeKeys(t, model, "longenough")
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a registration request command")
	}

	model, _ = model.Update(cmd())
	got := model.(App)

	if got.page != pageSignIn {
		t.Fatalf("expected sign-in page after registration, got %d", got.page)
	}
	if !strings.Contains(got.form.notice, "Please sign in to continue") {
		t.Fatalf("expected sign-in prompt, got %q", got.form.notice)
	}
	if messenger.opened != 0 {
		t.Fatalf("registration must not open a messaging session, got %d opens", messenger.opened)
	}
}

func TestAuthSuccessMountsChatAndOpensOneSession(t *testing.T) {
	api := &countingAPI{}
	messenger := &fakeMessenger{}
	app := newTestApp(api, messenger)

	model, _ := app.Update(authSucceededMsg{result: gateway.AuthResult{
		Token: "tok", Username: "alice", UserID: 1,
	}})

	got := model.(App)
	if got.page != pageChat {
		t.Fatalf("expected chat page, got %d", got.page)
	}
	if messenger.opened != 1 {
		t.Fatalf("expected exactly one session open, got %d", messenger.opened)
	}
}

func TestSendAppendsOptimisticEntryAndTransmitsOnce(t *testing.T) {
	api := &countingAPI{}
	messenger := &fakeMessenger{ready: true}
	app := newTestApp(api, messenger)

	model, _ := app.Update(authSucceededMsg{result: gateway.AuthResult{
		Token: "tok", Username: "alice", UserID: 1,
	}})
	got := model.(App)
	got.chat = got.chat.setContacts([]models.User{{ID: 2, Username: "bob"}})

	model = typeKeys(t, got, "hello bob")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got = model.(App)

	if len(messenger.sent) != 1 {
		t.Fatalf("expected one outbound frame, got %d", len(messenger.sent))
	}
	frame := messenger.sent[0]
	if frame.SenderUsername != "alice" || frame.RecipientUsername != "bob" || frame.Content != "hello bob" {
		t.Fatalf("unexpected outbound frame: %+v", frame)
	}
	if frame.CorrelationID == "" {
		t.Fatalf("expected a correlation id on the outbound frame")
	}

	messages := got.chat.conv.snapshot()
	if len(messages) != 1 {
		t.Fatalf("expected one optimistic entry, got %d", len(messages))
	}
	if messages[0].Delivered {
		t.Fatalf("optimistic entry must not be marked delivered")
	}
	if messages[0].CorrelationID != frame.CorrelationID {
		t.Fatalf("optimistic entry and frame must share a correlation id")
	}
}

func TestSendWhileDisconnectedDoesNotTransmit(t *testing.T) {
	api := &countingAPI{}
	messenger := &fakeMessenger{ready: false}
	app := newTestApp(api, messenger)

	model, _ := app.Update(authSucceededMsg{result: gateway.AuthResult{
		Token: "tok", Username: "alice", UserID: 1,
	}})
	got := model.(App)
	got.chat = got.chat.setContacts([]models.User{{ID: 2, Username: "bob"}})

	model = typeKeys(t, got, "hello")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got = model.(App)

	if len(messenger.sent) != 0 {
		t.Fatalf("expected no outbound frames, got %d", len(messenger.sent))
	}
	if got.chat.errText == "" {
		t.Fatalf("expected a not-connected notice")
	}
}

func TestServerEchoWithoutCorrelationIDSettlesArchive(t *testing.T) {
	store, _, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	api := &countingAPI{}
	messenger := &fakeMessenger{ready: true}
	app := NewApp(Deps{
		API:       api,
		Contacts:  store,
		History:   store,
		Sessions:  store,
		SocketURL: "ws://localhost/ws/messages",
		NewSession: func(identity network.Identity) (Messenger, error) {
			return messenger, nil
		},
	}, nil)

	model, _ := app.Update(authSucceededMsg{result: gateway.AuthResult{
		Token: "tok", Username: "alice", UserID: 1,
	}})
	got := model.(App)
	got.chat = got.chat.setContacts([]models.User{{ID: 2, Username: "bob"}})

	model = typeKeys(t, got, "hello bob")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got = model.(App)
	if len(messenger.sent) != 1 {
		t.Fatalf("expected one outbound frame, got %d", len(messenger.sent))
	}
	correlationID := messenger.sent[0].CorrelationID

	// The server echoes the sent message without a correlation id.
	model, _ = got.Update(inboundMessageMsg{message: models.ChatMessage{
		ID:             42,
		SenderID:       1,
		SenderUsername: "alice",
		ReceiverID:     2,
		Content:        "hello bob",
		Timestamp:      time.Now(),
		Delivered:      true,
	}})
	got = model.(App)

	entries := got.chat.conv.snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected the echo to settle the pending entry, got %d entries", len(entries))
	}
	if !entries[0].Delivered {
		t.Fatalf("expected the settled entry to be delivered, got %+v", entries[0])
	}

	rows, err := store.Conversation("bob", 50)
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one archived row, got %d", len(rows))
	}
	if !rows[0].Delivered {
		t.Fatalf("expected the archived row to be delivered, got %+v", rows[0])
	}
	if rows[0].ID != 42 {
		t.Fatalf("expected the server id recorded, got %d", rows[0].ID)
	}
	if rows[0].CorrelationID != correlationID {
		t.Fatalf("archived row correlation id = %q, want %q", rows[0].CorrelationID, correlationID)
	}
}

func TestLogoutReleasesPendingSessionWaiters(t *testing.T) {
	api := &countingAPI{}
	messenger := &fakeMessenger{}
	app := newTestApp(api, messenger)

	model, _ := app.Update(authSucceededMsg{result: gateway.AuthResult{
		Token: "tok", Username: "alice", UserID: 1,
	}})
	got := model.(App)
	waiter := waitForInbound(got.inbox, got.sessionDone)

	if _, cmd := got.Update(tea.KeyMsg{Type: tea.KeyCtrlL}); cmd != nil {
		t.Fatalf("logout should not schedule commands")
	}

	released := make(chan tea.Msg, 1)
	go func() {
		released <- waiter()
	}()
	select {
	case msg := <-released:
		if msg != nil {
			t.Fatalf("expected nil from a released waiter, got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter still blocked after logout")
	}
}

func TestLogoutClosesSession(t *testing.T) {
	api := &countingAPI{}
	messenger := &fakeMessenger{}
	app := newTestApp(api, messenger)

	model, _ := app.Update(authSucceededMsg{result: gateway.AuthResult{
		Token: "tok", Username: "alice", UserID: 1,
	}})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	got := model.(App)
	if got.page != pageHome {
		t.Fatalf("expected home page after logout, got %d", got.page)
	}
	if messenger.closed != 1 {
		t.Fatalf("expected one session close, got %d", messenger.closed)
	}
}
