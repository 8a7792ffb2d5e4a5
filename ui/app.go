package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"netrunner/gateway"
	"netrunner/models"
	"netrunner/network"
)

// AuthAPI is the REST surface the screens call.
type AuthAPI interface {
	Register(ctx context.Context, username, password string) (gateway.AuthResult, error)
	Login(ctx context.Context, username, password string) (gateway.AuthResult, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// ContactCache caches the user directory between launches.
type ContactCache interface {
	ReplaceContacts(users []models.User) error
	ListContacts() ([]models.User, error)
}

// HistoryStore persists chat transcripts.
type HistoryStore interface {
	SaveMessage(message models.ChatMessage) error
	MarkDelivered(correlationID string, serverID int64) error
	Conversation(peerUsername string, limit int) ([]models.ChatMessage, error)
}

// SessionStore persists login credentials.
type SessionStore interface {
	ClearSession() error
}

// Messenger is the live chat channel the chat screen talks to.
type Messenger interface {
	Open(url string, handlers network.Handlers)
	Send(message network.OutboundMessage)
	Ready() bool
	Close()
}

// SessionFactory builds a Messenger for a signed-in identity.
type SessionFactory func(identity network.Identity) (Messenger, error)

type page int

const (
	pageHome page = iota
	pageSignIn
	pageSignUp
	pageChat
)

// Deps wires the app model to the rest of the client.
type Deps struct {
	API        AuthAPI
	Contacts   ContactCache
	History    HistoryStore
	Sessions   SessionStore
	NewSession SessionFactory
	SocketURL  string
	OnLogin    func(models.Credentials)
	Logger     zerolog.Logger
}

// App is the root bubbletea model.
type App struct {
	deps   Deps
	styles Styles

	page   page
	form   authForm
	chat   chatState
	homeAt int

	width  int
	height int

	creds   models.Credentials
	session Messenger

	inbox       chan models.ChatMessage
	sessionErrs chan error
	states      chan network.State
	sessionDone chan struct{}
}

// NewApp builds the root model starting at the home screen. When resume
// carries saved credentials the chat opens immediately.
func NewApp(deps Deps, resume *models.Credentials) App {
	app := App{
		deps:   deps,
		styles: DefaultStyles(),
		page:   pageHome,
	}
	if resume != nil && resume.Token != "" && resume.UserID > 0 {
		app.creds = *resume
	}
	return app
}

func (a App) Init() tea.Cmd {
	if a.creds.Token != "" {
		creds := a.creds
		return func() tea.Msg {
			return authSucceededMsg{result: gateway.AuthResult{
				Token:    creds.Token,
				Username: creds.Username,
				UserID:   creds.UserID,
			}}
		}
	}
	return textinput.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if a.page == pageChat {
			a.chat = a.chat.resize(msg.Width, msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			a.teardown()
			return a, tea.Quit
		}
		switch a.page {
		case pageHome:
			return a.updateHome(msg)
		case pageSignIn, pageSignUp:
			return a.updateAuth(msg)
		case pageChat:
			return a.updateChatKeys(msg)
		}

	case authSucceededMsg:
		return a.handleAuthSuccess(msg.result)

	case registerSucceededMsg:
		a.page = pageSignIn
		a.form = newAuthForm(modeSignIn)
		a.form.notice = fmt.Sprintf(
			"Registration successful! Welcome %s! Please sign in to continue.", msg.username)
		return a, textinput.Blink

	case authFailedMsg:
		a.form.busy = false
		a.form.errText = msg.err.Error()
		return a, nil

	case usersLoadedMsg:
		a.chat = a.chat.setContacts(msg.users)
		if msg.cached {
			a.chat.notice = "showing cached contacts"
		}
		return a, loadHistoryCmd(a.deps.History, a.chat.peer())

	case usersFailedMsg:
		a.chat.errText = msg.err.Error()
		return a, nil

	case historyLoadedMsg:
		a.chat = a.chat.withHistory(msg.peer, msg.messages)
		return a, nil

	case inboundMessageMsg:
		message := msg.message
		if pending, ok := a.chat.conv.pendingFor(message); ok {
			if message.CorrelationID == "" {
				message.CorrelationID = pending.CorrelationID
			}
			if message.RecipientUsername == "" {
				message.RecipientUsername = pending.RecipientUsername
			}
			a.settleArchived(message)
		} else {
			a.archiveInbound(message)
		}
		a.chat = a.chat.withInbound(message)
		return a, waitForInbound(a.inbox, a.sessionDone)

	case sessionErrorMsg:
		a.chat.errText = msg.err.Error()
		return a, waitForSessionError(a.sessionErrs, a.sessionDone)

	case sessionStateMsg:
		a.chat.state = msg.state
		if msg.state == network.StateConnected {
			a.chat.errText = ""
		}
		return a, waitForSessionState(a.states, a.sessionDone)
	}

	if a.page == pageSignIn || a.page == pageSignUp {
		var cmd tea.Cmd
		a.form, cmd = a.form.update(msg)
		return a, cmd
	}
	if a.page == pageChat {
		var cmd tea.Cmd
		a.chat, cmd = a.chat.update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) updateHome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.homeAt > 0 {
			a.homeAt--
		}
	case "down", "j":
		if a.homeAt < 1 {
			a.homeAt++
		}
	case "enter":
		if a.homeAt == 0 {
			a.page = pageSignIn
			a.form = newAuthForm(modeSignIn)
		} else {
			a.page = pageSignUp
			a.form = newAuthForm(modeSignUp)
		}
		return a, textinput.Blink
	case "q", "esc":
		a.teardown()
		return a, tea.Quit
	}
	return a, nil
}

func (a App) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.page = pageHome
		return a, nil
	case tea.KeyTab:
		a.form = a.form.cycleFocus(false)
		return a, nil
	case tea.KeyShiftTab:
		a.form = a.form.cycleFocus(true)
		return a, nil
	case tea.KeyEnter:
		if a.form.busy {
			return a, nil
		}
		if err := a.form.validate(); err != nil {
			a.form.errText = err.Error()
			return a, nil
		}
		a.form.errText = ""
		a.form.busy = true
		if a.form.mode == modeSignUp {
			return a, registerCmd(a.deps.API, a.form.username(), a.form.password())
		}
		return a, loginCmd(a.deps.API, a.form.username(), a.form.password())
	}

	var cmd tea.Cmd
	a.form, cmd = a.form.update(msg)
	return a, cmd
}

func (a App) updateChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlL:
		a.logout()
		a.page = pageHome
		a.homeAt = 0
		return a, nil
	case tea.KeyTab:
		if a.chat.pane == paneInput {
			a.chat.pane = paneContacts
			a.chat.input.Blur()
		} else {
			a.chat.pane = paneInput
			a.chat.input.Focus()
		}
		return a, textinput.Blink
	case tea.KeyUp, tea.KeyDown:
		if a.chat.pane == paneContacts {
			delta := 1
			if msg.Type == tea.KeyUp {
				delta = -1
			}
			before := a.chat.peer()
			a.chat = a.chat.selectOffset(delta)
			if peer := a.chat.peer(); peer != before {
				return a, loadHistoryCmd(a.deps.History, peer)
			}
			return a, nil
		}
	case tea.KeyEnter:
		if a.chat.pane == paneInput {
			return a.sendCurrent()
		}
	}

	var cmd tea.Cmd
	a.chat, cmd = a.chat.update(msg)
	return a, cmd
}

func (a App) sendCurrent() (tea.Model, tea.Cmd) {
	message, ok := a.chat.composeMessage()
	if !ok {
		return a, nil
	}
	if a.session == nil || !a.session.Ready() {
		a.chat.errText = "Not connected"
		return a, nil
	}

	a.session.Send(network.OutboundMessage{
		CorrelationID:     message.CorrelationID,
		SenderUsername:    message.SenderUsername,
		RecipientUsername: message.RecipientUsername,
		Content:           message.Content,
	})
	if a.deps.History != nil {
		if err := a.deps.History.SaveMessage(message); err != nil {
			a.deps.Logger.Warn().Err(err).Msg("failed to persist outbound message")
		}
	}
	a.chat = a.chat.withOptimistic(message)
	return a, nil
}

func (a App) handleAuthSuccess(result gateway.AuthResult) (tea.Model, tea.Cmd) {
	a.creds = models.Credentials{
		Token:    result.Token,
		Username: result.Username,
		UserID:   result.UserID,
	}
	if a.deps.OnLogin != nil {
		a.deps.OnLogin(a.creds)
	}
	started, cmd := a.enterChat()
	if !started {
		a.form.busy = false
		return a, nil
	}
	if a.width > 0 {
		a.chat = a.chat.resize(a.width, a.height)
	}
	return a, cmd
}

// enterChat opens exactly one messaging session and mounts the chat
// screen.
func (a *App) enterChat() (bool, tea.Cmd) {
	session, err := a.deps.NewSession(network.Identity{
		Username: a.creds.Username,
		UserID:   a.creds.UserID,
		Token:    a.creds.Token,
	})
	if err != nil {
		a.form.errText = err.Error()
		return false, nil
	}

	a.inbox = make(chan models.ChatMessage, 64)
	a.sessionErrs = make(chan error, 16)
	a.states = make(chan network.State, 16)
	a.sessionDone = make(chan struct{})
	inbox, errs, states := a.inbox, a.sessionErrs, a.states

	session.Open(a.deps.SocketURL, network.Handlers{
		OnMessage: func(message models.ChatMessage) {
			select {
			case inbox <- message:
			default:
			}
		},
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
		OnStateChange: func(state network.State) {
			select {
			case states <- state:
			default:
			}
		},
	})

	a.session = session
	a.page = pageChat
	a.chat = newChatState(a.creds.Username, a.creds.UserID)
	return true, tea.Batch(
		loadUsersCmd(a.deps.API, a.deps.Contacts),
		waitForInbound(inbox, a.sessionDone),
		waitForSessionError(errs, a.sessionDone),
		waitForSessionState(states, a.sessionDone),
		textinput.Blink,
	)
}

// logout clears saved credentials and closes the live session together.
func (a *App) logout() {
	if a.deps.Sessions != nil {
		if err := a.deps.Sessions.ClearSession(); err != nil {
			a.deps.Logger.Warn().Err(err).Msg("failed to clear saved session")
		}
	}
	a.teardown()
	a.creds = models.Credentials{}
}

// settleArchived marks the archived optimistic row delivered once the
// server echo for it arrives.
func (a *App) settleArchived(message models.ChatMessage) {
	if a.deps.History == nil || message.CorrelationID == "" {
		return
	}
	if err := a.deps.History.MarkDelivered(message.CorrelationID, message.ID); err != nil {
		// The outbound row may have never been written; archive the echo.
		if err := a.deps.History.SaveMessage(message); err != nil {
			a.deps.Logger.Warn().Err(err).Msg("failed to settle archived message")
		}
	}
}

// archiveInbound persists a channel message that settles no optimistic
// entry, filling the fields the server omits. Our own id-less echoes are
// skipped: their optimistic row is already archived.
func (a *App) archiveInbound(message models.ChatMessage) {
	if a.deps.History == nil {
		return
	}
	if message.CorrelationID == "" {
		if message.SenderUsername == a.creds.Username {
			return
		}
		message.CorrelationID = uuid.NewString()
	}
	if message.RecipientUsername == "" && message.ReceiverID == a.creds.UserID {
		message.RecipientUsername = a.creds.Username
	}
	if message.RecipientUsername == "" {
		return
	}
	if err := a.deps.History.SaveMessage(message); err != nil {
		a.deps.Logger.Warn().Err(err).Msg("failed to persist inbound message")
	}
}

func (a *App) teardown() {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	// Release any command still blocked on the session channels. The
	// channels themselves stay open: a handler past its generation check
	// may still be sending.
	if a.sessionDone != nil {
		close(a.sessionDone)
		a.sessionDone = nil
	}
}

func (a App) View() string {
	switch a.page {
	case pageSignIn, pageSignUp:
		return a.form.view(a.styles)
	case pageChat:
		return a.chat.view(a.styles)
	default:
		return a.homeView()
	}
}

func (a App) homeView() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("netrunner"))
	b.WriteString("\n\n")
	options := []string{"Sign in", "Create account"}
	for i, option := range options {
		if i == a.homeAt {
			b.WriteString(a.styles.Selected.Render("> " + option))
		} else {
			b.WriteString("  " + option)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Subtle.Render("enter: choose · q: quit"))
	return a.styles.Frame.Render(b.String())
}
