package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type authMode int

const (
	modeSignIn authMode = iota
	modeSignUp
)

// authForm is the sign-in / sign-up input state.
type authForm struct {
	mode    authMode
	inputs  []textinput.Model
	focused int
	errText string
	notice  string
	busy    bool
}

func newAuthForm(mode authMode) authForm {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword

	inputs := []textinput.Model{username, password}
	if mode == modeSignUp {
		confirm := textinput.New()
		confirm.Placeholder = "confirm password"
		confirm.CharLimit = 128
		confirm.EchoMode = textinput.EchoPassword
		inputs = append(inputs, confirm)
	}

	return authForm{mode: mode, inputs: inputs}
}

func (f authForm) username() string { return strings.TrimSpace(f.inputs[0].Value()) }
func (f authForm) password() string { return f.inputs[1].Value() }

func (f authForm) confirmPassword() string {
	if len(f.inputs) < 3 {
		return ""
	}
	return f.inputs[2].Value()
}

// validate runs the local checks. A non-nil result means no request is
// issued.
func (f authForm) validate() error {
	if f.mode == modeSignUp {
		return ValidateSignUp(f.username(), f.password(), f.confirmPassword())
	}
	return ValidateSignIn(f.username(), f.password())
}

func (f authForm) cycleFocus(backward bool) authForm {
	step := 1
	if backward {
		step = len(f.inputs) - 1
	}
	f.focused = (f.focused + step) % len(f.inputs)
	for i := range f.inputs {
		if i == f.focused {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return f
}

func (f authForm) update(msg tea.Msg) (authForm, tea.Cmd) {
	cmds := make([]tea.Cmd, len(f.inputs))
	for i := range f.inputs {
		f.inputs[i], cmds[i] = f.inputs[i].Update(msg)
	}
	return f, tea.Batch(cmds...)
}

func (f authForm) view(styles Styles) string {
	var b strings.Builder
	if f.mode == modeSignUp {
		b.WriteString(styles.Title.Render("Create account"))
	} else {
		b.WriteString(styles.Title.Render("Sign in"))
	}
	b.WriteString("\n\n")
	if f.notice != "" {
		b.WriteString(styles.Notice.Render(f.notice))
		b.WriteString("\n\n")
	}
	for i := range f.inputs {
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	if f.errText != "" {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(f.errText))
		b.WriteString("\n")
	}
	if f.busy {
		b.WriteString("\n")
		b.WriteString(styles.Subtle.Render("Contacting server..."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.Subtle.Render("tab: next field · enter: submit · esc: back"))
	return styles.Frame.Render(b.String())
}
