package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"netrunner/gateway"
	"netrunner/models"
	"netrunner/network"
)

type authSucceededMsg struct {
	result gateway.AuthResult
}

type registerSucceededMsg struct {
	username string
}

type authFailedMsg struct {
	err error
}

type usersLoadedMsg struct {
	users  []models.User
	cached bool
}

type usersFailedMsg struct {
	err error
}

type historyLoadedMsg struct {
	peer     string
	messages []models.ChatMessage
}

type inboundMessageMsg struct {
	message models.ChatMessage
}

type sessionErrorMsg struct {
	err error
}

type sessionStateMsg struct {
	state network.State
}

const requestTimeout = 15 * time.Second

func loginCmd(api AuthAPI, username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		result, err := api.Login(ctx, username, password)
		if err != nil {
			return authFailedMsg{err: err}
		}
		return authSucceededMsg{result: result}
	}
}

func registerCmd(api AuthAPI, username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		// Registration grants no token; the user signs in afterwards.
		result, err := api.Register(ctx, username, password)
		if err != nil {
			return authFailedMsg{err: err}
		}
		return registerSucceededMsg{username: result.Username}
	}
}

func loadUsersCmd(api AuthAPI, contacts ContactCache) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		users, err := api.ListUsers(ctx)
		if err != nil {
			// A stale contact list still lets an offline user read history.
			if contacts != nil {
				if cached, cacheErr := contacts.ListContacts(); cacheErr == nil && len(cached) > 0 {
					return usersLoadedMsg{users: cached, cached: true}
				}
			}
			return usersFailedMsg{err: err}
		}
		if contacts != nil {
			_ = contacts.ReplaceContacts(users)
		}
		return usersLoadedMsg{users: users}
	}
}

func loadHistoryCmd(history HistoryStore, peer string) tea.Cmd {
	return func() tea.Msg {
		if history == nil || peer == "" {
			return historyLoadedMsg{peer: peer}
		}
		messages, err := history.Conversation(peer, 200)
		if err != nil {
			return historyLoadedMsg{peer: peer}
		}
		return historyLoadedMsg{peer: peer, messages: messages}
	}
}

func waitForInbound(inbox <-chan models.ChatMessage, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case message, ok := <-inbox:
			if !ok {
				return nil
			}
			return inboundMessageMsg{message: message}
		case <-done:
			return nil
		}
	}
}

func waitForSessionError(errs <-chan error, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return sessionErrorMsg{err: err}
		case <-done:
			return nil
		}
	}
}

func waitForSessionState(states <-chan network.State, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case state, ok := <-states:
			if !ok {
				return nil
			}
			return sessionStateMsg{state: state}
		case <-done:
			return nil
		}
	}
}
