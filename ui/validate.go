package ui

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds outgoing chat message content.
const MaxMessageLength = 1000

var (
	// ErrEmptyFields signals that a required form field is blank.
	ErrEmptyFields = errors.New("Please fill in all fields")
	// ErrUsernameLength signals a sign-up username outside the allowed range.
	ErrUsernameLength = errors.New("Username must be between 3 and 20 characters")
	// ErrPasswordTooShortSignUp is the sign-up password length message.
	ErrPasswordTooShortSignUp = errors.New("Password must be at least 8 characters long")
	// ErrPasswordTooShortSignIn is the sign-in password length message.
	ErrPasswordTooShortSignIn = errors.New("Password must be at least 8 characters")
	// ErrPasswordMismatch signals that password and confirmation differ.
	ErrPasswordMismatch = errors.New("Passwords do not match")
	// ErrMessageEmpty rejects whitespace-only chat input.
	ErrMessageEmpty = errors.New("Message cannot be empty")
	// ErrMessageTooLong rejects chat input above MaxMessageLength.
	ErrMessageTooLong = errors.New("Message cannot exceed 1000 characters")
)

// ValidateSignUp checks registration input locally. No network calls are
// made for input that fails here.
func ValidateSignUp(username, password, confirmPassword string) error {
	if strings.TrimSpace(username) == "" || password == "" || confirmPassword == "" {
		return ErrEmptyFields
	}
	if length := utf8.RuneCountInString(username); length < 3 || length > 20 {
		return ErrUsernameLength
	}
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShortSignUp
	}
	if password != confirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidateSignIn checks login input locally.
func ValidateSignIn(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrEmptyFields
	}
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShortSignIn
	}
	return nil
}

// ValidateMessageContent checks chat input before it reaches the session.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
