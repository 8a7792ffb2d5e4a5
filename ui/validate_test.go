package ui

import (
	"errors"
	"testing"
)

func TestValidateSignUpRules(t *testing.T) {
	cases := []struct {
		name     string
		username string
		password string
		confirm  string
		want     error
	}{
		{"all empty", "", "", "", ErrEmptyFields},
		{"missing confirm", "alice", "longenough", "", ErrEmptyFields},
		{"username too short", "al", "longenough", "longenough", ErrUsernameLength},
		{"username too long", "abcdefghijklmnopqrstu", "longenough", "longenough", ErrUsernameLength},
		{"password too short", "alice", "short", "short", ErrPasswordTooShortSignUp},
		{"mismatch", "alice", "longenough", "different1", ErrPasswordMismatch},
		{"valid", "alice", "longenough", "longenough", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateSignUp(tc.username, tc.password, tc.confirm)
			if !errors.Is(got, tc.want) {
				t.Fatalf("ValidateSignUp(%q, ...) = %v, want %v", tc.username, got, tc.want)
			}
		})
	}
}

func TestValidateSignUpMismatchMessageIsLiteral(t *testing.T) {
	err := ValidateSignUp("alice", "longenough", "different1")
	if err == nil || err.Error() != "Passwords do not match" {
		t.Fatalf("unexpected mismatch error: %v", err)
	}
}

func TestValidateSignInRules(t *testing.T) {
	if err := ValidateSignIn("", "longenough"); !errors.Is(err, ErrEmptyFields) {
		t.Fatalf("expected empty-field error, got %v", err)
	}
	if err := ValidateSignIn("alice", "short"); !errors.Is(err, ErrPasswordTooShortSignIn) {
		t.Fatalf("expected short-password error, got %v", err)
	}
	if err := ValidateSignIn("alice", "short"); err.Error() != "Password must be at least 8 characters" {
		t.Fatalf("unexpected sign-in password message: %q", err.Error())
	}
	if err := ValidateSignIn("alice", "longenough"); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestValidateMessageContent(t *testing.T) {
	if err := ValidateMessageContent("   "); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("expected empty-message error, got %v", err)
	}

	long := make([]byte, MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateMessageContent(string(long)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected too-long error, got %v", err)
	}

	if err := ValidateMessageContent(string(long[:MaxMessageLength])); err != nil {
		t.Fatalf("expected max-length content to pass, got %v", err)
	}
}
