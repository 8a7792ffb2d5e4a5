// Package gateway talks to the chat server's REST API.
//
// Every operation fails with a single uniform *APIError so callers can
// display one message without inspecting transport details.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"netrunner/models"
)

const (
	registerPath = "/api/auth/register"
	loginPath    = "/api/auth/login"
	usersPath    = "/api/users"

	// DefaultRequestTimeout bounds every REST call.
	DefaultRequestTimeout = 10 * time.Second
)

var (
	// ErrMissingUserID indicates the server's auth response omitted a usable
	// user ID. The client fails closed instead of substituting a default.
	ErrMissingUserID = errors.New("gateway: auth response is missing a user ID")
)

// APIError is the uniform failure value for all gateway operations.
// Message carries the server's reported error verbatim when one exists,
// otherwise a generic transport message.
type APIError struct {
	Status  int
	Message string
	cause   error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.Status)
	}
	return "gateway: " + e.Message
}

func (e *APIError) Unwrap() error { return e.cause }

// TokenSource supplies the current bearer token, or "" when logged out.
type TokenSource func() string

// AuthResult is the server's response to register and login.
type AuthResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   int64  `json:"userId"`
	Message  string `json:"message"`
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Some deployments report {"error": ...}, older ones {"message": ...}.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// Gateway performs the three REST operations against the chat server.
// It never retries; retry policy belongs to the caller.
type Gateway struct {
	client *resty.Client
	log    zerolog.Logger
}

// Option adjusts Gateway construction.
type Option func(*Gateway)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.client.SetTimeout(timeout)
	}
}

// WithLogger attaches a logger for request failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = logger
	}
}

// New creates a Gateway for the given REST base URL. tokens supplies the
// bearer credential attached to every authenticated request.
func New(baseURL string, tokens TokenSource, options ...Option) *Gateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultRequestTimeout).
		SetHeader("Content-Type", "application/json")

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if tokens != nil {
			if token := tokens(); token != "" {
				req.SetAuthToken(token)
			}
		}
		return nil
	})

	g := &Gateway{
		client: client,
		log:    zerolog.Nop(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Register creates a new account. The returned result carries no token;
// the caller signs in afterwards.
func (g *Gateway) Register(ctx context.Context, username, password string) (AuthResult, error) {
	var (
		result AuthResult
		apiErr errorBody
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(credentialsBody{Username: username, Password: password}).
		SetResult(&result).
		SetError(&apiErr).
		Post(registerPath)
	if err != nil {
		return AuthResult{}, g.transportError("register", err)
	}
	if resp.IsError() {
		return AuthResult{}, g.serverError("register", resp.StatusCode(), apiErr, "Registration failed")
	}
	if result.UserID <= 0 {
		return AuthResult{}, &APIError{Status: resp.StatusCode(), Message: ErrMissingUserID.Error(), cause: ErrMissingUserID}
	}

	return result, nil
}

// Login authenticates and returns the session credentials. It fails with
// ErrMissingUserID when the response lacks a token or a positive user ID.
func (g *Gateway) Login(ctx context.Context, username, password string) (AuthResult, error) {
	var (
		result AuthResult
		apiErr errorBody
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(credentialsBody{Username: username, Password: password}).
		SetResult(&result).
		SetError(&apiErr).
		Post(loginPath)
	if err != nil {
		return AuthResult{}, g.transportError("login", err)
	}
	if resp.IsError() {
		return AuthResult{}, g.serverError("login", resp.StatusCode(), apiErr, "Login failed")
	}
	if result.Token == "" {
		return AuthResult{}, &APIError{Status: resp.StatusCode(), Message: "Login failed"}
	}
	if result.UserID <= 0 {
		return AuthResult{}, &APIError{Status: resp.StatusCode(), Message: ErrMissingUserID.Error(), cause: ErrMissingUserID}
	}

	return result, nil
}

// ListUsers fetches all registered users. The bearer token is attached
// automatically.
func (g *Gateway) ListUsers(ctx context.Context) ([]models.User, error) {
	var (
		users  []models.User
		apiErr errorBody
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&users).
		SetError(&apiErr).
		Get(usersPath)
	if err != nil {
		return nil, g.transportError("list users", err)
	}
	if resp.IsError() {
		return nil, g.serverError("list users", resp.StatusCode(), apiErr, "Failed to fetch users")
	}

	return users, nil
}

func (g *Gateway) transportError(operation string, err error) *APIError {
	g.log.Warn().Err(err).Str("operation", operation).Msg("request failed")
	return &APIError{Message: "An unexpected error occurred", cause: err}
}

func (g *Gateway) serverError(operation string, status int, body errorBody, fallback string) *APIError {
	message := body.text()
	if message == "" {
		message = fallback
	}
	g.log.Debug().Int("status", status).Str("operation", operation).Str("message", message).Msg("server rejected request")
	return &APIError{Status: status, Message: message}
}
