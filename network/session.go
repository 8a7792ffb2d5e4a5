// Package network owns the persistent messaging channel to the chat server.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"netrunner/models"
)

var (
	// ErrNotReady indicates a send was attempted while the channel is not connected.
	ErrNotReady = errors.New("network: channel is not connected")
	// ErrReconnectExhausted indicates automatic reconnection gave up.
	ErrReconnectExhausted = errors.New("network: reconnect attempts exhausted")
)

// State represents the lifecycle state of the messaging channel.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateErrored      State = "ERRORED"
)

const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultReconnectBaseDelay is the first backoff interval after an
	// abnormal closure; it doubles on each consecutive failure.
	DefaultReconnectBaseDelay = time.Second
	// DefaultReconnectMaxInterval caps the backoff interval.
	DefaultReconnectMaxInterval = 30 * time.Second
	// DefaultMaxReconnectAttempts is the consecutive-failure budget before a
	// terminal error is reported.
	DefaultMaxReconnectAttempts = 5
)

// Identity is the authenticated user the session speaks for.
type Identity struct {
	Username string
	UserID   int64
	Token    string
}

// Handlers receive session events. All handlers are invoked from the
// session's read goroutine, one at a time, in arrival order.
type Handlers struct {
	OnMessage     func(models.ChatMessage)
	OnError       func(error)
	OnStateChange func(State)
}

type dialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Options controls session behavior.
type Options struct {
	Identity             Identity
	HandshakeTimeout     time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxInterval time.Duration
	MaxReconnectAttempts int
	Logger               zerolog.Logger

	dialFn dialFunc
}

func (o Options) withDefaults() Options {
	out := o
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if out.ReconnectBaseDelay <= 0 {
		out.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if out.ReconnectMaxInterval <= 0 {
		out.ReconnectMaxInterval = DefaultReconnectMaxInterval
	}
	if out.MaxReconnectAttempts <= 0 {
		out.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if out.dialFn == nil {
		dialer := &websocket.Dialer{HandshakeTimeout: out.HandshakeTimeout}
		out.dialFn = func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := dialer.DialContext(ctx, url, nil)
			return conn, err
		}
	}
	return out
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Identity.Username) == "" {
		return errors.New("network: session requires a username")
	}
	return nil
}

// Session manages one persistent logical connection to the server's message
// channel. At most one underlying websocket is active per session; a new
// Open tears the previous one down first.
type Session struct {
	opts Options
	log  zerolog.Logger

	mu          sync.Mutex
	state       State
	handlers    Handlers
	conn        *websocket.Conn
	generation  uint64
	cancel      context.CancelFunc
	attemptDone chan struct{}

	writeMu sync.Mutex
}

// NewSession creates an unopened session for the given identity.
func NewSession(options Options) (*Session, error) {
	opts := options.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Session{
		opts:  opts,
		log:   opts.Logger,
		state: StateDisconnected,
	}, nil
}

// Open connects to the given websocket URL. It never blocks: establishment
// and failures are reported through the supplied handlers. Any previous
// connection is fully torn down before the new one starts dialing.
func (s *Session) Open(url string, handlers Handlers) {
	s.mu.Lock()
	prevCancel := s.cancel
	prevConn := s.conn
	prevDone := s.attemptDone

	s.generation++
	gen := s.generation
	s.handlers = handlers
	s.conn = nil

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := make(chan struct{})
	s.attemptDone = done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prevConn != nil {
		_ = prevConn.Close()
	}

	s.setState(gen, StateConnecting)

	go func() {
		defer close(done)
		// Teardown of the previous attempt completes before dialing so at
		// most one channel is ever active.
		if prevDone != nil {
			<-prevDone
		}
		s.run(ctx, gen, url)
	}()
}

// Send transmits a chat request if the channel is connected. A send while
// not connected is reported through the error handler and dropped; unsent
// messages are never queued.
func (s *Session) Send(message OutboundMessage) {
	s.mu.Lock()
	gen := s.generation
	conn := s.conn
	ready := s.state == StateConnected && conn != nil
	s.mu.Unlock()

	if !ready {
		s.reportError(gen, ErrNotReady)
		return
	}

	raw, err := EncodeEnvelope(TypeMessage, message)
	if err != nil {
		s.reportError(gen, err)
		return
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, raw)
	s.writeMu.Unlock()
	if err != nil {
		s.reportError(gen, fmt.Errorf("send message: %w", err))
		// The read loop notices the dead socket and drives reconnection.
		_ = conn.Close()
	}
}

// Ready reports whether the channel is currently connected.
func (s *Session) Ready() bool {
	return s.State() == StateConnected
}

// State returns the current channel state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the channel and leaves the session Disconnected. It is
// idempotent, safe on a never-opened session, aborts an in-flight dial,
// and suppresses all further handler invocations. A Close never triggers
// reconnection.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	s.cancel = nil
	s.conn = nil
	s.attemptDone = nil
	s.generation++
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		if raw, err := EncodeEnvelope(TypeDisconnect, nil); err == nil {
			s.writeMu.Lock()
			_ = conn.WriteMessage(websocket.TextMessage, raw)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.writeMu.Unlock()
		}
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *Session) run(ctx context.Context, gen uint64, url string) {
	policy := newBackOff(s.opts.ReconnectBaseDelay, s.opts.ReconnectMaxInterval)
	failures := 0

	for {
		conn, err := s.establish(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			failures++
			s.log.Warn().Err(err).Int("failures", failures).Str("url", url).Msg("channel connect failed")
			s.setState(gen, StateErrored)
			s.reportError(gen, err)

			if failures >= s.opts.MaxReconnectAttempts {
				s.reportError(gen, ErrReconnectExhausted)
				return
			}
			if !s.sleep(ctx, policy.NextBackOff()) {
				return
			}
			s.setState(gen, StateConnecting)
			continue
		}

		if !s.adoptConn(gen, conn) {
			_ = conn.Close()
			return
		}

		failures = 0
		policy.Reset()
		s.log.Info().Str("url", url).Msg("channel connected")
		s.setState(gen, StateConnected)

		clean := s.readLoop(ctx, gen, conn)
		s.dropConn(gen)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		if clean {
			s.setState(gen, StateDisconnected)
			return
		}

		// Abnormal closure: retry with backoff.
		s.setState(gen, StateErrored)
		failures++
		if failures >= s.opts.MaxReconnectAttempts {
			s.reportError(gen, ErrReconnectExhausted)
			return
		}
		if !s.sleep(ctx, policy.NextBackOff()) {
			return
		}
		s.setState(gen, StateConnecting)
	}
}

// establish dials the websocket and announces the user with a CONNECT frame.
func (s *Session) establish(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, err := s.opts.dialFn(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", url, err)
	}

	raw, err := EncodeEnvelope(TypeConnect, ConnectPayload{
		Username: s.opts.Identity.Username,
		Token:    s.opts.Identity.Token,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("announce user: %w", err)
	}

	return conn, nil
}

// readLoop consumes frames until the connection ends. It returns true for
// a clean closure (caller close, server close frame, or DISCONNECT) and
// false for an abnormal one.
func (s *Session) readLoop(ctx context.Context, gen uint64, conn *websocket.Conn) bool {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true
			}
			s.reportError(gen, fmt.Errorf("read frame: %w", err))
			return false
		}

		if s.handleFrame(gen, raw) {
			return true
		}
	}
}

// handleFrame dispatches one inbound frame. It returns true when the server
// asked for a clean shutdown.
func (s *Session) handleFrame(gen uint64, raw []byte) bool {
	envelope, err := DecodeEnvelope(raw)
	if err != nil {
		// Malformed payloads are reported and discarded; the session keeps
		// reading.
		s.reportError(gen, err)
		return false
	}

	switch envelope.Type {
	case TypeMessage:
		message, err := DecodeChatMessage(envelope.Data)
		if err != nil {
			s.reportError(gen, err)
			return false
		}
		// Shared broadcast stream: surface only messages involving this user.
		if !message.Involves(s.opts.Identity.UserID, s.opts.Identity.Username) {
			return false
		}
		s.forwardMessage(gen, message)
	case TypeError:
		var payload ErrorPayload
		message := "server reported an error"
		if err := decodeErrorPayload(envelope.Data, &payload); err == nil && payload.Message != "" {
			message = payload.Message
		}
		s.reportError(gen, errors.New("network: "+message))
	case TypeDisconnect:
		return true
	case TypeConnect:
		// Server connect acknowledgement carries nothing we need.
	default:
		s.reportError(gen, fmt.Errorf("%w: unknown type %q", ErrMalformedPayload, envelope.Type))
	}

	return false
}

func (s *Session) adoptConn(gen uint64, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) dropConn(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.conn = nil
}

func (s *Session) setState(gen uint64, state State) {
	s.mu.Lock()
	if gen != s.generation || s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	handler := s.handlers.OnStateChange
	s.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

func (s *Session) reportError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	handler := s.handlers.OnError
	s.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}

func (s *Session) forwardMessage(gen uint64, message models.ChatMessage) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	handler := s.handlers.OnMessage
	s.mu.Unlock()

	if handler != nil {
		handler(message)
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// newBackOff builds the reconnect schedule: base delay doubling per
// consecutive failure, capped at max, no jitter so delays are
// monotonically non-decreasing.
func newBackOff(base, max time.Duration) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = base
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = max
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

func decodeErrorPayload(data []byte, payload *ErrorPayload) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, payload)
}
