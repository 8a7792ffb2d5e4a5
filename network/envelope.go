package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"netrunner/models"
)

// EnvelopeType identifies one frame on the messaging channel.
type EnvelopeType string

const (
	TypeMessage    EnvelopeType = "MESSAGE"
	TypeConnect    EnvelopeType = "CONNECT"
	TypeDisconnect EnvelopeType = "DISCONNECT"
	TypeError      EnvelopeType = "ERROR"
)

var (
	// ErrMalformedPayload indicates an inbound frame that could not be parsed.
	ErrMalformedPayload = errors.New("network: malformed payload")
)

// Envelope is the wire frame exchanged on the websocket: a type tag and a
// type-specific JSON payload.
type Envelope struct {
	Type EnvelopeType    `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnectPayload announces the authenticated user after the socket opens.
type ConnectPayload struct {
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// OutboundMessage is the chat request published for the server to route.
type OutboundMessage struct {
	CorrelationID     string `json:"correlationId,omitempty"`
	SenderUsername    string `json:"senderUsername"`
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
}

// ErrorPayload carries a server-reported channel error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EncodeEnvelope marshals a payload into a typed frame.
func EncodeEnvelope(envelopeType EnvelopeType, payload any) ([]byte, error) {
	var (
		data json.RawMessage
		err  error
	)
	if payload != nil {
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", envelopeType, err)
		}
	}

	raw, err := json.Marshal(Envelope{Type: envelopeType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", envelopeType, err)
	}
	return raw, nil
}

// DecodeEnvelope parses a raw inbound frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	}
	return envelope, nil
}

// DecodeChatMessage parses a MESSAGE envelope's payload.
func DecodeChatMessage(data json.RawMessage) (models.ChatMessage, error) {
	var message models.ChatMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return models.ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if message.Content == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: empty content", ErrMalformedPayload)
	}
	return message, nil
}
