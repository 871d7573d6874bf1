// Package v1 defines the RPMS realtime protocol v1 contract.
//
// It is shared between the server and clients (including tools/scripts/ws-smoke.go)
// to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Subprotocol is negotiated during the WebSocket handshake.
const Subprotocol = "rpms.realtime.v1"

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHelloAck is sent once after the upgrade and carries the session (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeMessageSend requests sending a message to another user (client -> server).
	TypeMessageSend = "message_send"
	// TypeMessageAck acknowledges a send request (server -> client).
	TypeMessageAck = "message_ack"
	// TypeMessageNew delivers an unread message surfaced by the user's listener (server -> client).
	TypeMessageNew = "message_new"

	// TypeHistoryFetch requests the conversation with another user (client -> server).
	TypeHistoryFetch = "history_fetch"
	// TypeHistoryChunk returns the conversation (server -> client).
	TypeHistoryChunk = "history_chunk"

	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHelloAck,
		TypeMessageSend,
		TypeMessageAck,
		TypeMessageNew,
		TypeHistoryFetch,
		TypeHistoryChunk,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

type HelloAckPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// MessageSendPayload requests sending Text to user To.
// ClientMsgID is echoed in the ack so clients can correlate.
type MessageSendPayload struct {
	To          string `json:"to"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
	Text        string `json:"text"`
}

type MessageAckPayload struct {
	ClientMsgID string `json:"client_msg_id,omitempty"`
	MessageID   string `json:"message_id"`
	Seq         int64  `json:"seq"`
}

// MessagePayload is one stored message on the wire.
type MessagePayload struct {
	MessageID string    `json:"message_id"`
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// MessageNewPayload wraps a message surfaced to its receiver.
type MessageNewPayload struct {
	Message MessagePayload `json:"message"`
}

type HistoryFetchPayload struct {
	With string `json:"with"`
}

type HistoryChunkPayload struct {
	With     string           `json:"with"`
	Messages []MessagePayload `json:"messages"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
