package websocket

import (
	"encoding/json"

	"github.com/parleychat/parley/internal/chat"
)

// Client-initiated events.
const (
	EventJoin           = "join"
	EventMessage        = "message"
	EventTyping         = "typing"
	EventPrivateHistory = "get-private-history"
	EventHealth         = "ack"
)

// Server-initiated events. EventMessage doubles as the global broadcast
// event name.
const (
	EventAck            = "ack"
	EventPrivateMessage = "private-message"
	EventOnlineUsers    = "online-users"
	EventNotification   = "notification"
)

// ClientFrame is one inbound event from a client. Seq is the client's
// acknowledgement correlation number; zero means the client did not ask for
// an acknowledgement.
type ClientFrame struct {
	Event string          `json:"event" validate:"required"`
	Seq   uint64          `json:"seq"`
	Data  json.RawMessage `json:"data"`
}

// ServerFrame is one outbound frame: either an acknowledgement (Event "ack"
// with the originating Seq) or a server push.
type ServerFrame struct {
	Event string `json:"event"`
	Seq   uint64 `json:"seq,omitempty"`
	Data  any    `json:"data"`
}

// JoinRequest asks to bind a display name to this connection.
type JoinRequest struct {
	Name string `json:"name"`
}

// MessageRequest submits one chat message. To is empty for a global
// message. ClientToken is an opaque correlation value that is echoed back
// only in the sender's acknowledgement, never in the fan-out.
type MessageRequest struct {
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	To          string `json:"to,omitempty"`
	ClientToken string `json:"clientToken,omitempty"`
}

// TypingRequest toggles the caller's typing indicator.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// PrivateHistoryRequest asks for the caller's conversation with one user.
type PrivateHistoryRequest struct {
	WithUser string `json:"withUser" validate:"required"`
}

// HistoryBundle is the history snapshot attached to a join acknowledgement.
// Only the global sequence is pre-loaded; private conversations are fetched
// on demand.
type HistoryBundle struct {
	Global []chat.Message `json:"global"`
}

// JoinAck acknowledges a successful join.
type JoinAck struct {
	OK      bool          `json:"ok"`
	History HistoryBundle `json:"history"`
}

// MessageAck acknowledges an accepted message with its authoritative server
// id and timestamp.
type MessageAck struct {
	OK          bool   `json:"ok"`
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"`
	ClientToken string `json:"clientToken,omitempty"`
}

// PrivateHistoryAck carries one private conversation snapshot.
type PrivateHistoryAck struct {
	OK      bool           `json:"ok"`
	History []chat.Message `json:"history"`
}

// HealthAck answers the client-side health probe.
type HealthAck struct {
	OK         bool  `json:"ok"`
	ServerTime int64 `json:"serverTime"`
}

// ErrorAck is the failure acknowledgement for any operation.
type ErrorAck struct {
	OK    bool           `json:"ok"`
	Error chat.ErrorCode `json:"error"`
}

// NewErrorAck builds the failure acknowledgement for err.
func NewErrorAck(err error) ErrorAck {
	return ErrorAck{OK: false, Error: chat.CodeOf(err)}
}
