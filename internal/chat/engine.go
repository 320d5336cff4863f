package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/parleychat/parley/internal/pubsub"
)

// Engine is the session and routing core. It owns the presence registry and
// the history store, validates every externally-triggered operation before
// mutating shared state, and publishes fan-out events on the pub/sub bus.
// Operation results (acknowledgements) are returned synchronously to the
// caller; fan-out is fire-and-forget.
type Engine struct {
	presence  *Presence
	history   *History
	publisher pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistoryCapacity bounds each conversation history to n messages.
func WithHistoryCapacity(n int) Option {
	return func(e *Engine) {
		e.history = NewHistory(n)
	}
}

// WithClock overrides the engine's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine publishing its fan-out events on pub.
func NewEngine(pub pubsub.Publisher, opts ...Option) *Engine {
	e := &Engine{
		presence:  NewPresence(),
		history:   NewHistory(DefaultHistoryCapacity),
		publisher: pub,
		logger:    slog.Default().With("service", "chat"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// JoinResult is the acknowledgement payload of a successful join: the bound
// name and the global history snapshot. Private history is not pre-loaded
// at join time; clients request it per conversation.
type JoinResult struct {
	Name   string
	Global []Message
}

// Join binds requestedName to connID and, on success, broadcasts the
// updated roster and a join notification to all connections (including the
// joining one).
func (e *Engine) Join(connID, requestedName string) (*JoinResult, error) {
	name, err := e.presence.Join(connID, requestedName)
	if err != nil {
		return nil, err
	}

	result := &JoinResult{
		Name:   name,
		Global: e.history.SnapshotGlobal(),
	}

	e.publishRoster()
	e.publishNotification(NotificationJoin, name)

	e.logger.Info("user joined", "user", name, "conn_id", connID)
	return result, nil
}

// SubmitResult is the acknowledgement payload of an accepted message. The
// timestamp is always the server's own, even when the stored message kept a
// client-supplied one.
type SubmitResult struct {
	ID        string
	Timestamp int64
}

// Submit validates and routes one outgoing message. Preconditions are
// checked in order (identity, then text, then recipient) and any failure
// leaves history and presence untouched with no fan-out. On success the message is
// placed in its bounded history before it is delivered, so a late joiner's
// snapshot is always consistent with what was broadcast live.
func (e *Engine) Submit(connID, text, target string, clientTimestamp int64) (*SubmitResult, error) {
	from, ok := e.presence.NameOf(connID)
	if !ok {
		return nil, NewReject(ErrNotAuthenticated)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewReject(ErrEmptyMessage)
	}

	serverNow := e.now().UnixMilli()
	timestamp := clientTimestamp
	if timestamp <= 0 {
		timestamp = serverNow
	}

	msg := Message{
		ID:        NewMessageID(e.now()),
		From:      from,
		Text:      text,
		Timestamp: timestamp,
		Private:   target != "",
		To:        target,
	}

	if msg.Private {
		recipientConn, online := e.presence.ConnectionFor(target)
		if !online {
			return nil, NewReject(ErrRecipientOffline)
		}
		e.history.AppendPrivate(PairKey(from, target), msg)
		// Recipient plus an echo to the sender, so the sender's UI picks up
		// the authoritative id and timestamp.
		e.publish(TopicMessageDirect, msg, ScopeConnsMeta(recipientConn, connID))
	} else {
		e.history.AppendGlobal(msg)
		e.publish(TopicMessageBroadcast, msg, ScopeAllMeta())
	}

	return &SubmitResult{ID: msg.ID, Timestamp: serverNow}, nil
}

// SetTyping relays an ephemeral typing signal to every other connection.
// Unauthenticated connections are silently ignored; there is no
// acknowledgement and nothing is persisted.
func (e *Engine) SetTyping(connID string, isTyping bool) {
	user, ok := e.presence.NameOf(connID)
	if !ok {
		return
	}
	e.publish(TopicTyping, TypingSignal{User: user, IsTyping: isTyping}, ScopeExceptMeta(connID))
}

// PrivateHistory returns the caller's conversation with withUser, oldest
// first. The pair key is commutative, so either participant sees the same
// sequence.
func (e *Engine) PrivateHistory(connID, withUser string) ([]Message, error) {
	from, ok := e.presence.NameOf(connID)
	if !ok {
		return nil, NewReject(ErrNotAuthenticated)
	}
	withUser = strings.TrimSpace(withUser)
	if withUser == "" {
		return nil, NewReject(ErrInvalidRequest)
	}
	return e.history.SnapshotPrivate(PairKey(from, withUser)), nil
}

// Disconnect closes the session for connID. When the connection was
// authenticated, its binding is released and the updated roster and a leave
// notification are broadcast; otherwise the disconnect is a pure no-op.
func (e *Engine) Disconnect(connID string) {
	name, wasBound := e.presence.Leave(connID)
	if !wasBound {
		return
	}

	e.publishRoster()
	e.publishNotification(NotificationLeave, name)

	e.logger.Info("user left", "user", name, "conn_id", connID)
}

// Roster returns the live set of bound display names.
func (e *Engine) Roster() []string {
	return e.presence.Roster()
}

// ServerTime returns the server's current epoch milliseconds, used by the
// health acknowledgement.
func (e *Engine) ServerTime() int64 {
	return e.now().UnixMilli()
}

func (e *Engine) publishRoster() {
	e.publish(TopicRoster, e.presence.Roster(), ScopeAllMeta())
}

func (e *Engine) publishNotification(kind, user string) {
	e.publish(TopicNotification, Notification{Type: kind, User: user}, ScopeAllMeta())
}

// publish serializes payload and hands it to the bus. Fan-out failures are
// logged, never surfaced to the operation's caller: the acknowledgement
// covers acceptance and persistence only.
func (e *Engine) publish(topic string, payload any, meta map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("failed to marshal fan-out payload", "topic", topic, "error", err)
		return
	}

	msg := pubsub.Message{
		Topic:    topic,
		Payload:  data,
		Metadata: meta,
	}
	if err := e.publisher.Publish(context.Background(), msg); err != nil {
		e.logger.Error("failed to publish fan-out event", "topic", topic, "error", err)
	}
}
