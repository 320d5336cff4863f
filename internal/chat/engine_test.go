package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/pubsub"
)

// mockPublisher implements pubsub.Publisher for testing.
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) byTopic(topic string) []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pubsub.Message
	for _, msg := range m.messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func newTestEngine(opts ...Option) (*Engine, *mockPublisher) {
	pub := &mockPublisher{}
	return NewEngine(pub, opts...), pub
}

func TestEngine_JoinReturnsGlobalHistory(t *testing.T) {
	e, pub := newTestEngine()

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)
	_, err = e.Submit("conn1", "hello", "", 0)
	require.NoError(t, err)

	result, err := e.Join("conn2", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", result.Name)
	require.Len(t, result.Global, 1)
	assert.Equal(t, "hello", result.Global[0].Text)

	// Each join broadcasts the updated roster and a join notification.
	rosters := pub.byTopic(TopicRoster)
	require.Len(t, rosters, 2)
	var roster []string
	require.NoError(t, json.Unmarshal(rosters[1].Payload, &roster))
	assert.Equal(t, []string{"alice", "bob"}, roster)

	notes := pub.byTopic(TopicNotification)
	require.Len(t, notes, 2)
	var note Notification
	require.NoError(t, json.Unmarshal(notes[1].Payload, &note))
	assert.Equal(t, Notification{Type: NotificationJoin, User: "bob"}, note)
	assert.Equal(t, ScopeAll, notes[1].Metadata[MetaScope])
}

func TestEngine_DistinctJoinsAllSucceed(t *testing.T) {
	e, _ := newTestEngine()

	names := []string{"alice", "bob", "carol"}
	for i, name := range names {
		_, err := e.Join(fmt.Sprintf("conn%d", i), name)
		require.NoError(t, err)
	}
	assert.Equal(t, names, e.Roster())
}

func TestEngine_GlobalMessageFanOut(t *testing.T) {
	e, pub := newTestEngine()

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)

	result, err := e.Submit("conn1", "  hi  ", "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Greater(t, result.Timestamp, int64(0))

	broadcasts := pub.byTopic(TopicMessageBroadcast)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, ScopeAll, broadcasts[0].Metadata[MetaScope])

	var msg Message
	require.NoError(t, json.Unmarshal(broadcasts[0].Payload, &msg))
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "hi", msg.Text, "text is trimmed before routing")
	assert.False(t, msg.Private)
	assert.Empty(t, msg.To)
	assert.Equal(t, result.ID, msg.ID)
}

func TestEngine_SubmitValidationOrder(t *testing.T) {
	e, pub := newTestEngine()

	// Identity is checked first, even with an empty text.
	_, err := e.Submit("conn1", "   ", "", 0)
	require.Error(t, err)
	assert.Equal(t, ErrNotAuthenticated, CodeOf(err))

	_, err = e.Join("conn1", "alice")
	require.NoError(t, err)

	_, err = e.Submit("conn1", "   ", "", 0)
	require.Error(t, err)
	assert.Equal(t, ErrEmptyMessage, CodeOf(err))

	_, err = e.Submit("conn1", "psst", "nobody", 0)
	require.Error(t, err)
	assert.Equal(t, ErrRecipientOffline, CodeOf(err))

	// No fan-out and no history append happened for any failure.
	assert.Empty(t, pub.byTopic(TopicMessageBroadcast))
	assert.Empty(t, pub.byTopic(TopicMessageDirect))
	assert.Empty(t, e.history.SnapshotGlobal())
	assert.Empty(t, e.history.SnapshotPrivate(PairKey("alice", "nobody")))
}

func TestEngine_PrivateMessageDelivery(t *testing.T) {
	e, pub := newTestEngine()

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)
	_, err = e.Join("conn2", "bob")
	require.NoError(t, err)

	result, err := e.Submit("conn1", "secret", "bob", 0)
	require.NoError(t, err)

	directs := pub.byTopic(TopicMessageDirect)
	require.Len(t, directs, 1)
	assert.Equal(t, ScopeConns, directs[0].Metadata[MetaScope])
	assert.ElementsMatch(t, []string{"conn1", "conn2"},
		SplitConnList(directs[0].Metadata[MetaConns]),
		"delivered to exactly the recipient and the sender echo")

	var msg Message
	require.NoError(t, json.Unmarshal(directs[0].Payload, &msg))
	assert.True(t, msg.Private)
	assert.Equal(t, "bob", msg.To)
	assert.Equal(t, result.ID, msg.ID)

	// Retrievable by either participant, same sequence.
	fromAlice, err := e.PrivateHistory("conn1", "bob")
	require.NoError(t, err)
	fromBob, err := e.PrivateHistory("conn2", "alice")
	require.NoError(t, err)
	assert.Equal(t, fromAlice, fromBob)
	require.Len(t, fromAlice, 1)
	assert.Equal(t, "secret", fromAlice[0].Text)

	// Nothing leaked into the global sequence.
	assert.Empty(t, e.history.SnapshotGlobal())
}

func TestEngine_PrivateHistoryValidation(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.PrivateHistory("conn1", "bob")
	require.Error(t, err)
	assert.Equal(t, ErrNotAuthenticated, CodeOf(err))

	_, err = e.Join("conn1", "alice")
	require.NoError(t, err)

	_, err = e.PrivateHistory("conn1", "   ")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))

	history, err := e.PrivateHistory("conn1", "bob")
	require.NoError(t, err)
	assert.Empty(t, history, "an untouched conversation is empty, not an error")
}

func TestEngine_HistoryCapacityBound(t *testing.T) {
	const capacity = 20

	e, _ := newTestEngine(WithHistoryCapacity(capacity))

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)

	for i := 0; i < capacity+1; i++ {
		_, err := e.Submit("conn1", fmt.Sprintf("msg %d", i), "", 0)
		require.NoError(t, err)
	}

	snap := e.history.SnapshotGlobal()
	require.Len(t, snap, capacity)
	assert.Equal(t, "msg 1", snap[0].Text, "oldest message evicted")
	assert.Equal(t, fmt.Sprintf("msg %d", capacity), snap[capacity-1].Text)
}

func TestEngine_ServerAuthoritativeAckTimestamp(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	e, pub := newTestEngine(WithClock(func() time.Time { return fixed }))

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)

	// A client-supplied timestamp is kept on the stored message, but the
	// acknowledgement always carries the server's own clock.
	result, err := e.Submit("conn1", "hi", "", 1600000000000)
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), result.Timestamp)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.byTopic(TopicMessageBroadcast)[0].Payload, &msg))
	assert.Equal(t, int64(1600000000000), msg.Timestamp)
}

func TestEngine_TypingRelay(t *testing.T) {
	e, pub := newTestEngine()

	// Unauthenticated typing is silently dropped.
	e.SetTyping("conn1", true)
	assert.Empty(t, pub.byTopic(TopicTyping))

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)

	e.SetTyping("conn1", true)
	signals := pub.byTopic(TopicTyping)
	require.Len(t, signals, 1)
	assert.Equal(t, ScopeExcept, signals[0].Metadata[MetaScope])
	assert.Equal(t, "conn1", signals[0].Metadata[MetaExclude])

	var signal TypingSignal
	require.NoError(t, json.Unmarshal(signals[0].Payload, &signal))
	assert.Equal(t, TypingSignal{User: "alice", IsTyping: true}, signal)
}

func TestEngine_DisconnectLifecycle(t *testing.T) {
	e, pub := newTestEngine()

	// Disconnecting a connection that never joined is a pure no-op.
	e.Disconnect("ghost")
	assert.Empty(t, pub.byTopic(TopicNotification))
	assert.Empty(t, pub.byTopic(TopicRoster))

	_, err := e.Join("conn1", "alice")
	require.NoError(t, err)
	e.Disconnect("conn1")

	assert.Empty(t, e.Roster())

	notes := pub.byTopic(TopicNotification)
	require.Len(t, notes, 2, "one join, one leave")
	var note Notification
	require.NoError(t, json.Unmarshal(notes[1].Payload, &note))
	assert.Equal(t, Notification{Type: NotificationLeave, User: "alice"}, note)

	// The name is available again after the disconnect.
	_, err = e.Join("conn2", "alice")
	require.NoError(t, err)
}

// TestEngine_Scenario walks the end-to-end session flow: duplicate join,
// second join with a fresh name, a global message, and a private exchange.
func TestEngine_Scenario(t *testing.T) {
	e, pub := newTestEngine()

	_, err := e.Join("c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, e.Roster())

	_, err = e.Join("c2", "alice")
	require.Error(t, err)
	assert.Equal(t, ErrUsernameTaken, CodeOf(err))

	_, err = e.Join("c2", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, e.Roster())

	result, err := e.Submit("c1", "hi", "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)

	broadcasts := pub.byTopic(TopicMessageBroadcast)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, ScopeAll, broadcasts[0].Metadata[MetaScope])
	var msg Message
	require.NoError(t, json.Unmarshal(broadcasts[0].Payload, &msg))
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "hi", msg.Text)

	_, err = e.Submit("c1", "secret", "bob", 0)
	require.NoError(t, err)
	directs := pub.byTopic(TopicMessageDirect)
	require.Len(t, directs, 1)
	assert.ElementsMatch(t, []string{"c1", "c2"}, SplitConnList(directs[0].Metadata[MetaConns]))

	history, err := e.PrivateHistory("c1", "bob")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
