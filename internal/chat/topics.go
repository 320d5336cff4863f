package chat

// Pub/sub topics the engine publishes outbound events on. The websocket
// bridge subscribes to all of them and maps each topic to its wire event.
const (
	// TopicMessageBroadcast carries a global Message for every connection.
	TopicMessageBroadcast = "chat.message.broadcast"

	// TopicMessageDirect carries a private Message addressed to the sender
	// and recipient connections only.
	TopicMessageDirect = "chat.message.direct"

	// TopicTyping carries an ephemeral TypingSignal for every connection
	// except the typist's.
	TopicTyping = "chat.typing"

	// TopicRoster carries the full roster after every presence change.
	TopicRoster = "chat.roster"

	// TopicNotification carries join/leave notifications.
	TopicNotification = "chat.notification"
)

// Topics lists every topic the engine publishes on, in the order the bridge
// should subscribe.
func Topics() []string {
	return []string{
		TopicMessageBroadcast,
		TopicMessageDirect,
		TopicTyping,
		TopicRoster,
		TopicNotification,
	}
}
