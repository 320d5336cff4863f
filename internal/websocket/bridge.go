package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/pubsub"
)

// Bridge connects WebSocket clients to the chat engine. Inbound frames are
// dispatched synchronously on each connection's read loop, so
// acknowledgements preserve per-connection order. Outbound fan-out arrives
// asynchronously through the pub/sub bus and is delivered according to the
// scope metadata the engine attached.
type Bridge struct {
	engine     *chat.Engine
	subscriber pubsub.Subscriber
	whitelist  *clientWhitelist
	validate   *validator.Validate
	logger     *slog.Logger

	// clients is keyed by connection id. Guarded by mu; registration,
	// unregistration and fan-out run on different goroutines.
	mu      sync.RWMutex
	clients map[string]*Client
}

// outboundEvents maps engine topics to their wire event names.
var outboundEvents = map[string]string{
	chat.TopicMessageBroadcast: EventMessage,
	chat.TopicMessageDirect:    EventPrivateMessage,
	chat.TopicTyping:           EventTyping,
	chat.TopicRoster:           EventOnlineUsers,
	chat.TopicNotification:     EventNotification,
}

// NewBridge creates a bridge dispatching into engine and listening for
// fan-out events on sub.
func NewBridge(engine *chat.Engine, sub pubsub.Subscriber) *Bridge {
	return &Bridge{
		engine:     engine,
		subscriber: sub,
		whitelist:  DefaultClientWhitelist(),
		validate:   validator.New(),
		logger:     slog.Default().With("service", "websocket"),
		clients:    make(map[string]*Client),
	}
}

// Start subscribes to every engine topic. Subscriptions live until ctx is
// canceled.
func (b *Bridge) Start(ctx context.Context) error {
	for _, topic := range chat.Topics() {
		if err := b.subscriber.Subscribe(ctx, topic, b.handleOutbound); err != nil {
			return err
		}
	}
	b.logger.Info("websocket bridge subscribed to chat topics")
	return nil
}

// Handler returns an echo.HandlerFunc that upgrades the request and runs
// the connection until the peer goes away.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := NewClient(uuid.NewString(), conn)
		b.addClient(client)
		b.logger.Info("client connected", "conn_id", client.ID)

		go client.writePump()
		go b.readPump(client)

		return nil
	}
}

func (b *Bridge) addClient(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client.ID] = client
}

// removeClient evicts the client and runs the session lifecycle's
// disconnect path, which broadcasts roster and leave notification only for
// authenticated connections.
func (b *Bridge) removeClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	b.mu.Unlock()

	client.Close()
	b.engine.Disconnect(client.ID)
	b.logger.Info("client disconnected", "conn_id", client.ID)
}

// readPump pumps frames from the WebSocket connection into dispatch.
func (b *Bridge) readPump(client *Client) {
	defer func() {
		b.removeClient(client)
		client.conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		_, raw, err := client.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				b.logger.Info("WebSocket closed normally by client", "conn_id", client.ID)
			} else if err != io.EOF {
				b.logger.Error("WebSocket read error", "conn_id", client.ID, "error", err)
			}
			return
		}

		b.dispatch(client, raw)
	}
}

// dispatch decodes and routes one inbound frame. A panic anywhere below is
// converted into a server_error acknowledgement so an internal fault never
// tears down the connection or leaks detail to the client.
func (b *Bridge) dispatch(client *Client, raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		b.logger.Warn("dropping malformed frame", "conn_id", client.ID, "error", err)
		return
	}
	if err := b.validate.Struct(&frame); err != nil {
		b.logger.Warn("dropping frame without event", "conn_id", client.ID)
		return
	}
	if !b.whitelist.IsAllowed(frame.Event) {
		b.logger.Warn("dropping non-whitelisted event", "conn_id", client.ID, "event", frame.Event)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling event",
				"conn_id", client.ID, "event", frame.Event, "panic", r)
			b.ack(client, frame.Seq, ErrorAck{OK: false, Error: chat.ErrServerError})
		}
	}()

	switch frame.Event {
	case EventJoin:
		b.handleJoin(client, frame)
	case EventMessage:
		b.handleMessage(client, frame)
	case EventTyping:
		b.handleTyping(client, frame)
	case EventPrivateHistory:
		b.handlePrivateHistory(client, frame)
	case EventHealth:
		b.ack(client, frame.Seq, HealthAck{OK: true, ServerTime: b.engine.ServerTime()})
	}
}

func (b *Bridge) handleJoin(client *Client, frame ClientFrame) {
	var req JoinRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		b.ack(client, frame.Seq, ErrorAck{OK: false, Error: chat.ErrInvalidName})
		return
	}

	result, err := b.engine.Join(client.ID, req.Name)
	if err != nil {
		b.ack(client, frame.Seq, NewErrorAck(err))
		return
	}
	b.ack(client, frame.Seq, JoinAck{OK: true, History: HistoryBundle{Global: result.Global}})
}

func (b *Bridge) handleMessage(client *Client, frame ClientFrame) {
	var req MessageRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		b.ack(client, frame.Seq, ErrorAck{OK: false, Error: chat.ErrEmptyMessage})
		return
	}

	result, err := b.engine.Submit(client.ID, req.Text, req.To, req.Timestamp)
	if err != nil {
		b.ack(client, frame.Seq, NewErrorAck(err))
		return
	}
	// The correlation token rides back only on this acknowledgement; the
	// fan-out payload never carries it.
	b.ack(client, frame.Seq, MessageAck{
		OK:          true,
		ID:          result.ID,
		Timestamp:   result.Timestamp,
		ClientToken: req.ClientToken,
	})
}

func (b *Bridge) handleTyping(client *Client, frame ClientFrame) {
	var req TypingRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return // best-effort signal, no ack either way
	}
	b.engine.SetTyping(client.ID, req.IsTyping)
}

func (b *Bridge) handlePrivateHistory(client *Client, frame ClientFrame) {
	var req PrivateHistoryRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		b.ack(client, frame.Seq, ErrorAck{OK: false, Error: chat.ErrInvalidRequest})
		return
	}
	if err := b.validate.Struct(&req); err != nil {
		b.ack(client, frame.Seq, ErrorAck{OK: false, Error: chat.ErrInvalidRequest})
		return
	}

	history, err := b.engine.PrivateHistory(client.ID, req.WithUser)
	if err != nil {
		b.ack(client, frame.Seq, NewErrorAck(err))
		return
	}
	b.ack(client, frame.Seq, PrivateHistoryAck{OK: true, History: history})
}

// ack writes an acknowledgement frame unless the client did not request one.
func (b *Bridge) ack(client *Client, seq uint64, payload any) {
	if seq == 0 {
		return
	}
	b.send(client, ServerFrame{Event: EventAck, Seq: seq, Data: payload})
}

func (b *Bridge) send(client *Client, frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("failed to marshal server frame", "event", frame.Event, "error", err)
		return
	}
	client.SendMessage(data)
}

// handleOutbound delivers one engine fan-out event to the connections its
// scope selects.
func (b *Bridge) handleOutbound(ctx context.Context, msg pubsub.Message) error {
	event, ok := outboundEvents[msg.Topic]
	if !ok {
		b.logger.Warn("outbound event on unknown topic", "topic", msg.Topic)
		return nil
	}

	frame, err := json.Marshal(ServerFrame{Event: event, Data: json.RawMessage(msg.Payload)})
	if err != nil {
		return err
	}

	for _, client := range b.targets(msg.Metadata) {
		client.SendMessage(frame)
	}
	return nil
}

// targets resolves scope metadata to the current recipient set: every
// connection, every connection except one, or an explicit list.
func (b *Bridge) targets(meta map[string]string) []*Client {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch meta[chat.MetaScope] {
	case chat.ScopeAll:
		out := make([]*Client, 0, len(b.clients))
		for _, client := range b.clients {
			out = append(out, client)
		}
		return out

	case chat.ScopeExcept:
		exclude := meta[chat.MetaExclude]
		out := make([]*Client, 0, len(b.clients))
		for id, client := range b.clients {
			if id != exclude {
				out = append(out, client)
			}
		}
		return out

	case chat.ScopeConns:
		ids := chat.SplitConnList(meta[chat.MetaConns])
		out := make([]*Client, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if client, ok := b.clients[id]; ok {
				out = append(out, client)
			}
		}
		return out
	}

	b.logger.Warn("outbound event without delivery scope")
	return nil
}
