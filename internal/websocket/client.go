package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// sendBufferSize is the per-client outbound buffer. A client that cannot
// drain this many frames is considered dead or stuck.
const sendBufferSize = 256

// writeTimeout bounds a single frame write to a client.
const writeTimeout = 10 * time.Second

// Client represents a single connected WebSocket client. ID is the
// server-assigned connection id; identity binding lives in the chat engine,
// not here.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
}

// NewClient wraps an accepted connection.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// SendMessage safely queues a frame for the client. It uses a read lock to
// ensure the channel is not closed concurrently.
func (c *Client) SendMessage(msg []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// A nil channel means the client is already disconnected.
	if c.send == nil {
		return
	}

	select {
	case c.send <- msg:
	default:
		slog.Warn("Client send channel full, dropping message", "conn_id", c.ID)
	}
}

// Close safely closes the client's send channel. Further SendMessage calls
// become no-ops.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump pumps frames from the send channel to the WebSocket connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "conn_id", c.ID, "error", err)
			return
		}
	}
}
