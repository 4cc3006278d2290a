package websocket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Client represents a single connected websocket client. The ID is the
// opaque, transport-assigned connection identity: it exists only for the
// lifetime of the connection and is never reused.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
}

// SendMessage safely queues a message for delivery to this client. The send
// is non-blocking: when the buffer is full the message is dropped with a
// warning, never retried.
func (c *Client) SendMessage(msg []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return
	}

	select {
	case c.send <- msg:
	default:
		slog.Warn("Client send channel full, dropping message", "connectionID", c.ID)
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
