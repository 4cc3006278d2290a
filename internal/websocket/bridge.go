package websocket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/liberchat/relay/internal/config"
	"github.com/liberchat/relay/internal/pubsub"
)

var errMissingEvent = errors.New("envelope has no event name")

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 10 * time.Second

// directMessage routes a payload to a single connection.
type directMessage struct {
	recipientID string
	payload     []byte
}

// Bridge owns all websocket connections and routes messages between them and
// the bus. Inbound client events become bus messages on the shared
// ws.client.events stream; bus messages on ws.broadcast and ws.direct are
// pushed back out to clients. All client bookkeeping happens on the Run
// goroutine.
type Bridge struct {
	publisher pubsub.Publisher

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directMessage
	done       chan struct{}

	maxPayload     int64
	originPatterns []string
}

// NewBridge initializes a Bridge, ready to handle connections.
func NewBridge(pub pubsub.Publisher, cfg *config.Config) *Bridge {
	return &Bridge{
		publisher:      pub,
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan []byte, 256),
		direct:         make(chan directMessage, 256),
		done:           make(chan struct{}),
		maxPayload:     cfg.MaxPayloadBytes,
		originPatterns: cfg.AllowedOrigins,
	}
}

// Attach subscribes the bridge to the outbound routing topics. It must be
// called before traffic arrives.
func (b *Bridge) Attach(ctx context.Context, sub pubsub.Subscriber) error {
	err := sub.Subscribe(ctx, TopicBroadcast, func(ctx context.Context, msg pubsub.Message) error {
		select {
		case b.broadcast <- msg.Payload:
		case <-b.done:
		}
		return nil
	})
	if err != nil {
		return err
	}

	return sub.Subscribe(ctx, TopicDirect, func(ctx context.Context, msg pubsub.Message) error {
		recipient := msg.Metadata[MetaRecipientID]
		if recipient == "" {
			slog.Warn("Direct message without recipient, dropping", "topic", msg.Topic)
			return nil
		}
		select {
		case b.direct <- directMessage{recipientID: recipient, payload: msg.Payload}:
		case <-b.done:
		}
		return nil
	})
}

// Run starts the bridge goroutine managing client lifecycle and fan-out.
// Deliveries are fire-and-forget: a client with a full buffer misses the
// message, and the loop moves on to the rest.
func (b *Bridge) Run() {
	slog.Info("Websocket bridge runner started")
	for {
		select {
		case client := <-b.register:
			b.clients[client.ID] = client
			slog.Info("Client connected", "connectionID", client.ID, "total", len(b.clients))

		case client := <-b.unregister:
			if current, ok := b.clients[client.ID]; ok && current == client {
				delete(b.clients, client.ID)
				client.Close()
				slog.Info("Client disconnected", "connectionID", client.ID, "total", len(b.clients))
			}

		case payload := <-b.broadcast:
			for _, client := range b.clients {
				client.SendMessage(payload)
			}

		case msg := <-b.direct:
			if client, ok := b.clients[msg.recipientID]; ok {
				client.SendMessage(msg.payload)
			}

		case <-b.done:
			for _, client := range b.clients {
				client.Close()
			}
			slog.Info("Websocket bridge runner stopped")
			return
		}
	}
}

// Stop terminates the Run loop and closes every client's send channel.
func (b *Bridge) Stop() {
	close(b.done)
}

// Handler returns the echo handler that upgrades requests to websocket
// connections and starts the per-connection pumps.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), b.acceptOptions())
		if err != nil {
			slog.Error("Failed to upgrade connection to websocket", "error", err)
			return err
		}
		conn.SetReadLimit(b.maxPayload)

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, 256),
		}
		select {
		case b.register <- client:
		case <-b.done:
			conn.Close(websocket.StatusGoingAway, "Server shutting down")
			return nil
		}

		go client.writePump()

		// Announce the connection before reading, so the join snapshot is
		// requested before any event this client sends.
		b.publishClientEvent(client.ID, EventConnected, nil)

		go b.readPump(client)

		return nil
	}
}

func (b *Bridge) acceptOptions() *websocket.AcceptOptions {
	for _, origin := range b.originPatterns {
		if origin == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: b.originPatterns}
}

// knownEvent reports whether clients are allowed to send this event.
func knownEvent(event string) bool {
	switch event {
	case EventRegister, EventChat, EventFile:
		return true
	default:
		return false
	}
}

// readPump reads frames from the connection and publishes them to the bus.
// A malformed or unknown frame is answered with an error event to this client
// only and never forwarded.
func (b *Bridge) readPump(client *Client) {
	defer func() {
		select {
		case b.unregister <- client:
		case <-b.done:
		}
		client.conn.Close(websocket.StatusNormalClosure, "Client disconnected")
		b.publishClientEvent(client.ID, EventDisconnected, nil)
	}()

	for {
		_, raw, err := client.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("Websocket closed by client", "connectionID", client.ID)
			} else if err != io.EOF {
				slog.Error("Websocket read error", "connectionID", client.ID, "error", err)
			}
			return
		}

		env, err := ParseEnvelope(raw)
		if err != nil {
			b.rejectFrame(client, "malformed event")
			continue
		}

		if !knownEvent(env.Event) {
			b.rejectFrame(client, "unknown event: "+env.Event)
			continue
		}

		b.publishClientEvent(client.ID, env.Event, env.Data)
	}
}

// rejectFrame answers a bad frame with an error event to the originator.
func (b *Bridge) rejectFrame(client *Client, reason string) {
	slog.Warn("Rejecting client frame", "connectionID", client.ID, "reason", reason)
	payload, err := NewEnvelope(EventError, reason)
	if err != nil {
		return
	}
	client.SendMessage(payload)
}

// publishClientEvent puts an inbound event on the shared client stream. Every
// event of a connection goes through here from the same goroutine sequence,
// so the stream preserves the order the connection produced them.
func (b *Bridge) publishClientEvent(connectionID, event string, payload []byte) {
	msg := pubsub.Message{
		Topic:        TopicClientEvents,
		ConnectionID: connectionID,
		Payload:      payload,
		Metadata: map[string]string{
			MetaEvent:     event,
			"received_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := b.publisher.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish client event", "connectionID", connectionID, "event", event, "error", err)
	}
}

// writePump drains the client's send channel onto the connection.
func (c *Client) writePump() {
	send := c.outbound()
	defer c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for message := range send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			slog.Error("Websocket write error", "connectionID", c.ID, "error", err)
			return
		}
	}
}

// outbound snapshots the send channel so the write pump keeps draining it
// through a concurrent Close.
func (c *Client) outbound() <-chan []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.send
}
