package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/liberchat/relay/internal/pubsub"
	ws "github.com/liberchat/relay/internal/websocket"
)

// event is the internal union of everything the hub reacts to. All events
// funnel through one channel into the run loop, which is the single
// serialization point for roster and history mutations.
type event interface{ connection() string }

type connectEvent struct{ connectionID string }
type disconnectEvent struct{ connectionID string }

type registerEvent struct {
	connectionID string
	username     string
}

type chatEvent struct {
	connectionID string
	content      string
}

type fileEvent struct {
	connectionID string
	fileData     string
	fileType     string
	fileName     string
}

func (e connectEvent) connection() string    { return e.connectionID }
func (e disconnectEvent) connection() string { return e.connectionID }
func (e registerEvent) connection() string   { return e.connectionID }
func (e chatEvent) connection() string       { return e.connectionID }
func (e fileEvent) connection() string       { return e.connectionID }

// Wire payload shapes for inbound events.
type chatPayload struct {
	Content string `json:"content"`
}

type filePayload struct {
	FileData string `json:"fileData"`
	FileType string `json:"fileType"`
	FileName string `json:"fileName"`
}

// initPayload is the join-time snapshot pushed to a new connection.
type initPayload struct {
	Users    []Session `json:"users"`
	Messages []Message `json:"messages"`
}

// Hub orchestrates the session registry and the history buffer in response to
// connection lifecycle and client events, and fans results back out through
// the bus. Broadcasts leave the hub in the order the triggering events were
// accepted by the run loop.
type Hub struct {
	registry  *Registry
	history   *History
	publisher pubsub.Publisher
	logger    *slog.Logger

	maxPayload   int64
	trimInterval time.Duration

	events chan event
	done   chan struct{}

	now func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxHistory caps the history buffer.
func WithMaxHistory(max int) Option {
	return func(h *Hub) { h.history = NewHistory(max) }
}

// WithTrimInterval sets the cadence of the history safety-net trim.
func WithTrimInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.trimInterval = d
		}
	}
}

// WithMaxPayloadBytes sets the hub's defensive payload ceiling. The transport
// enforces the real limit before frames ever reach the hub.
func WithMaxPayloadBytes(n int64) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxPayload = n
		}
	}
}

// withClock overrides the timestamp source in tests.
func withClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// New creates a Hub and subscribes it to the client event topics. Call Run in
// its own goroutine to start processing.
func New(pub pubsub.Publisher, sub pubsub.Subscriber, opts ...Option) (*Hub, error) {
	h := &Hub{
		registry:     NewRegistry(),
		history:      NewHistory(100),
		publisher:    pub,
		logger:       slog.Default().With("service", "hub"),
		maxPayload:   50 << 20,
		trimInterval: 5 * time.Minute,
		events:       make(chan event, 256),
		done:         make(chan struct{}),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	// One subscription on the shared client stream. A single delivery loop is
	// what keeps a connection's register and its next chat message in order;
	// per-event topics would each get their own loop and race.
	if err := sub.Subscribe(context.Background(), ws.TopicClientEvents, h.handleClientEvent); err != nil {
		return nil, err
	}

	return h, nil
}

// Run processes events until Shutdown is called. It also drives the periodic
// history trim, which enforces the same bound Append does, as a safety net.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.trimInterval)
	defer ticker.Stop()

	h.logger.Info("Hub runner started", "trim_interval", h.trimInterval)
	for {
		select {
		case ev := <-h.events:
			h.dispatch(ev)
		case <-ticker.C:
			h.history.Trim()
		case <-h.done:
			h.logger.Info("Hub runner stopped")
			return
		}
	}
}

// Shutdown stops the run loop.
func (h *Hub) Shutdown() {
	close(h.done)
}

// Registry exposes the roster for read-side callers.
func (h *Hub) Registry() *Registry { return h.registry }

// History exposes the message buffer for read-side callers.
func (h *Hub) History() *History { return h.history }

func (h *Hub) dispatch(ev event) {
	switch ev := ev.(type) {
	case connectEvent:
		h.onConnect(ev.connectionID)
	case disconnectEvent:
		h.onDisconnect(ev.connectionID)
	case registerEvent:
		h.onRegister(ev.connectionID, ev.username)
	case chatEvent:
		h.onChatMessage(ev.connectionID, ev.content)
	case fileEvent:
		h.onFileMessage(ev.connectionID, ev.fileData, ev.fileType, ev.fileName)
	}
}

// onConnect pushes the join-time snapshot to the new connection only. It does
// not touch shared state.
func (h *Hub) onConnect(connectionID string) {
	snapshot := initPayload{
		Users:    h.registry.Snapshot(),
		Messages: h.history.Snapshot(),
	}
	h.direct(connectionID, ws.EventInit, snapshot)
}

// onRegister runs the name-uniqueness state machine. Success broadcasts the
// updated roster and a join announcement; failure is delivered to the
// originator only and leaves the roster untouched.
func (h *Hub) onRegister(connectionID, username string) {
	session, err := h.registry.Register(connectionID, username)
	if err != nil {
		h.logger.Info("Registration rejected", "connectionID", connectionID, "username", username, "error", err)
		h.direct(connectionID, ws.EventRegistrationError, rejectionText(err))
		return
	}

	h.logger.Info("User registered", "connectionID", connectionID, "username", session.Username)
	h.broadcast(ws.EventUsers, h.registry.Snapshot())
	h.broadcast(ws.EventUserJoined, session.Username)
}

// onChatMessage accepts a text message, from registered and unregistered
// connections alike, appends it to history and fans it out.
func (h *Hub) onChatMessage(connectionID, content string) {
	if !h.withinLimit(connectionID, int64(len(content))) {
		return
	}

	msg := NewTextMessage(h.sender(connectionID), content, h.now())
	h.history.Append(msg)
	h.broadcast(ws.EventChat, msg)
}

// onFileMessage accepts an encoded file message. The hub treats the payload
// as an opaque blob plus metadata; content types are the client's concern.
func (h *Hub) onFileMessage(connectionID, fileData, fileType, fileName string) {
	if !h.withinLimit(connectionID, int64(len(fileData))) {
		return
	}

	msg := NewFileMessage(h.sender(connectionID), fileData, fileType, fileName, h.now())
	h.history.Append(msg)
	h.broadcast(ws.EventChat, msg)
}

// onDisconnect removes the session, if one exists, and announces the
// departure. A connection that never registered leaves silently.
func (h *Hub) onDisconnect(connectionID string) {
	session, ok := h.registry.Unregister(connectionID)
	if !ok {
		return
	}

	h.logger.Info("User disconnected", "connectionID", connectionID, "username", session.Username)
	h.broadcast(ws.EventUsers, h.registry.Snapshot())
	h.broadcast(ws.EventUserLeft, session.Username)
}

// sender resolves the author for a message at send time. The name is copied
// by value: later roster changes never rewrite history.
func (h *Hub) sender(connectionID string) Sender {
	if session, ok := h.registry.Find(connectionID); ok {
		return KnownSender(session.Username)
	}
	return AnonymousSender()
}

// withinLimit is the hub's defensive size check. The transport already caps
// frames, so a violation here means the collaborator contract was broken; the
// event is rejected to the originator and nothing is buffered.
func (h *Hub) withinLimit(connectionID string, size int64) bool {
	if size <= h.maxPayload {
		return true
	}
	h.logger.Warn("Payload over ceiling, rejecting", "connectionID", connectionID, "size", size, "limit", h.maxPayload)
	h.direct(connectionID, ws.EventError, rejectionText(ErrPayloadTooLarge))
	return false
}

// broadcast fans an event out to every live connection via the bus.
func (h *Hub) broadcast(eventName string, data any) {
	payload, err := ws.NewEnvelope(eventName, data)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "event", eventName, "error", err)
		return
	}
	msg := pubsub.Message{
		Topic:   ws.TopicBroadcast,
		Payload: payload,
	}
	if err := h.publisher.Publish(context.Background(), msg); err != nil {
		h.logger.Error("Failed to publish broadcast", "event", eventName, "error", err)
	}
}

// direct delivers an event to a single connection via the bus.
func (h *Hub) direct(connectionID, eventName string, data any) {
	payload, err := ws.NewEnvelope(eventName, data)
	if err != nil {
		h.logger.Error("Failed to encode direct message", "event", eventName, "error", err)
		return
	}
	msg := pubsub.Message{
		Topic:        ws.TopicDirect,
		ConnectionID: connectionID,
		Payload:      payload,
		Metadata:     map[string]string{ws.MetaRecipientID: connectionID},
	}
	if err := h.publisher.Publish(context.Background(), msg); err != nil {
		h.logger.Error("Failed to publish direct message", "event", eventName, "connectionID", connectionID, "error", err)
	}
}

// enqueue hands an event to the run loop.
func (h *Hub) enqueue(ev event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// handleClientEvent is the hub's only bus subscription. It decodes each
// message on the shared client stream into a typed event and enqueues it; a
// malformed payload is answered to the originator and dropped before it can
// touch any state.
func (h *Hub) handleClientEvent(ctx context.Context, msg pubsub.Message) error {
	switch msg.Metadata[ws.MetaEvent] {
	case ws.EventConnected:
		return h.handleConnected(ctx, msg)
	case ws.EventDisconnected:
		return h.handleDisconnected(ctx, msg)
	case ws.EventRegister:
		return h.handleRegister(ctx, msg)
	case ws.EventChat:
		return h.handleChat(ctx, msg)
	case ws.EventFile:
		return h.handleFile(ctx, msg)
	default:
		h.logger.Warn("Unknown client event on the bus", "connectionID", msg.ConnectionID, "event", msg.Metadata[ws.MetaEvent])
		return nil
	}
}

func (h *Hub) handleConnected(ctx context.Context, msg pubsub.Message) error {
	h.enqueue(connectEvent{connectionID: msg.ConnectionID})
	return nil
}

func (h *Hub) handleDisconnected(ctx context.Context, msg pubsub.Message) error {
	h.enqueue(disconnectEvent{connectionID: msg.ConnectionID})
	return nil
}

func (h *Hub) handleRegister(ctx context.Context, msg pubsub.Message) error {
	var username string
	if err := json.Unmarshal(msg.Payload, &username); err != nil {
		// A non-string username fails registration the same way an absent one
		// does: let the shape check reject it over registrationError.
		h.logger.Warn("Malformed register payload", "connectionID", msg.ConnectionID)
		username = ""
	}
	h.enqueue(registerEvent{connectionID: msg.ConnectionID, username: username})
	return nil
}

func (h *Hub) handleChat(ctx context.Context, msg pubsub.Message) error {
	var payload chatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.rejectMalformed(msg.ConnectionID, "chat message")
		return nil
	}
	h.enqueue(chatEvent{connectionID: msg.ConnectionID, content: payload.Content})
	return nil
}

func (h *Hub) handleFile(ctx context.Context, msg pubsub.Message) error {
	var payload filePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.rejectMalformed(msg.ConnectionID, "file message")
		return nil
	}
	h.enqueue(fileEvent{
		connectionID: msg.ConnectionID,
		fileData:     payload.FileData,
		fileType:     payload.FileType,
		fileName:     payload.FileName,
	})
	return nil
}

func (h *Hub) rejectMalformed(connectionID, eventName string) {
	h.logger.Warn("Malformed event payload", "connectionID", connectionID, "event", eventName)
	h.direct(connectionID, ws.EventError, "malformed "+eventName+" payload")
}
