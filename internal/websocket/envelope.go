package websocket

import "encoding/json"

// Event names mirror the wire surface of the original Socket.IO deployment,
// so existing clients keep working against this relay.
const (
	// Client -> server.
	EventRegister = "register"
	EventChat     = "chat message"
	EventFile     = "file message"

	// Server -> client.
	EventInit              = "init"
	EventUsers             = "users"
	EventUserJoined        = "userJoined"
	EventUserLeft          = "userLeft"
	EventRegistrationError = "registrationError"
	EventError             = "error"
)

// Lifecycle events published by the transport itself on TopicClientEvents.
// Clients never send these; the bridge emits them around a connection's
// lifetime so they interleave with the connection's own events in order.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Envelope frames every message crossing the websocket in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data and wraps it in a framed event.
func NewEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ParseEnvelope decodes a client frame. It returns an error for anything that
// is not a JSON object with a non-empty event name.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errMissingEvent
	}
	return env, nil
}
