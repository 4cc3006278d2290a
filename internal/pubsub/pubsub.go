package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "ws.broadcast").
	Topic string
	// ConnectionID identifies the connection that originated the message.
	ConnectionID string
	// Payload contains the raw message data, typically a JSON envelope.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for routing context
	// (e.g., the recipient of a direct message).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with
	// the handler. The subscription runs in the background; Subscribe returns
	// once it is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
