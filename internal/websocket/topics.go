package websocket

// Bus topics used by the bridge for routing messages between connected
// clients and the rest of the system.
const (
	// TopicClientEvents carries every inbound client event, lifecycle
	// included, on a single ordered stream. The event name travels in the
	// MetaEvent metadata key. One topic means one subscription, so a
	// connection's events are processed in the order it produced them;
	// splitting this across topics would let a register and the chat message
	// right behind it race each other.
	TopicClientEvents = "ws.client.events"

	// TopicBroadcast fans a payload out to every live connection.
	TopicBroadcast = "ws.broadcast"

	// TopicDirect delivers a payload to a single connection. The recipient is
	// named in the message metadata under MetaRecipientID.
	TopicDirect = "ws.direct"
)

const (
	// MetaEvent is the metadata key naming the event a TopicClientEvents
	// message carries.
	MetaEvent = "event"

	// MetaRecipientID is the metadata key naming the target connection of a
	// direct message.
	MetaRecipientID = "recipient_id"
)
