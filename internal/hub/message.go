package hub

import (
	"encoding/json"
	"time"
)

// MessageKind discriminates the message union on the wire.
type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageFile MessageKind = "file"
)

// Sender identifies the author of a message at send time. The zero value is
// anonymous: the relay accepts messages from connections that never
// registered, and every consumer has to handle that case explicitly.
type Sender struct {
	name  string
	known bool
}

// KnownSender returns a Sender carrying the given username.
func KnownSender(name string) Sender {
	return Sender{name: name, known: true}
}

// AnonymousSender returns the sender used for unregistered connections.
func AnonymousSender() Sender {
	return Sender{}
}

// Name returns the username and whether the sender was registered.
func (s Sender) Name() (string, bool) {
	return s.name, s.known
}

// MarshalJSON emits the username, or null for an anonymous sender.
func (s Sender) MarshalJSON() ([]byte, error) {
	if !s.known {
		return []byte("null"), nil
	}
	return json.Marshal(s.name)
}

// UnmarshalJSON accepts either a username or null.
func (s *Sender) UnmarshalJSON(data []byte) error {
	var name *string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if name == nil {
		*s = Sender{}
		return nil
	}
	*s = Sender{name: *name, known: true}
	return nil
}

// Message is a broadcast chat entry, either text or an encoded file. The
// sender's name is a value copy taken at send time; it never tracks later
// roster changes. Messages are immutable once created.
type Message struct {
	Kind   MessageKind `json:"type"`
	Sender Sender      `json:"username"`

	// Text fields.
	Content string `json:"content,omitempty"`

	// File fields. FileData carries the transport-encoded payload; the hub
	// treats it as an opaque blob.
	FileData string `json:"fileData,omitempty"`
	FileType string `json:"fileType,omitempty"`
	FileName string `json:"fileName,omitempty"`

	// Timestamp is Unix milliseconds, matching the original wire format.
	Timestamp int64 `json:"timestamp"`
}

// NewTextMessage builds an immutable text message stamped with ts.
func NewTextMessage(sender Sender, content string, ts time.Time) Message {
	return Message{
		Kind:      MessageText,
		Sender:    sender,
		Content:   content,
		Timestamp: ts.UnixMilli(),
	}
}

// NewFileMessage builds an immutable file message stamped with ts.
func NewFileMessage(sender Sender, fileData, fileType, fileName string, ts time.Time) Message {
	return Message{
		Kind:      MessageFile,
		Sender:    sender,
		FileData:  fileData,
		FileType:  fileType,
		FileName:  fileName,
		Timestamp: ts.UnixMilli(),
	}
}
