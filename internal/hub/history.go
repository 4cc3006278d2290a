package hub

import "sync"

// History is the bounded, insertion-ordered log of broadcast messages.
// Eviction always removes from the oldest end and never reorders the rest.
type History struct {
	mu       sync.RWMutex
	max      int
	messages []Message
}

// NewHistory creates a buffer capped at max entries. A non-positive max falls
// back to the reference deployment's cap of 100.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 100
	}
	return &History{max: max}
}

// Append inserts msg at the tail and evicts from the head until the buffer is
// back within its cap.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)
	h.evictLocked()
}

// Trim re-applies the head-eviction policy. Append already keeps the buffer
// bounded, so this is a safety net for bulk loads; it is a no-op when the
// buffer is within its cap.
func (h *History) Trim() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evictLocked()
}

func (h *History) evictLocked() {
	if over := len(h.messages) - h.max; over > 0 {
		h.messages = append(h.messages[:0:0], h.messages[over:]...)
	}
}

// Snapshot returns a copy of the buffer, oldest first.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the current buffer length.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
