package hub

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(i int) Message {
	return NewTextMessage(KnownSender("alice"), fmt.Sprintf("message %d", i), time.Unix(0, 0))
}

func TestHistory_AppendAndSnapshot(t *testing.T) {
	h := NewHistory(10)

	for i := 1; i <= 3; i++ {
		h.Append(textMessage(i))
	}

	snapshot := h.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "message 1", snapshot[0].Content)
	assert.Equal(t, "message 2", snapshot[1].Content)
	assert.Equal(t, "message 3", snapshot[2].Content)
}

func TestHistory_BoundedAfterEveryAppend(t *testing.T) {
	h := NewHistory(5)

	for i := 1; i <= 50; i++ {
		h.Append(textMessage(i))
		assert.LessOrEqual(t, h.Len(), 5)
	}
}

func TestHistory_EvictsOldestFirst(t *testing.T) {
	h := NewHistory(100)

	// 105 appends with a cap of 100 leave messages 6..105 in order.
	for i := 1; i <= 105; i++ {
		h.Append(textMessage(i))
	}

	snapshot := h.Snapshot()
	require.Len(t, snapshot, 100)
	assert.Equal(t, "message 6", snapshot[0].Content)
	assert.Equal(t, "message 105", snapshot[99].Content)
	for i := 1; i < len(snapshot); i++ {
		assert.Equal(t, fmt.Sprintf("message %d", i+6), snapshot[i].Content)
	}
}

func TestHistory_TrimIsIdempotent(t *testing.T) {
	h := NewHistory(10)

	for i := 1; i <= 4; i++ {
		h.Append(textMessage(i))
	}

	before := h.Snapshot()
	h.Trim()
	h.Trim()
	assert.Equal(t, before, h.Snapshot())
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	h := NewHistory(10)
	h.Append(textMessage(1))

	snapshot := h.Snapshot()
	snapshot[0].Content = "mutated"

	assert.Equal(t, "message 1", h.Snapshot()[0].Content)
}

func TestHistory_ZeroMaxFallsBackToDefault(t *testing.T) {
	h := NewHistory(0)

	for i := 1; i <= 150; i++ {
		h.Append(textMessage(i))
	}
	assert.Equal(t, 100, h.Len())
}
