package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	raw, err := NewEnvelope(EventUserJoined, "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"userJoined","data":"alice"}`, string(raw))
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"chat message","data":{"content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventChat, env.Event)
	assert.JSONEq(t, `{"content":"hi"}`, string(env.Data))
}

func TestParseEnvelope_Rejects(t *testing.T) {
	_, err := ParseEnvelope([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"data":{"content":"hi"}}`))
	assert.ErrorIs(t, err, errMissingEvent)

	_, err = ParseEnvelope([]byte(`{"event":""}`))
	assert.ErrorIs(t, err, errMissingEvent)
}

func TestKnownEvent(t *testing.T) {
	tests := []struct {
		event string
		ok    bool
	}{
		{event: EventRegister, ok: true},
		{event: EventChat, ok: true},
		{event: EventFile, ok: true},
		{event: EventConnected, ok: false},
		{event: "users", ok: false},
		{event: "bogus", ok: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, knownEvent(tt.event), "event %q", tt.event)
	}
}
