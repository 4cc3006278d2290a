package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberchat/relay/internal/config"
	"github.com/liberchat/relay/internal/pubsub"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		AllowedOrigins:  []string{"*"},
		MaxHistory:      100,
		TrimInterval:    time.Minute,
		MaxPayloadBytes: 1 << 20,
	}
}

func newTestClient(id string) *Client {
	return &Client{ID: id, send: make(chan []byte, 8)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.outbound():
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func assertNothingDelivered(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.outbound():
		t.Fatalf("unexpected delivery: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBridge_BroadcastReachesEveryClient(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	bridge := NewBridge(bus, testConfig())
	go bridge.Run()
	defer bridge.Stop()

	c1 := newTestClient("conn-1")
	c2 := newTestClient("conn-2")
	bridge.register <- c1
	bridge.register <- c2

	bridge.broadcast <- []byte("hello everyone")

	assert.Equal(t, "hello everyone", string(receive(t, c1)))
	assert.Equal(t, "hello everyone", string(receive(t, c2)))
}

func TestBridge_UnregisterStopsDelivery(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	bridge := NewBridge(bus, testConfig())
	go bridge.Run()
	defer bridge.Stop()

	c1 := newTestClient("conn-1")
	c2 := newTestClient("conn-2")
	bridge.register <- c1
	bridge.register <- c2

	bridge.unregister <- c1

	bridge.broadcast <- []byte("still here?")
	assert.Equal(t, "still here?", string(receive(t, c2)))

	// The unregistered client's channel is closed, nothing was queued.
	select {
	case msg, ok := <-c1.outbound():
		assert.False(t, ok, "expected closed channel, got %s", msg)
	case <-time.After(2 * time.Second):
		// Close already nilled the channel; that is fine too.
	}
}

func TestBridge_DirectTargetsOneClient(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	bridge := NewBridge(bus, testConfig())
	go bridge.Run()
	defer bridge.Stop()

	c1 := newTestClient("conn-1")
	c2 := newTestClient("conn-2")
	bridge.register <- c1
	bridge.register <- c2

	bridge.direct <- directMessage{recipientID: "conn-2", payload: []byte("just for you")}

	assert.Equal(t, "just for you", string(receive(t, c2)))
	assertNothingDelivered(t, c1)
}

func TestBridge_AttachRoutesBusMessages(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	bridge := NewBridge(bus, testConfig())
	require.NoError(t, bridge.Attach(context.Background(), bus))
	go bridge.Run()
	defer bridge.Stop()

	c1 := newTestClient("conn-1")
	c2 := newTestClient("conn-2")
	bridge.register <- c1
	bridge.register <- c2

	require.NoError(t, bus.Publish(context.Background(), pubsub.Message{
		Topic:   TopicBroadcast,
		Payload: []byte("to all"),
	}))
	assert.Equal(t, "to all", string(receive(t, c1)))
	assert.Equal(t, "to all", string(receive(t, c2)))

	require.NoError(t, bus.Publish(context.Background(), pubsub.Message{
		Topic:    TopicDirect,
		Payload:  []byte("to one"),
		Metadata: map[string]string{MetaRecipientID: "conn-1"},
	}))
	assert.Equal(t, "to one", string(receive(t, c1)))
	assertNothingDelivered(t, c2)
}

func TestBridge_DirectWithoutRecipientDropped(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	bridge := NewBridge(bus, testConfig())
	require.NoError(t, bridge.Attach(context.Background(), bus))
	go bridge.Run()
	defer bridge.Stop()

	c1 := newTestClient("conn-1")
	bridge.register <- c1

	require.NoError(t, bus.Publish(context.Background(), pubsub.Message{
		Topic:   TopicDirect,
		Payload: []byte("lost"),
	}))
	assertNothingDelivered(t, c1)
}

func TestBridge_PublishAfterStopDoesNotStallBus(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	bridge := NewBridge(bus, testConfig())
	require.NoError(t, bridge.Attach(context.Background(), bus))
	go bridge.Run()
	bridge.Stop()

	// Push well past the routing buffers. With the run loop gone the Attach
	// handlers have to fall through on done; a blocked handler here would
	// stall the bus delivery loop and these publishes would never be acked.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 300; i++ {
			_ = bus.Publish(context.Background(), pubsub.Message{
				Topic:   TopicBroadcast,
				Payload: []byte("after stop"),
			})
			_ = bus.Publish(context.Background(), pubsub.Message{
				Topic:    TopicDirect,
				Payload:  []byte("after stop"),
				Metadata: map[string]string{MetaRecipientID: "conn-1"},
			})
		}
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing after Stop blocked")
	}
}

func TestBridge_HandlerAfterStopClosesConnection(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	// Run is never started, so the register handoff has no receiver and the
	// handler must bail out on done instead of hanging the request.
	bridge := NewBridge(bus, testConfig())
	bridge.Stop()

	e := echo.New()
	e.GET("/ws", bridge.Handler())
	ts := httptest.NewServer(e)
	defer ts.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "stopped bridge should close the connection")
}

func TestClient_SendMessage_NonBlockingWhenFull(t *testing.T) {
	c := &Client{ID: "conn-1", send: make(chan []byte, 1)}

	done := make(chan struct{})
	go func() {
		c.SendMessage([]byte("first"))
		c.SendMessage([]byte("dropped"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendMessage blocked on a full buffer")
	}

	assert.Equal(t, "first", string(<-c.send))
}

func TestClient_SendAfterCloseIsNoop(t *testing.T) {
	c := newTestClient("conn-1")
	c.Close()

	// Must not panic on a closed channel.
	c.SendMessage([]byte("late"))
	c.Close()
}
