package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerClient(t *testing.T, m *Manager, email string, buffer int) *Client {
	t.Helper()
	client := &Client{Email: email, Send: make(chan []byte, buffer)}
	m.Register <- client

	// The registry loop is asynchronous; wait until the client is visible.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		m.mutex.RLock()
		_, ok := m.clients[email]
		m.mutex.RUnlock()
		if ok {
			return client
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("client never registered")
	return nil
}

func TestSendToUserDeliversEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)
	client := registerClient(t, m, "alice@example.com", 4)

	m.SendToUser("alice@example.com", Event{Type: "presence", Payload: []string{"bob"}})

	select {
	case raw := <-client.Send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, "presence", event.Type)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSendToUnknownUserIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	// Must not panic or block.
	m.SendToUser("nobody@example.com", Event{Type: "chat.message"})
}

func TestSlowClientDropsEventInsteadOfBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)
	client := registerClient(t, m, "alice@example.com", 1)

	m.SendToUser("alice@example.com", Event{Type: "chat.message", Payload: "first"})

	done := make(chan struct{})
	go func() {
		m.SendToUser("alice@example.com", Event{Type: "chat.message", Payload: "second"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on a full client buffer")
	}
	assert.Len(t, client.Send, 1)
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)
	client := registerClient(t, m, "alice@example.com", 1)

	m.Unregister <- client

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}
