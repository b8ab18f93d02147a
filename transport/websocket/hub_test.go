package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func newTestClient(hub *Hub, id string, buffer int) *Client {
	return &Client{
		hub:  hub,
		id:   id,
		send: make(chan []byte, buffer),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}

	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}

	if hub.logger == nil {
		t.Error("Hub logger is nil")
	}
}

func TestHubRegisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "c1", 8)

	hub.Register(client)
	hub.Register(client)

	if hub.Count() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.Count())
	}
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "c1", 8)

	hub.Register(client)
	hub.Unregister(client)
	hub.Unregister(client)

	if hub.Count() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.Count())
	}

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}

	// Unregistering a client that was never registered must not panic.
	hub.Unregister(newTestClient(hub, "stranger", 1))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client1 := newTestClient(hub, "c1", 8)
	client2 := newTestClient(hub, "c2", 8)
	hub.Register(client1)
	hub.Register(client2)

	hub.Broadcast(EventUserCountUpdated, UserCountUpdated{Count: 2})

	for _, c := range []*Client{client1, client2} {
		select {
		case data := <-c.send:
			var message struct {
				Event string           `json:"event"`
				Data  UserCountUpdated `json:"data"`
			}
			if err := json.Unmarshal(data, &message); err != nil {
				t.Fatalf("Failed to unmarshal message: %v", err)
			}
			if message.Event != EventUserCountUpdated {
				t.Errorf("Expected event %q, got %q", EventUserCountUpdated, message.Event)
			}
			if message.Data.Count != 2 {
				t.Errorf("Expected count 2, got %d", message.Data.Count)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client %s received no message", c.id)
		}
	}
}

func TestHubBroadcastPrunesFullClients(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	hub.Register(slow)
	hub.Register(fast)

	hub.Broadcast("first", nil)
	hub.Broadcast("second", nil)

	if hub.Count() != 1 {
		t.Fatalf("Expected slow client to be pruned, %d clients remain", hub.Count())
	}

	if len(fast.send) != 2 {
		t.Errorf("Expected fast client to receive both events, got %d", len(fast.send))
	}

	// The slow client keeps what it buffered, then sees the channel closed.
	if _, ok := <-slow.send; !ok {
		t.Error("slow client should still hold its first event")
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client channel should be closed")
	}
}

func TestHubSend(t *testing.T) {
	hub := NewHub(nil)
	target := newTestClient(hub, "target", 1)
	other := newTestClient(hub, "other", 1)
	hub.Register(target)
	hub.Register(other)

	if !hub.Send(target, EventError, ErrorMessage{Message: "x"}) {
		t.Fatal("Send to a registered client should succeed")
	}
	if len(other.send) != 0 {
		t.Error("Send must only reach the target")
	}

	if hub.Send(target, EventError, ErrorMessage{Message: "y"}) {
		t.Error("Send to a full client should fail")
	}
	if hub.Count() != 1 {
		t.Errorf("Full client should be dropped, %d clients remain", hub.Count())
	}

	if hub.Send(target, EventError, nil) {
		t.Error("Send to an unregistered client should fail")
	}
}

func TestHubConcurrentBroadcastAndRegistration(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newTestClient(hub, "c", 4)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast("tick", nil)
		}()
	}
	wg.Wait()

	if hub.Count() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.Count())
	}
}
