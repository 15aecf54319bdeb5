package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c := &Client{send: make(chan Message, 1), logger: zap.NewNop()}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("count = %d, want 0", hub.ClientCount())
	}

	// Unregistering twice must not panic on the closed channel.
	hub.Unregister(c)
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c := &Client{send: make(chan Message, 1), logger: zap.NewNop()}
	hub.Register(c)

	hub.Broadcast(Message{Type: MessagePrefsUpdated})
	hub.Broadcast(Message{Type: MessagePrefsUpdated}) // buffer full, dropped

	if len(c.send) != 1 {
		t.Errorf("buffered = %d, want 1", len(c.send))
	}
}

func TestHandler_StreamsPrefsUpdates(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	h := NewHandler(bus, nil, zap.NewNop())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/updates?device_id=dev_test"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for registration before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Hub().ClientCount() == 0 {
		t.Fatal("client never registered")
	}

	record := models.DefaultPreferences("alice")
	record.Theme = "ocean"
	bus.Publish(ctx, event.Event{Topic: event.TopicPrefsUpdated, Payload: record})

	var msg Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessagePrefsUpdated {
		t.Errorf("type = %q, want %q", msg.Type, MessagePrefsUpdated)
	}
}

func TestHandler_RejectsInvalidToken(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	validate := func(token string) (string, error) {
		if token == "good" {
			return "alice", nil
		}
		return "", context.DeadlineExceeded
	}
	h := NewHandler(bus, validate, zap.NewNop())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/ws/updates?token=bad")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
