package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClientEventsStreamsUntilCancelled(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(ChangeEvent{Type: "connected"})
		_ = conn.WriteJSON(ChangeEvent{Type: EventTypeSlideChange, Action: "deleted", SlideIDs: []int64{4}})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL + "/api"})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Events(ctx)
	if err != nil {
		t.Fatalf("failed to open events: %v", err)
	}

	first := receiveEvent(t, events)
	second := receiveEvent(t, events)
	if first.Type != "connected" {
		t.Fatalf("expected greeting first, got %#v", first)
	}
	if second.Type != EventTypeSlideChange || second.Action != "deleted" || len(second.SlideIDs) != 1 || second.SlideIDs[0] != 4 {
		t.Fatalf("unexpected change event %#v", second)
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected the stream to close after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestClientEventsReportsDialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	if _, err := client.Events(context.Background()); err == nil {
		t.Fatal("expected dial error against a non-websocket endpoint")
	}
}

func receiveEvent(t *testing.T, events <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatal("stream closed early")
		}
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ChangeEvent{}
}
