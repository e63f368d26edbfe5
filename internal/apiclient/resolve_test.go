package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveUsesLiveAPIWhenHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected health path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	t.Cleanup(server.Close)

	backend, mode, err := Resolve(context.Background(), ResolveConfig{BaseURL: server.URL, FallbackToMemory: true})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if mode != ModeRemote {
		t.Fatalf("expected remote mode, got %s", mode)
	}
	if _, ok := backend.(*Client); !ok {
		t.Fatalf("expected live client, got %T", backend)
	}
}

func TestResolveFallsBackWhenHealthCheckTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	started := time.Now()
	backend, mode, err := Resolve(context.Background(), ResolveConfig{
		BaseURL:          server.URL,
		HealthTimeout:     50 * time.Millisecond,
		FallbackToMemory: true,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if mode != ModeMemory {
		t.Fatalf("expected memory mode, got %s", mode)
	}
	if _, ok := backend.(*MemoryBackend); !ok {
		t.Fatalf("expected memory backend, got %T", backend)
	}
	if time.Since(started) > 2*time.Second {
		t.Fatal("health check did not honour its timeout")
	}
}

func TestResolveReportsUnavailableWithoutFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	_, _, err := Resolve(context.Background(), ResolveConfig{BaseURL: server.URL})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
