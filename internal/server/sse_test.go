package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// readEventLine returns the next non-blank line from an event stream.
func readEventLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	lines := make(chan string, 1)
	fails := make(chan error, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				fails <- err
				return
			}
			line = strings.TrimRight(line, "\n")
			if line != "" {
				lines <- line
				return
			}
		}
	}()

	select {
	case line := <-lines:
		return line
	case err := <-fails:
		t.Fatalf("Stream read failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for an event")
	}
	return ""
}

func TestEventStream_ReloadBroadcast(t *testing.T) {
	cfg := testConfig()
	cfg.LiveReload = true

	s := newTestServer(t, cfg, map[string]string{"index.html": "<html></html>"})
	ts := httptest.NewServer(s.handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// The event stream carries the same fixed header set as file responses.
	assertPolicyHeaders(t, resp.Header)

	if got := resp.Header.Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding = %q, the event stream must not be compressed", got)
	}

	reader := bufio.NewReader(resp.Body)

	if line := readEventLine(t, reader); line != "data: connected" {
		t.Errorf("first event = %q, want %q", line, "data: connected")
	}

	s.hub.broadcast()

	if line := readEventLine(t, reader); line != "data: reload" {
		t.Errorf("second event = %q, want %q", line, "data: reload")
	}
}

func TestEventStream_DisabledFallsThrough(t *testing.T) {
	s := newTestServer(t, testConfig(), map[string]string{"index.html": "<html></html>"})

	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	// With live reload off there is no stream endpoint, just a file miss.
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	assertPolicyHeaders(t, rec.Header())
}

func TestReloadHub_SubscribeBroadcastUnsubscribe(t *testing.T) {
	h := newReloadHub()

	ch := h.subscribe()
	h.broadcast()

	select {
	case <-ch:
	default:
		t.Error("expected a pending signal after broadcast")
	}

	// A second broadcast with a full buffer must not block.
	h.broadcast()
	h.broadcast()

	h.unsubscribe(ch)
	h.broadcast()

	h.mu.Lock()
	remaining := len(h.clients)
	h.mu.Unlock()

	if remaining != 0 {
		t.Errorf("clients remaining = %d, want 0", remaining)
	}
}
