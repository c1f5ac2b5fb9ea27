package alert

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestSendDeliversGenericPayload(t *testing.T) {
	var mu sync.Mutex
	var got Notification

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		json.Unmarshal(body, &got)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := Notification{EventType: "ESCALATED", RequestID: "req-1", Agent: "orchestrator", Reason: "no decision"}
	if err := Send(Config{URL: srv.URL}, n); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.EventType != "ESCALATED" || got.RequestID != "req-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendRetriesOn5xx(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Send(Config{URL: srv.URL}, Notification{EventType: "ESCALATED"}); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestSendDoesNotRetryOn4xx(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if err := Send(Config{URL: srv.URL}, Notification{EventType: "ESCALATED"}); err == nil {
		t.Fatal("expected 4xx to fail")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Fatalf("expected no retry on 4xx, got %d attempts", attempts)
	}
}

func TestSendSetsCustomHeaders(t *testing.T) {
	var mu sync.Mutex
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer tok"}}
	if err := Send(cfg, Notification{EventType: "ESCALATED"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer tok" {
		t.Fatalf("expected auth header, got %q", auth)
	}
}

func TestFormatSlackBuildsBlocks(t *testing.T) {
	body, err := FormatPayload("slack", Notification{EventType: "ESCALATED", Agent: "orchestrator", Reason: "timeout"})
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := payload["blocks"]; !ok {
		t.Fatal("expected slack blocks payload")
	}
}

func TestDispatcherNilWhenNoConfigs(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Fatal("expected nil dispatcher for empty configs")
	}
}

func TestDispatchFiltersOnEventType(t *testing.T) {
	var mu sync.Mutex
	hits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]Config{
		{URL: srv.URL, Events: []string{"ESCALATED"}},
		{URL: srv.URL, Events: []string{"TASK_FAILED"}},
	})

	d.Dispatch(Notification{EventType: "ESCALATED"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := hits
		mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for webhook delivery")
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected only matching config to fire, got %d hits", hits)
	}
}
