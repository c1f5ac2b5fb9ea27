package agentbus

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()
	c, err := New(
		WithAgentID("tester"),
		WithBusPath(filepath.Join(dir, "events.jsonl")),
		WithHITLDir(filepath.Join(dir, "hitl")),
		WithPollInterval(20*time.Millisecond),
		WithWaitTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPublishAndQuery(t *testing.T) {
	c := newTestClient(t)

	id, err := c.Publish(TaskCompleted, Payload{"status": "completed", "result": "done"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected event id")
	}

	events, err := c.Events(TaskCompleted, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Agent != "tester" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestPublishRejectsBadPayload(t *testing.T) {
	c := newTestClient(t)

	if _, err := c.Publish(TaskCompleted, Payload{"result": "done"}); err == nil {
		t.Fatal("expected contract violation for missing status")
	}
}

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	c := newTestClient(t)

	var mu sync.Mutex
	var got []Event
	sub := c.Subscribe(Wildcard, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	defer sub.Close()

	c.Publish(TaskCompleted, Payload{"status": "completed", "result": "a"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subscription delivery")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestApprovalRoundTrip(t *testing.T) {
	c := newTestClient(t)

	id, err := c.RequestDecision("ship it")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.Decide(id, Approved, "alice")
	}()

	res, err := c.WaitForDecision(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if res.TimedOut || res.Decision != Approved || res.Decider != "alice" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestReplayMarksEvents(t *testing.T) {
	c := newTestClient(t)

	c.Publish(TaskCompleted, Payload{"status": "completed", "result": "a"})
	n, err := c.Replay(TaskCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 replayed event, got %d", n)
	}

	events, err := c.Events(TaskCompleted, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || !events[1].Replayed {
		t.Fatalf("expected replayed copy, got %+v", events)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)

	h := c.Health()
	if h.Bus != "ok" {
		t.Fatalf("expected healthy bus, got %q", h.Bus)
	}
	if h.PendingHITL != 0 {
		t.Fatalf("expected no pending requests, got %d", h.PendingHITL)
	}
}
