package bus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/agentbus/internal/event"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open event log: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func testEvent(typ event.Type, result string) event.Event {
	return event.Event{
		Type:  typ,
		Agent: "agent-a",
		Payload: event.Payload{
			"status": event.StatusCompleted,
			"result": result,
		},
	}
}

func TestAppendAssignsOrderedIDs(t *testing.T) {
	l, _ := newTestLog(t)

	id1, err := l.Append(testEvent(event.TaskCompleted, "one"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	id2, err := l.Append(testEvent(event.TaskCompleted, "two"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id1 >= id2 {
		t.Fatalf("expected ids to order lexically: %q >= %q", id1, id2)
	}
}

func TestAppendRejectsInvalidPayloadWithoutWriting(t *testing.T) {
	l, path := newTestLog(t)

	_, err := l.Append(event.Event{
		Type:    event.TaskCompleted,
		Agent:   "agent-a",
		Payload: event.Payload{"result": "x"}, // missing status
	})
	var cv *event.ContractViolation
	if !errors.As(err, &cv) {
		t.Fatalf("expected ContractViolation, got %v", err)
	}

	info, statErr := os.Stat(path)
	if statErr == nil && info.Size() != 0 {
		t.Fatalf("expected empty log after rejected append, got %d bytes", info.Size())
	}

	evs, err := l.Events(Filter{})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("expected bus state unchanged, got %d events", len(evs))
	}
}

func TestReplayReturnsAppendOrder(t *testing.T) {
	l, _ := newTestLog(t)

	want := []string{"a", "b", "c", "d"}
	for _, r := range want {
		if _, err := l.Append(testEvent(event.TaskCompleted, r)); err != nil {
			t.Fatalf("append %q: %v", r, err)
		}
	}

	cur := l.Replay(Filter{Type: event.TaskCompleted})
	var got []string
	for {
		ev, ok := cur.Next()
		if !ok {
			break
		}
		got = append(got, ev.Payload["result"].(string))
	}
	if cur.Err() != nil {
		t.Fatalf("cursor error: %v", cur.Err())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v in append order, got %v", want, got)
	}
}

func TestReplayIsRestartable(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < 3; i++ {
		if _, err := l.Append(testEvent(event.TaskCompleted, "x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	read := func() []uint64 {
		cur := l.Replay(Filter{})
		var seqs []uint64
		for {
			ev, ok := cur.Next()
			if !ok {
				break
			}
			seqs = append(seqs, ev.Seq)
		}
		return seqs
	}

	first := read()
	second := read()
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 events in both passes, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay not restartable: pass1 %v, pass2 %v", first, second)
		}
	}
}

func TestReplaySingleEventScenario(t *testing.T) {
	l, _ := newTestLog(t)

	if _, err := l.Append(testEvent(event.TaskCompleted, "x")); err != nil {
		t.Fatalf("append: %v", err)
	}

	evs, err := l.Events(Filter{Type: event.TaskCompleted})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(evs))
	}
	if evs[0].Payload["status"] != event.StatusCompleted || evs[0].Payload["result"] != "x" {
		t.Fatalf("unexpected payload: %v", evs[0].Payload)
	}
}

func TestEventsFiltersByCorrelationID(t *testing.T) {
	l, _ := newTestLog(t)

	ev := testEvent(event.HITLDecision, "approved")
	ev.Payload["correlation_id"] = "req-1"
	if _, err := l.Append(ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	other := testEvent(event.HITLDecision, "rejected")
	other.Payload["correlation_id"] = "req-2"
	if _, err := l.Append(other); err != nil {
		t.Fatalf("append: %v", err)
	}

	evs, err := l.Events(Filter{Type: event.HITLDecision, CorrelationID: "req-1"})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 1 || evs[0].Payload["result"] != "approved" {
		t.Fatalf("expected one matching event, got %v", evs)
	}
}

func TestSubscribeDeliversInAppendOrder(t *testing.T) {
	l, _ := newTestLog(t)

	var mu sync.Mutex
	var got []uint64
	done := make(chan struct{})

	l.Subscribe(event.Wildcard, func(ev event.Event) {
		mu.Lock()
		got = append(got, ev.Seq)
		if len(got) == 50 {
			close(done)
		}
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(testEvent(event.TaskCompleted, "x"))
		}()
	}
	wg.Wait()
	<-done

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("delivery out of append order at %d: %v", i, got)
		}
	}
}

func TestSubscribeNoHistoricalBackfill(t *testing.T) {
	l, _ := newTestLog(t)

	if _, err := l.Append(testEvent(event.TaskCompleted, "before")); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := make(chan event.Event, 1)
	l.Subscribe(event.TaskCompleted, func(ev event.Event) { got <- ev })

	if _, err := l.Append(testEvent(event.TaskCompleted, "after")); err != nil {
		t.Fatalf("append: %v", err)
	}

	ev := <-got
	if ev.Payload["result"] != "after" {
		t.Fatalf("expected only post-subscription event, got %v", ev.Payload)
	}
	select {
	case extra := <-got:
		t.Fatalf("unexpected backfilled event: %v", extra.Payload)
	default:
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	l, _ := newTestLog(t)

	healthy := make(chan event.Event, 4)
	l.Subscribe(event.Wildcard, func(event.Event) { panic("bad subscriber") })
	l.Subscribe(event.Wildcard, func(ev event.Event) { healthy <- ev })

	if _, err := l.Append(testEvent(event.TaskCompleted, "one")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.Append(testEvent(event.TaskCompleted, "two")); err != nil {
		t.Fatalf("append: %v", err)
	}

	first := <-healthy
	second := <-healthy
	if first.Seq >= second.Seq {
		t.Fatalf("healthy subscriber lost ordering: %d then %d", first.Seq, second.Seq)
	}
}

func TestSubscriptionFilterByType(t *testing.T) {
	l, _ := newTestLog(t)

	got := make(chan event.Event, 2)
	l.Subscribe(event.TaskFailed, func(ev event.Event) { got <- ev })

	l.Append(testEvent(event.TaskCompleted, "ok"))
	failed := event.Event{
		Type:  event.TaskFailed,
		Agent: "agent-a",
		Payload: event.Payload{
			"status": event.StatusFailed,
			"result": "none",
			"error":  "boom",
		},
	}
	if _, err := l.Append(failed); err != nil {
		t.Fatalf("append: %v", err)
	}

	ev := <-got
	if ev.Type != event.TaskFailed {
		t.Fatalf("expected TASK_FAILED, got %s", ev.Type)
	}
}

func TestReopenContinuesChainAndSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	l1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l1.Append(testEvent(event.TaskCompleted, "x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := l2.Append(testEvent(event.TaskCompleted, "y"))
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	l2.Close()

	if !strings.HasPrefix(id, "e-000000000004") {
		t.Fatalf("expected sequence to continue at 4, got id %q", id)
	}

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain after reopen, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Events != 4 {
		t.Fatalf("expected 4 events, got %d", result.Events)
	}
}

func TestConcurrentAppendsKeepChainValid(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(testEvent(event.TaskCompleted, "x"))
		}()
	}
	wg.Wait()
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain after concurrent appends, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Events != 100 {
		t.Fatalf("expected 100 events, got %d", result.Events)
	}
}

func TestSecondWriterResyncsChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	writer, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := writer.Append(testEvent(event.TaskCompleted, "first")); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A second process (e.g. the approve CLI) appends to the same log.
	other, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Append(testEvent(event.HITLDecision, "approved")); err != nil {
		t.Fatalf("append from second writer: %v", err)
	}
	other.Close()

	// The first writer observes the foreign append and keeps the chain.
	if _, err := writer.Append(testEvent(event.TaskCompleted, "third")); err != nil {
		t.Fatalf("append after foreign write: %v", err)
	}
	writer.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Events != 3 {
		t.Fatalf("expected 3 events, got %d", result.Events)
	}
}

func TestConcurrentCrossHandleAppendsKeepChainValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	daemon, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	cli, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	// Interleaved appends from both handles, as when the serve daemon
	// and a one-shot CLI command race on the shared log.
	const perHandle = 50
	var wg sync.WaitGroup
	for _, l := range []*Log{daemon, cli} {
		wg.Add(1)
		go func(l *Log) {
			defer wg.Done()
			for i := 0; i < perHandle; i++ {
				if _, err := l.Append(testEvent(event.TaskCompleted, "x")); err != nil {
					t.Errorf("concurrent append: %v", err)
					return
				}
			}
		}(l)
	}
	wg.Wait()
	daemon.Close()
	cli.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("chain broken by concurrent cross-handle appends: line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Events != 2*perHandle {
		t.Fatalf("expected %d events, got %d", 2*perHandle, result.Events)
	}
}

func TestVerifyDetectsTamperedEvent(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		if _, err := l.Append(testEvent(event.TaskCompleted, "x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"completed"`, `"failed"`, 1)
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.ErrorLine != 3 {
		t.Fatalf("expected error at line 3, got line %d", result.ErrorLine)
	}
}

func TestCursorCloseIsIdempotent(t *testing.T) {
	l, _ := newTestLog(t)
	l.Append(testEvent(event.TaskCompleted, "x"))

	cur := l.Replay(Filter{})
	if _, ok := cur.Next(); !ok {
		t.Fatal("expected one event")
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
