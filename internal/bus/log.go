package bus

import (
	"bufio"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ppiankov/agentbus/internal/event"
)

// GenesisHash is the prev_hash for the first event in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Log is an append-only JSONL event store with SHA-256 hash chaining.
// Appends are serialized under a single lock to preserve total order;
// reads (Events, Replay) scan the file and take no lock, so a decision
// appended by a separate process is always observed.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	seq      uint64
	size     int64
	mu       sync.Mutex

	subMu   sync.Mutex
	subs    map[int]*Subscription
	nextSub int
}

// Open opens (or creates) an event log for appending. If the file
// already exists, it reads the last line to recover the chain tail and
// sequence counter.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("bus: create directory: %w", err)
	}

	prevHash, seq, size, err := readTail(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("bus: open file: %w", err)
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
		seq:      seq,
		size:     size,
		subs:     make(map[int]*Subscription),
	}, nil
}

// readTail scans the log file and returns the chain tail, last
// sequence number, and file size.
func readTail(path string) (prevHash string, seq uint64, size int64, err error) {
	prevHash = GenesisHash

	info, statErr := os.Stat(path)
	if statErr != nil || info.Size() == 0 {
		return prevHash, 0, 0, nil
	}
	size = info.Size()

	f, err := os.Open(path)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bus: read existing log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lastLine []byte
	for scanner.Scan() {
		lastLine = make([]byte, len(scanner.Bytes()))
		copy(lastLine, scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return "", 0, 0, fmt.Errorf("bus: scan existing log: %w", err)
	}
	if len(lastLine) > 0 {
		prevHash = HashLine(lastLine)
		var last event.Event
		if err := json.Unmarshal(lastLine, &last); err != nil {
			return "", 0, 0, fmt.Errorf("bus: parse chain tail: %w", err)
		}
		seq = last.Seq
	}
	return prevHash, seq, size, nil
}

// Path returns the underlying log file path.
func (l *Log) Path() string { return l.path }

// Append validates the payload, assigns id, sequence, timestamp, and
// prev-hash, and stores the event durably before returning its id.
// Validation failures return *event.ContractViolation with the log
// unchanged; write failures return *event.BusUnavailable.
func (l *Log) Append(ev event.Event) (string, error) {
	if err := ev.Payload.Validate(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// The serve daemon and one-shot CLI commands append through separate
	// handles on this file. The advisory lock makes resync+write atomic
	// across handles, so both sides extend the same chain tail.
	fd := int(l.file.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX); err != nil {
		return "", &event.BusUnavailable{Op: "lock", Err: err}
	}
	defer syscall.Flock(fd, syscall.LOCK_UN)

	// Another handle may have appended since our last write; re-sync the
	// chain tail so the chain stays intact.
	if info, err := os.Stat(l.path); err == nil && info.Size() != l.size {
		prevHash, seq, size, err := readTail(l.path)
		if err != nil {
			return "", &event.BusUnavailable{Op: "resync", Err: err}
		}
		l.prevHash = prevHash
		l.seq = seq
		l.size = size
	}

	l.seq++
	ev.Seq = l.seq
	ev.ID = eventID(l.seq)
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(event.TimestampFormat)
	}
	ev.PrevHash = l.prevHash

	line, err := json.Marshal(ev)
	if err != nil {
		l.seq--
		return "", fmt.Errorf("bus: marshal event: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		l.seq--
		return "", &event.BusUnavailable{Op: "append", Err: err}
	}
	if err := l.file.Sync(); err != nil {
		return "", &event.BusUnavailable{Op: "sync", Err: err}
	}

	l.size += int64(len(line)) + 1
	l.prevHash = HashLine(line)

	// Enqueue while still holding the append lock so every subscriber
	// observes events in exactly append order.
	l.fanout(ev)

	return ev.ID, nil
}

// Healthy reports whether the backing file is still reachable.
func (l *Log) Healthy() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Close stops all subscriptions and closes the underlying file.
func (l *Log) Close() error {
	l.subMu.Lock()
	for id, sub := range l.subs {
		sub.close()
		delete(l.subs, id)
	}
	l.subMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

// eventID builds a monotonically orderable id from the append sequence
// plus a random suffix.
func eventID(seq uint64) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("e-%012d", seq)
	}
	return fmt.Sprintf("e-%012d-%s", seq, hex.EncodeToString(b))
}
