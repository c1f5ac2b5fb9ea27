package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/agentbus/internal/event"
)

// Filter selects events for Replay and Events queries. Zero values
// leave the corresponding dimension unbounded.
type Filter struct {
	Type          event.Type
	CorrelationID string
	SinceSeq      uint64
	Since         time.Time
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(ev event.Event) bool {
	if f.Type != "" && f.Type != event.Wildcard && f.Type != ev.Type {
		return false
	}
	if f.CorrelationID != "" && f.CorrelationID != ev.CorrelationID() {
		return false
	}
	if f.SinceSeq > 0 && ev.Seq <= f.SinceSeq {
		return false
	}
	if !f.Since.IsZero() {
		ts, err := time.Parse(event.TimestampFormat, ev.Timestamp)
		if err != nil || ts.Before(f.Since) {
			return false
		}
	}
	return true
}

// Cursor is a lazy, finite, restartable scan over the durable log.
// Each Replay call opens its own reader, so repeated replays over the
// same store state return the same sequence.
type Cursor struct {
	path   string
	filter Filter

	file    *os.File
	scanner *bufio.Scanner
	err     error
	done    bool
}

// Replay returns a cursor over previously appended events matching the
// filter, in append order.
func (l *Log) Replay(filter Filter) *Cursor {
	return &Cursor{path: l.path, filter: filter}
}

// Next returns the next matching event. ok is false when the sequence
// is exhausted or an error occurred (check Err).
func (c *Cursor) Next() (event.Event, bool) {
	if c.done || c.err != nil {
		return event.Event{}, false
	}
	if c.file == nil {
		f, err := os.Open(c.path)
		if err != nil {
			if os.IsNotExist(err) {
				c.done = true
				return event.Event{}, false
			}
			c.err = fmt.Errorf("bus: open log for replay: %w", err)
			return event.Event{}, false
		}
		c.file = f
		c.scanner = bufio.NewScanner(f)
	}

	for c.scanner.Scan() {
		var ev event.Event
		if err := json.Unmarshal(c.scanner.Bytes(), &ev); err != nil {
			continue // skip malformed lines
		}
		if c.filter.Matches(ev) {
			return ev, true
		}
	}
	if err := c.scanner.Err(); err != nil {
		c.err = fmt.Errorf("bus: read log: %w", err)
	}
	c.done = true
	c.Close()
	return event.Event{}, false
}

// Err returns the first error encountered during the scan.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying file. Safe to call more than once.
func (c *Cursor) Close() error {
	if c.file == nil {
		return nil
	}
	f := c.file
	c.file = nil
	return f.Close()
}

// Events returns a snapshot of all events matching the filter, in
// append order. It reads the durable file directly, so events appended
// by other processes sharing the log are included.
func (l *Log) Events(filter Filter) ([]event.Event, error) {
	cur := &Cursor{path: l.path, filter: filter}
	defer cur.Close()

	var out []event.Event
	for {
		ev, ok := cur.Next()
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out, cur.Err()
}
