package trace

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"
)

// maxFlushRetries bounds how many times a failed batch is retried
// before it is dropped to avoid unbounded memory growth.
const maxFlushRetries = 3

// Exporter ships a batch of finished spans.
type Exporter interface {
	Export(spans []Span) error
}

// Config holds collector tuning.
type Config struct {
	SampleRate    float64 // 0.0–1.0; 1.0 in debug contexts
	BatchSize     int
	FlushInterval time.Duration
}

// Collector samples, buffers, and ships spans. Spans are flushed when
// the batch-size threshold is reached or the flush interval elapses,
// whichever comes first.
type Collector struct {
	cfg      Config
	exporter Exporter

	mu      sync.Mutex
	buf     []Span
	pending []Span // failed batch retained for retry
	retries int

	// flushMu serializes whole flush attempts: a batch-size flush from
	// EndSpan racing the interval flush must not export one batch twice.
	flushMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewCollector creates a collector and starts its flush loop.
func NewCollector(cfg Config, exporter Exporter) *Collector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.SampleRate < 0 {
		cfg.SampleRate = 0
	}
	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1
	}

	c := &Collector{
		cfg:      cfg,
		exporter: exporter,
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()
	return c
}

// StartSpan begins a span. The sampling decision is made here and
// never changes for the span's lifetime. A non-nil parent fixes the
// trace id and inherits the parent's sampling decision.
func (c *Collector) StartSpan(operation string, parent *Span) *Span {
	s := &Span{
		SpanID:    NewSpanID(),
		Operation: operation,
		Start:     UTCNowISO(),
	}
	if parent != nil {
		s.TraceID = parent.TraceID
		s.ParentSpanID = parent.SpanID
		s.sampled = parent.sampled
	} else {
		s.TraceID = NewTraceID()
		s.sampled = rand.Float64() < c.cfg.SampleRate
	}
	return s
}

// EndSpan finishes the span, merges attributes, and enqueues it if it
// was sampled. Ending a span twice is a no-op.
func (c *Collector) EndSpan(s *Span, attrs map[string]any) {
	if s == nil || s.End != "" {
		return
	}
	s.End = UTCNowISO()
	if len(attrs) > 0 {
		if s.Attributes == nil {
			s.Attributes = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			s.Attributes[k] = v
		}
	}
	if !s.sampled {
		return
	}

	c.mu.Lock()
	c.buf = append(c.buf, *s)
	full := len(c.buf) >= c.cfg.BatchSize
	c.mu.Unlock()

	if full {
		c.Flush()
	}
}

// Flush ships everything buffered so far. A failed batch is retained
// and retried on subsequent flushes up to maxFlushRetries, then
// dropped with a log line.
func (c *Collector) Flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if c.pending == nil && len(c.buf) == 0 {
		c.mu.Unlock()
		return
	}
	if c.pending == nil {
		c.pending = c.buf
		c.buf = nil
		c.retries = 0
	}
	batch := c.pending
	c.mu.Unlock()

	err := c.exporter.Export(batch)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.pending = nil
		c.retries = 0
		return
	}
	c.retries++
	if c.retries >= maxFlushRetries {
		fmt.Fprintf(os.Stderr, "trace: dropping %d spans after %d failed flushes: %v\n",
			len(batch), c.retries, err)
		c.pending = nil
		c.retries = 0
	}
}

// Close flushes remaining spans and stops the flush loop.
func (c *Collector) Close() {
	close(c.done)
	c.wg.Wait()
	c.Flush()
}

func (c *Collector) loop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Flush()
		}
	}
}
