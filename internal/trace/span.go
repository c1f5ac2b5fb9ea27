package trace

// Span is a JSON-serializable record of one timed operation. The
// emitting component owns the span until EndSpan; the collector only
// aggregates finished copies.
type Span struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Operation    string         `json:"op"`
	Start        string         `json:"start"`
	End          string         `json:"end,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`

	// sampled is decided at span start and immutable afterwards.
	sampled bool
}

// Sampled reports whether the span was selected at start time.
func (s *Span) Sampled() bool { return s.sampled }
