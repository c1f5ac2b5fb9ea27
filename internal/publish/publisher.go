// Package publish is the single enforcement point between agents and
// the event log. Agent code never appends to the bus directly; every
// outbound event passes through a Publisher, which makes the payload
// contract auditable by static inspection.
package publish

import (
	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/trace"
)

// Option configures a single Publish call.
type Option func(*pubConfig)

type pubConfig struct {
	correlationID string
	replay        bool
}

// WithCorrelationID sets the payload correlation_id if the payload does
// not already carry one.
func WithCorrelationID(id string) Option {
	return func(c *pubConfig) { c.correlationID = id }
}

// AsReplay marks the event as a republication of historical state.
// Replayed events are format-identical to live ones apart from this
// marker.
func AsReplay() Option {
	return func(c *pubConfig) { c.replay = true }
}

// Publisher validates and normalizes every outgoing event for one
// agent before it reaches the bus.
type Publisher struct {
	agentID   string
	log       *bus.Log
	collector *trace.Collector
}

// NewPublisher creates a Publisher for the given agent. The collector
// may be nil, in which case publishes are not traced.
func NewPublisher(agentID string, log *bus.Log, collector *trace.Collector) *Publisher {
	return &Publisher{agentID: agentID, log: log, collector: collector}
}

// AgentID returns the agent this publisher speaks for.
func (p *Publisher) AgentID() string { return p.agentID }

// Publish validates the payload, injects agent identity and
// correlation id, and appends to the bus. A payload that fails the
// contract returns *event.ContractViolation to the caller — the
// wrapper never repairs it silently. Failure events (*_FAILED with an
// "error" field) remain the caller's responsibility to publish.
func (p *Publisher) Publish(eventType event.Type, payload event.Payload, opts ...Option) (string, error) {
	var cfg pubConfig
	for _, o := range opts {
		o(&cfg)
	}

	if p.agentID == "" {
		return "", &event.ContractViolation{Field: "agent", Reason: "publisher has no agent id"}
	}
	if err := payload.Validate(); err != nil {
		return "", err
	}

	body := payload.Clone()
	if cfg.correlationID != "" && body.CorrelationID() == "" {
		body["correlation_id"] = cfg.correlationID
	}

	var span *trace.Span
	if p.collector != nil {
		span = p.collector.StartSpan("publish", nil)
	}

	id, err := p.log.Append(event.Event{
		Type:     eventType,
		Agent:    p.agentID,
		Payload:  body,
		Replayed: cfg.replay,
	})

	if p.collector != nil {
		attrs := map[string]any{
			"event_type": string(eventType),
			"agent":      p.agentID,
		}
		if err != nil {
			attrs["error"] = err.Error()
		} else {
			attrs["event_id"] = id
		}
		p.collector.EndSpan(span, attrs)
	}

	return id, err
}
