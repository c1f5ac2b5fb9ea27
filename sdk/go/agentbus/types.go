package agentbus

import (
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/hitl"
)

// EventType enumerates the kinds of events on the bus.
type EventType = event.Type

const (
	TaskCompleted = event.TaskCompleted
	TaskFailed    = event.TaskFailed
	HITLRequested = event.HITLRequested
	HITLDecision  = event.HITLDecision
	Escalated     = event.Escalated
	Wildcard      = event.Wildcard
)

// Payload is the free-form event body. It must carry a "status" field
// and at least one domain field.
type Payload = event.Payload

// Decision is the terminal state of an approval request.
type Decision = hitl.Decision

const (
	Approved = hitl.DecisionApproved
	Rejected = hitl.DecisionRejected
)

// Event is one record from the durable log.
type Event struct {
	ID            string
	Seq           uint64
	Type          EventType
	Agent         string
	Timestamp     string
	Payload       Payload
	CorrelationID string
	Replayed      bool
}

// DecisionResult is the outcome of waiting on an approval gate.
// TimedOut true means no human decided within the wait window.
type DecisionResult struct {
	Decision Decision
	Decider  string
	TimedOut bool
}

// Health summarizes the runtime.
type Health struct {
	Bus         string
	ToolLayer   string
	PendingHITL int
}

func fromInternal(ev event.Event) Event {
	return Event{
		ID:            ev.ID,
		Seq:           ev.Seq,
		Type:          ev.Type,
		Agent:         ev.Agent,
		Timestamp:     ev.Timestamp,
		Payload:       ev.Payload,
		CorrelationID: ev.CorrelationID(),
		Replayed:      ev.Replayed,
	}
}
