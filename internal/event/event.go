package event

// Type is the enumerated kind of an event on the bus.
type Type string

const (
	TaskCompleted Type = "TASK_COMPLETED"
	TaskFailed    Type = "TASK_FAILED"
	HITLRequested Type = "HITL_REQUESTED"
	HITLDecision  Type = "HITL_DECISION"
	Escalated     Type = "ESCALATED"

	// Wildcard matches every event type in subscriptions and filters.
	Wildcard Type = "*"
)

// Payload status values. Every payload carries exactly one of these.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

// TimestampFormat is the layout used in event timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Event is one immutable record in the durable log. All fields are
// assigned by the bus on append and never change afterwards.
type Event struct {
	ID        string  `json:"id"`
	Seq       uint64  `json:"seq"`
	Type      Type    `json:"type"`
	Agent     string  `json:"agent"`
	Timestamp string  `json:"timestamp"`
	Payload   Payload `json:"payload"`
	Replayed  bool    `json:"replayed,omitempty"`
	PrevHash  string  `json:"prev_hash"`
}

// CorrelationID returns the payload correlation_id, or "" if absent.
func (e Event) CorrelationID() string {
	return e.Payload.CorrelationID()
}
