package event

// Payload is the structured body of an event. The publish contract
// requires a valid "status" plus at least one domain-specific key;
// "correlation_id" and "error" are reserved optional keys.
type Payload map[string]any

// reserved keys carry envelope semantics and do not count as the
// domain-specific result key the contract requires.
var reserved = map[string]bool{
	"status":         true,
	"correlation_id": true,
	"error":          true,
	"agent":          true,
	"timestamp":      true,
}

// Validate checks the publish contract. It returns a *ContractViolation
// describing the first problem found, or nil for a conforming payload.
func (p Payload) Validate() error {
	if p == nil {
		return &ContractViolation{Field: "payload", Reason: "payload is nil"}
	}

	status, ok := p["status"]
	if !ok {
		return &ContractViolation{Field: "status", Reason: "missing mandatory key"}
	}
	s, ok := status.(string)
	if !ok {
		return &ContractViolation{Field: "status", Reason: "must be a string"}
	}
	switch s {
	case StatusCompleted, StatusFailed, StatusPending:
	default:
		return &ContractViolation{Field: "status", Reason: "must be completed, failed, or pending"}
	}

	for k := range p {
		if !reserved[k] {
			return nil
		}
	}
	return &ContractViolation{Field: "payload", Reason: "missing domain-specific result key"}
}

// CorrelationID returns the correlation_id key, or "" if absent.
func (p Payload) CorrelationID() string {
	if v, ok := p["correlation_id"].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy so the original caller map can never
// alias an appended (immutable) event.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
