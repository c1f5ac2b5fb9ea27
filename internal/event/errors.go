package event

import "fmt"

// ContractViolation reports a payload that fails the publish contract.
// It is a caller bug and is always surfaced, never repaired silently.
type ContractViolation struct {
	Field  string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation: %s: %s", e.Field, e.Reason)
}

// BusUnavailable reports a durable-store write failure. Unlike tool
// failures it must propagate: silently losing an event would break the
// ordering and audit invariants.
type BusUnavailable struct {
	Op  string
	Err error
}

func (e *BusUnavailable) Error() string {
	return fmt.Sprintf("bus unavailable: %s: %v", e.Op, e.Err)
}

func (e *BusUnavailable) Unwrap() error { return e.Err }
