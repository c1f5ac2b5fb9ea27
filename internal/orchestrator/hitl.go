package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/agentbus/internal/alert"
	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/publish"
)

// DecisionResult is the outcome of waiting on an approval gate. A
// timeout is a result, not an error: TimedOut true with an empty
// Decision means no human decided within the window.
type DecisionResult struct {
	Decision hitl.Decision
	Decider  string
	TimedOut bool
}

// RequestDecision opens an approval gate: it records a pending request
// in the durable store and publishes HITL_REQUESTED on the bus. The
// request id doubles as the correlation id for the whole exchange.
func (o *Orchestrator) RequestDecision(reason string) (string, error) {
	id := "req-" + uuid.NewString()

	if _, err := o.store.Create(id, id, reason); err != nil {
		return "", fmt.Errorf("create approval request: %w", err)
	}

	_, err := o.pub.Publish(event.HITLRequested, event.Payload{
		"status":     event.StatusPending,
		"request_id": id,
		"reason":     reason,
	}, publish.WithCorrelationID(id))
	if err != nil {
		return "", fmt.Errorf("publish approval request: %w", err)
	}
	return id, nil
}

// WaitForDecision blocks until a HITL_DECISION for the request appears
// on the bus, the wait window expires, or ctx is cancelled. The bus is
// polled through the durable file, so decisions made by another process
// sharing the log are observed. Replayed decision events are ignored.
func (o *Orchestrator) WaitForDecision(ctx context.Context, requestID string) (DecisionResult, error) {
	deadline := time.Now().Add(o.waitTimeout)
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		events, err := o.log.Events(bus.Filter{
			Type:          event.HITLDecision,
			CorrelationID: requestID,
		})
		if err != nil {
			return DecisionResult{}, fmt.Errorf("poll decisions: %w", err)
		}
		for _, ev := range events {
			if ev.Replayed {
				continue
			}
			return decisionFromEvent(ev), nil
		}

		if time.Now().After(deadline) {
			return DecisionResult{TimedOut: true}, nil
		}
		select {
		case <-ctx.Done():
			return DecisionResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Decide records a terminal decision exactly once and announces it on
// the bus. A second decision for the same request is rejected by the
// store before anything reaches the bus.
func (o *Orchestrator) Decide(requestID string, decision hitl.Decision, decider string) error {
	if err := o.store.Decide(requestID, decision, decider); err != nil {
		return err
	}

	status := event.StatusCompleted
	if decision == hitl.DecisionRejected {
		status = event.StatusFailed
	}
	payload := event.Payload{
		"status":     status,
		"request_id": requestID,
		"decision":   string(decision),
		"decider":    decider,
	}
	if status == event.StatusFailed {
		payload["error"] = "request rejected by " + decider
	}

	_, err := o.pub.Publish(event.HITLDecision, payload, publish.WithCorrelationID(requestID))
	if err != nil {
		return fmt.Errorf("publish decision: %w", err)
	}
	return nil
}

// Escalate flags an undecided request and notifies configured webhooks.
// Escalation is advisory: the request stays pending and decidable.
func (o *Orchestrator) Escalate(requestID, reason string) error {
	if err := o.store.MarkEscalated(requestID); err != nil {
		return err
	}

	_, err := o.pub.Publish(event.Escalated, event.Payload{
		"status":     event.StatusPending,
		"request_id": requestID,
		"reason":     reason,
	}, publish.WithCorrelationID(requestID))
	if err != nil {
		return fmt.Errorf("publish escalation: %w", err)
	}

	if o.alerts != nil {
		o.alerts.Dispatch(alert.Notification{
			Timestamp:     time.Now().UTC().Format(event.TimestampFormat),
			EventType:     string(event.Escalated),
			RequestID:     requestID,
			CorrelationID: requestID,
			Agent:         o.pub.AgentID(),
			Reason:        reason,
		})
	}
	return nil
}

func decisionFromEvent(ev event.Event) DecisionResult {
	res := DecisionResult{}
	if d, ok := ev.Payload["decision"].(string); ok {
		res.Decision = hitl.Decision(d)
	}
	if d, ok := ev.Payload["decider"].(string); ok {
		res.Decider = d
	}
	return res
}
