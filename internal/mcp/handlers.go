package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/publish"
)

// --- Input/Output types ---

// PublishInput defines parameters for the agentbus_publish tool.
type PublishInput struct {
	Type          string         `json:"type" jsonschema:"event type (TASK_COMPLETED/TASK_FAILED/HITL_REQUESTED/HITL_DECISION/ESCALATED)"`
	Payload       map[string]any `json:"payload" jsonschema:"event payload, must include a status field"`
	CorrelationID string         `json:"correlation_id,omitempty" jsonschema:"correlation id linking related events"`
}

// PublishOutput confirms the append or carries the rejection reason.
type PublishOutput struct {
	EventID  string `json:"event_id,omitempty"`
	Rejected bool   `json:"rejected,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// PendingInput is empty — no parameters needed.
type PendingInput struct{}

// PendingOutput lists all requests awaiting a decision.
type PendingOutput struct {
	Requests []PendingItem `json:"requests"`
}

// PendingItem describes a single approval request.
type PendingItem struct {
	RequestID   string `json:"request_id"`
	Reason      string `json:"reason"`
	RequestedAt string `json:"requested_at"`
	Escalated   bool   `json:"escalated,omitempty"`
}

// DecideInput defines parameters for the agentbus_decide tool.
type DecideInput struct {
	RequestID string `json:"request_id" jsonschema:"request id from agentbus_pending"`
	Decision  string `json:"decision" jsonschema:"approved or rejected"`
	Decider   string `json:"decider" jsonschema:"identity of the human deciding"`
}

// DecideOutput confirms the decision.
type DecideOutput struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision"`
}

// ReplayInput defines parameters for the agentbus_replay tool.
type ReplayInput struct {
	Type          string `json:"type,omitempty" jsonschema:"only replay events of this type"`
	CorrelationID string `json:"correlation_id,omitempty" jsonschema:"only replay events with this correlation id"`
	SinceSeq      uint64 `json:"since_seq,omitempty" jsonschema:"only replay events after this sequence number"`
}

// ReplayOutput reports how many events were republished.
type ReplayOutput struct {
	Replayed int `json:"replayed"`
}

// HealthInput is empty — no parameters needed.
type HealthInput struct{}

// HealthOutput summarizes the runtime.
type HealthOutput struct {
	Bus         string `json:"bus"`
	ToolLayer   string `json:"tool_layer"`
	PendingHITL int    `json:"pending_hitl"`
}

// --- Handlers ---

func (s *Server) handlePublish(ctx context.Context, req *mcpsdk.CallToolRequest, input PublishInput) (*mcpsdk.CallToolResult, PublishOutput, error) {
	var opts []publish.Option
	if input.CorrelationID != "" {
		opts = append(opts, publish.WithCorrelationID(input.CorrelationID))
	}

	id, err := s.pub.Publish(event.Type(input.Type), event.Payload(input.Payload), opts...)
	if err != nil {
		out := PublishOutput{Rejected: true, Reason: err.Error()}
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, PublishOutput{EventID: id}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	requests, err := s.store.List()
	if err != nil {
		return nil, PendingOutput{}, err
	}

	out := PendingOutput{Requests: []PendingItem{}}
	for _, r := range requests {
		if r.Decision != hitl.DecisionPending {
			continue
		}
		out.Requests = append(out.Requests, PendingItem{
			RequestID:   r.ID,
			Reason:      r.Reason,
			RequestedAt: r.RequestedAt.Format(time.RFC3339),
			Escalated:   r.Escalated,
		})
	}
	return nil, out, nil
}

func (s *Server) handleDecide(ctx context.Context, req *mcpsdk.CallToolRequest, input DecideInput) (*mcpsdk.CallToolResult, DecideOutput, error) {
	decision := hitl.Decision(input.Decision)
	if err := s.orch.Decide(input.RequestID, decision, input.Decider); err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, DecideOutput{}, err
	}
	return nil, DecideOutput{RequestID: input.RequestID, Decision: input.Decision}, nil
}

func (s *Server) handleReplay(ctx context.Context, req *mcpsdk.CallToolRequest, input ReplayInput) (*mcpsdk.CallToolResult, ReplayOutput, error) {
	n, err := s.orch.ReplayHistory(bus.Filter{
		Type:          event.Type(input.Type),
		CorrelationID: input.CorrelationID,
		SinceSeq:      input.SinceSeq,
	})
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, ReplayOutput{Replayed: n}, err
	}
	return nil, ReplayOutput{Replayed: n}, nil
}

func (s *Server) handleHealth(ctx context.Context, req *mcpsdk.CallToolRequest, input HealthInput) (*mcpsdk.CallToolResult, HealthOutput, error) {
	h := s.orch.CheckHealth()
	return nil, HealthOutput{
		Bus:         h.Bus,
		ToolLayer:   h.ToolLayer,
		PendingHITL: h.PendingHITL,
	}, nil
}
