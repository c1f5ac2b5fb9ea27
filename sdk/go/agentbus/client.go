package agentbus

import (
	"context"
	"fmt"

	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/orchestrator"
	"github.com/ppiankov/agentbus/internal/publish"
)

// Client is an in-process handle on the coordination runtime.
// Thread-safe for concurrent publishes and waits.
type Client struct {
	cfg  clientConfig
	log  *bus.Log
	pub  *publish.Publisher
	orch *orchestrator.Orchestrator
}

// New creates a Client with the given options. Unset options fall back
// to the config file (if WithConfig was given) and then to defaults.
func New(opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}

	fileCfg, err := config.Load(cfg.configPath)
	if err != nil {
		return nil, fmt.Errorf("agentbus: failed to load config: %w", err)
	}
	if cfg.agentID == "" {
		cfg.agentID = fileCfg.AgentID
	}
	if cfg.busPath == "" {
		cfg.busPath = fileCfg.Bus.Path
	}
	if cfg.hitlDir == "" {
		cfg.hitlDir = fileCfg.HITL.Dir
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = fileCfg.HITL.PollInterval.Std()
	}
	if cfg.waitTimeout <= 0 {
		cfg.waitTimeout = fileCfg.HITL.WaitTimeout.Std()
	}

	log, err := bus.Open(cfg.busPath)
	if err != nil {
		return nil, fmt.Errorf("agentbus: failed to open event log: %w", err)
	}

	store, err := hitl.NewStore(cfg.hitlDir)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("agentbus: failed to create request store: %w", err)
	}

	pub := publish.NewPublisher(cfg.agentID, log, nil)
	orch, err := orchestrator.New(orchestrator.Options{
		Log:          log,
		Publisher:    pub,
		Store:        store,
		PollInterval: cfg.pollInterval,
		WaitTimeout:  cfg.waitTimeout,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("agentbus: %w", err)
	}

	return &Client{cfg: cfg, log: log, pub: pub, orch: orch}, nil
}

// Publish appends one contract-checked event to the bus and returns its
// id. A payload without a valid status field is rejected.
func (c *Client) Publish(eventType EventType, payload Payload, correlationID ...string) (string, error) {
	var opts []publish.Option
	if len(correlationID) > 0 && correlationID[0] != "" {
		opts = append(opts, publish.WithCorrelationID(correlationID[0]))
	}
	return c.pub.Publish(eventType, payload, opts...)
}

// Subscribe registers a callback for events of the given type appended
// after the call (Wildcard matches all). Close the returned
// subscription to stop delivery.
func (c *Client) Subscribe(eventType EventType, fn func(Event)) *bus.Subscription {
	return c.log.Subscribe(eventType, func(ev event.Event) {
		fn(fromInternal(ev))
	})
}

// Events returns a snapshot of historical events matching the type and
// optional correlation id, in append order.
func (c *Client) Events(eventType EventType, correlationID string) ([]Event, error) {
	internal, err := c.log.Events(bus.Filter{Type: eventType, CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}
	out := make([]Event, len(internal))
	for i, ev := range internal {
		out[i] = fromInternal(ev)
	}
	return out, nil
}

// RequestDecision opens an approval gate and returns its request id.
func (c *Client) RequestDecision(reason string) (string, error) {
	return c.orch.RequestDecision(reason)
}

// WaitForDecision blocks until the request is decided, the wait window
// expires, or ctx is cancelled. Timeout is a result, not an error.
func (c *Client) WaitForDecision(ctx context.Context, requestID string) (DecisionResult, error) {
	res, err := c.orch.WaitForDecision(ctx, requestID)
	if err != nil {
		return DecisionResult{}, err
	}
	return DecisionResult(res), nil
}

// Decide records a terminal decision for a pending request.
func (c *Client) Decide(requestID string, decision Decision, decider string) error {
	return c.orch.Decide(requestID, decision, decider)
}

// Escalate flags an undecided request. The request stays decidable.
func (c *Client) Escalate(requestID, reason string) error {
	return c.orch.Escalate(requestID, reason)
}

// Replay republishes historical events of the given type, marked as
// replayed. Returns the number republished.
func (c *Client) Replay(eventType EventType) (int, error) {
	return c.orch.ReplayHistory(bus.Filter{Type: eventType})
}

// Health reports bus availability and the pending approval count.
func (c *Client) Health() Health {
	h := c.orch.CheckHealth()
	return Health{Bus: h.Bus, ToolLayer: h.ToolLayer, PendingHITL: h.PendingHITL}
}

// Close releases the event log. Subscriptions drain their queues first.
func (c *Client) Close() error {
	return c.log.Close()
}
