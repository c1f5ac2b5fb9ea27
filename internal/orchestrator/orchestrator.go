// Package orchestrator coordinates agents over the event bus: routing,
// human-in-the-loop approval gates, escalation, and history replay.
package orchestrator

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ppiankov/agentbus/internal/alert"
	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/publish"
	"github.com/ppiankov/agentbus/internal/tool"
	"github.com/ppiankov/agentbus/internal/trace"
)

// Handler consumes events routed to a registered agent.
type Handler func(event.Event)

// Options wires an Orchestrator's collaborators. Log, Publisher, and
// Store are required; the rest are optional.
type Options struct {
	Log       *bus.Log
	Publisher *publish.Publisher
	Store     *hitl.Store
	Layer     *tool.Layer
	Collector *trace.Collector
	Alerts    *alert.Dispatcher

	Routing      map[string][]string
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// Orchestrator routes bus events to registered agents and runs the
// approval workflow.
type Orchestrator struct {
	log       *bus.Log
	pub       *publish.Publisher
	store     *hitl.Store
	layer     *tool.Layer
	collector *trace.Collector
	alerts    *alert.Dispatcher

	pollInterval time.Duration
	waitTimeout  time.Duration

	mu      sync.RWMutex
	routing map[string][]string
	agents  map[string]Handler
	sub     *bus.Subscription
}

// New creates an Orchestrator from its options.
func New(opts Options) (*Orchestrator, error) {
	if opts.Log == nil || opts.Publisher == nil || opts.Store == nil {
		return nil, fmt.Errorf("orchestrator: log, publisher, and store are required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Minute
	}
	routing := make(map[string][]string, len(opts.Routing))
	for k, v := range opts.Routing {
		routing[k] = append([]string(nil), v...)
	}
	return &Orchestrator{
		log:          opts.Log,
		pub:          opts.Publisher,
		store:        opts.Store,
		layer:        opts.Layer,
		collector:    opts.Collector,
		alerts:       opts.Alerts,
		pollInterval: opts.PollInterval,
		waitTimeout:  opts.WaitTimeout,
		routing:      routing,
		agents:       make(map[string]Handler),
	}, nil
}

// RegisterAgent attaches a handler under an agent id. Re-registering
// replaces the handler.
func (o *Orchestrator) RegisterAgent(id string, h Handler) error {
	if id == "" {
		return fmt.Errorf("orchestrator: agent id must not be empty")
	}
	if h == nil {
		return fmt.Errorf("orchestrator: agent %q has no handler", id)
	}
	o.mu.Lock()
	o.agents[id] = h
	o.mu.Unlock()
	return nil
}

// SetRouting atomically replaces the routing table. Used by hot-reload.
func (o *Orchestrator) SetRouting(routing map[string][]string) {
	next := make(map[string][]string, len(routing))
	for k, v := range routing {
		next[k] = append([]string(nil), v...)
	}
	o.mu.Lock()
	o.routing = next
	o.mu.Unlock()
}

// Start subscribes to the bus and begins routing. Idempotent.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sub != nil {
		return
	}
	o.sub = o.log.Subscribe(event.Wildcard, o.RouteEvent)
}

// Stop unsubscribes from the bus. Queued events still drain.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// RouteEvent delivers one event to the agents its type routes to.
// "*" routes match every type. An event with no matching registered
// agent is logged and dropped, never queued.
func (o *Orchestrator) RouteEvent(ev event.Event) {
	var span *trace.Span
	if o.collector != nil {
		span = o.collector.StartSpan("route", nil)
	}

	// Handlers run in routing-list order, each at most once per event.
	o.mu.RLock()
	targets := append([]string(nil), o.routing[string(ev.Type)]...)
	targets = append(targets, o.routing[string(event.Wildcard)]...)
	var ids []string
	handlers := make(map[string]Handler, len(targets))
	for _, id := range targets {
		if _, dup := handlers[id]; dup {
			continue
		}
		if h, ok := o.agents[id]; ok {
			handlers[id] = h
			ids = append(ids, id)
		}
	}
	o.mu.RUnlock()

	delivered := 0
	for _, id := range ids {
		h := handlers[id]
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "orchestrator: agent %q panicked on %s: %v\n", id, ev.ID, r)
				}
			}()
			h(ev)
		}()
		delivered++
	}

	if delivered == 0 {
		fmt.Fprintf(os.Stderr, "orchestrator: no route for %s event %s, dropping\n", ev.Type, ev.ID)
	}

	if o.collector != nil {
		o.collector.EndSpan(span, map[string]any{
			"event_type": string(ev.Type),
			"event_id":   ev.ID,
			"delivered":  delivered,
		})
	}
}

// ReplayHistory republishes historical events matching the filter, in
// original order, marked as replayed. Returns the number republished.
func (o *Orchestrator) ReplayHistory(filter bus.Filter) (int, error) {
	events, err := o.log.Events(filter)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, ev := range events {
		if ev.Replayed {
			continue // do not replay replays
		}
		opts := []publish.Option{publish.AsReplay()}
		if cid := ev.CorrelationID(); cid != "" {
			opts = append(opts, publish.WithCorrelationID(cid))
		}
		if _, err := o.pub.Publish(ev.Type, ev.Payload, opts...); err != nil {
			return count, fmt.Errorf("replay %s: %w", ev.ID, err)
		}
		count++
	}
	return count, nil
}

// Health is a point-in-time summary of the runtime.
type Health struct {
	Bus         string `json:"bus"`
	ToolLayer   string `json:"tool_layer"`
	PendingHITL int    `json:"pending_hitl"`
}

// CheckHealth reports bus availability, tool layer capability, and the
// pending approval count.
func (o *Orchestrator) CheckHealth() Health {
	h := Health{Bus: "ok", ToolLayer: "disabled"}
	if !o.log.Healthy() {
		h.Bus = "degraded"
	}
	if o.layer != nil {
		h.ToolLayer = o.layer.Status()
	}
	if o.store != nil {
		h.PendingHITL = o.store.PendingCount()
	}
	return h
}
