package tool

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// State is the tool layer lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnecting    State = "connecting"
	StateEnabled       State = "enabled"
	StateDegraded      State = "degraded"
)

// DefaultCircuitThreshold is the number of consecutive remote failures
// for one tool before remote attempts are skipped.
const DefaultCircuitThreshold = 3

// DefaultCallTimeout bounds a single remote tool call.
const DefaultCallTimeout = 30 * time.Second

// Config holds layer tuning.
type Config struct {
	CircuitThreshold int
	CallTimeout      time.Duration
}

// Layer owns the remote client lifecycle and the local registry,
// providing two-tier execution: remote when connected, local fallback
// otherwise. It degrades, it does not crash.
type Layer struct {
	remote   RemoteClient
	registry *Registry
	cfg      Config

	mu       sync.Mutex
	state    State
	failures map[string]int // consecutive remote failures per tool
	tripped  map[string]bool
}

// NewLayer creates a layer. remote may be nil, in which case the layer
// is local-only and Initialize reports degraded.
func NewLayer(remote RemoteClient, registry *Registry, cfg Config) *Layer {
	if cfg.CircuitThreshold <= 0 {
		cfg.CircuitThreshold = DefaultCircuitThreshold
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Layer{
		remote:   remote,
		registry: registry,
		cfg:      cfg,
		state:    StateUninitialized,
		failures: make(map[string]int),
		tripped:  make(map[string]bool),
	}
}

// Registry exposes the local registry for tool registration.
func (l *Layer) Registry() *Registry { return l.registry }

// State returns the current lifecycle state.
func (l *Layer) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Enabled reports whether remote execution is available.
func (l *Layer) Enabled() bool { return l.State() == StateEnabled }

// Initialize attempts to connect the remote client. On any failure it
// logs a warning, marks the layer degraded, and returns false — it
// never raises. Degraded is terminal until the next Initialize call,
// which also resets all per-tool circuits.
func (l *Layer) Initialize(ctx context.Context) bool {
	l.mu.Lock()
	l.state = StateConnecting
	l.failures = make(map[string]int)
	l.tripped = make(map[string]bool)
	l.mu.Unlock()

	if l.remote == nil {
		fmt.Fprintf(os.Stderr, "tool: no remote client configured, running local-only\n")
		l.setState(StateDegraded)
		return false
	}

	if err := l.remote.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tool: warning: remote tool server unavailable, falling back to local handlers: %v\n", err)
		l.setState(StateDegraded)
		return false
	}

	l.setState(StateEnabled)
	return true
}

// Execute runs a tool: remote first when enabled and the tool's
// circuit is closed, then the local handler, and (nil, false) when
// neither succeeds. Capability absence is a result, not an error.
func (l *Layer) Execute(ctx context.Context, name string, params map[string]any) (any, bool) {
	start := time.Now()

	if l.remoteEligible(name) {
		cctx, cancel := context.WithTimeout(ctx, l.cfg.CallTimeout)
		result, err := l.remote.Call(cctx, name, params)
		cancel()

		if err == nil {
			l.recordRemoteSuccess(name)
			l.registry.record(name, time.Since(start), false)
			return result, true
		}
		// Timeouts count as remote failures for circuit purposes.
		l.recordRemoteFailure(name, err)
	}

	handler, ok := l.registry.Lookup(name)
	if !ok {
		return nil, false
	}

	result, err := handler(ctx, params)
	l.registry.record(name, time.Since(start), err != nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tool: local handler %q failed: %v\n", name, err)
		return nil, false
	}
	return result, true
}

// Status returns a one-word capability summary for health checks.
func (l *Layer) Status() string {
	if l.Enabled() {
		return "enabled"
	}
	return "degraded"
}

// Close shuts down the remote client if connected.
func (l *Layer) Close() error {
	if l.remote == nil {
		return nil
	}
	return l.remote.Close()
}

// Stats returns call statistics for a tool.
func (l *Layer) Stats(name string) (Stats, bool) {
	return l.registry.stats(name)
}

func (l *Layer) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Layer) remoteEligible(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateEnabled && !l.tripped[name]
}

func (l *Layer) recordRemoteSuccess(name string) {
	l.mu.Lock()
	l.failures[name] = 0
	l.mu.Unlock()
}

func (l *Layer) recordRemoteFailure(name string, err error) {
	l.mu.Lock()
	l.failures[name]++
	n := l.failures[name]
	trip := n >= l.cfg.CircuitThreshold && !l.tripped[name]
	if trip {
		l.tripped[name] = true
	}
	l.mu.Unlock()

	fmt.Fprintf(os.Stderr, "tool: remote call %q failed (%d consecutive): %v\n", name, n, err)
	if trip {
		fmt.Fprintf(os.Stderr, "tool: circuit open for %q, skipping remote until next initialize\n", name)
	}
}
