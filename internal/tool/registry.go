package tool

import (
	"context"
	"sync"
	"time"
)

// Handler executes a tool locally.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Stats tracks per-tool call statistics.
type Stats struct {
	Calls        int           `json:"calls"`
	Errors       int           `json:"errors"`
	TotalLatency time.Duration `json:"-"`
}

// AvgLatency returns the mean call latency, or zero with no calls.
func (s Stats) AvgLatency() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Calls)
}

// Registration is one entry in the local tool registry.
type Registration struct {
	Name     string
	Category string
	Handler  Handler
	Stats    Stats
}

// Registry holds local tool handlers keyed by unique name.
type Registry struct {
	mu    sync.Mutex
	tools map[string]*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Registration)}
}

// Register upserts a tool. Re-registering an existing name overwrites
// the handler and category but keeps accumulated statistics — the
// registry never silently duplicates a name.
func (r *Registry) Register(name string, handler Handler, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[name]; ok {
		existing.Handler = handler
		existing.Category = category
		return
	}
	r.tools[name] = &Registration{Name: name, Category: category, Handler: handler}
}

// Lookup returns the handler for a name, if registered.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.tools[name]
	if !ok || reg.Handler == nil {
		return nil, false
	}
	return reg.Handler, true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tools)
}

// Snapshot returns a copy of all registrations without handlers.
func (r *Registry) Snapshot() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Registration, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, Registration{
			Name:     reg.Name,
			Category: reg.Category,
			Stats:    reg.Stats,
		})
	}
	return out
}

// record updates statistics for one call.
func (r *Registry) record(name string, latency time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.tools[name]
	if !ok {
		return
	}
	reg.Stats.Calls++
	reg.Stats.TotalLatency += latency
	if failed {
		reg.Stats.Errors++
	}
}

// stats returns a copy of one tool's statistics.
func (r *Registry) stats(name string) (Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.tools[name]
	if !ok {
		return Stats{}, false
	}
	return reg.Stats, true
}
