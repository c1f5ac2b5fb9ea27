package cli

import (
	"fmt"

	"github.com/ppiankov/agentbus/internal/alert"
	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/orchestrator"
	"github.com/ppiankov/agentbus/internal/publish"
)

// openRuntime wires a short-lived orchestrator for one-shot commands.
// The decision CLI and the serve daemon share the log file safely: the
// bus takes an advisory file lock and re-syncs its chain tail on each
// append.
func openRuntime(agentID string) (*orchestrator.Orchestrator, *bus.Log, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if agentID == "" {
		agentID = cfg.AgentID
	}

	log, err := bus.Open(cfg.Bus.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}

	store, err := hitl.NewStore(cfg.HITL.Dir)
	if err != nil {
		log.Close()
		return nil, nil, fmt.Errorf("failed to create hitl store: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Log:          log,
		Publisher:    publish.NewPublisher(agentID, log, nil),
		Store:        store,
		Alerts:       alert.NewDispatcher(cfg.Alerts),
		Routing:      cfg.Routing,
		PollInterval: cfg.HITL.PollInterval.Std(),
		WaitTimeout:  cfg.HITL.WaitTimeout.Std(),
	})
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	return orch, log, nil
}
