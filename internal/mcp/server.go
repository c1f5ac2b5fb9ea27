// Package mcp exposes the coordination runtime as MCP tools over stdio,
// so agent frameworks can publish events and drive approvals without
// linking the Go SDK.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/agentbus/internal/alert"
	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/orchestrator"
	"github.com/ppiankov/agentbus/internal/publish"
)

// Server wraps the MCP SDK server around the event bus and approval
// workflow.
type Server struct {
	mcpServer *mcpsdk.Server
	log       *bus.Log
	pub       *publish.Publisher
	store     *hitl.Store
	orch      *orchestrator.Orchestrator
}

// New builds a Server from runtime configuration.
func New(cfg *config.Config) (*Server, error) {
	log, err := bus.Open(cfg.Bus.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	store, err := hitl.NewStore(cfg.HITL.Dir)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create hitl store: %w", err)
	}

	pub := publish.NewPublisher(cfg.AgentID, log, nil)
	orch, err := orchestrator.New(orchestrator.Options{
		Log:          log,
		Publisher:    pub,
		Store:        store,
		Alerts:       alert.NewDispatcher(cfg.Alerts),
		Routing:      cfg.Routing,
		PollInterval: cfg.HITL.PollInterval.Std(),
		WaitTimeout:  cfg.HITL.WaitTimeout.Std(),
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	s := &Server{
		log:   log,
		pub:   pub,
		store: store,
		orch:  orch,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "agentbus",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the event log.
func (s *Server) Close() error {
	return s.log.Close()
}

// registerTools adds all agentbus tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "agentbus_publish",
		Description: "Publish an event to the durable bus. The payload must carry a status field and at least one domain field.",
	}, s.handlePublish)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "agentbus_pending",
		Description: "List human-in-the-loop requests awaiting a decision.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "agentbus_decide",
		Description: "Approve or reject a pending request. Each request is decided exactly once.",
	}, s.handleDecide)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "agentbus_replay",
		Description: "Republish historical events matching a filter, marked as replayed.",
	}, s.handleReplay)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "agentbus_health",
		Description: "Report bus availability, tool layer capability, and pending approval count.",
	}, s.handleHealth)
}
