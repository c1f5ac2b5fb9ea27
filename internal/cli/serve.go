package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agentbus/internal/alert"
	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/hitl"
	"github.com/ppiankov/agentbus/internal/orchestrator"
	"github.com/ppiankov/agentbus/internal/publish"
	"github.com/ppiankov/agentbus/internal/tool"
	"github.com/ppiankov/agentbus/internal/trace"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordination daemon",
	Long:  "Opens the event log, connects the tool layer, and routes events to agents\nper the routing table. Supports hot-reload of routing from the config file.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := bus.Open(cfg.Bus.Path)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer log.Close()

	store, err := hitl.NewStore(cfg.HITL.Dir)
	if err != nil {
		return fmt.Errorf("failed to create hitl store: %w", err)
	}

	exporter, err := trace.NewFileExporter(cfg.Trace.Path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	collector := trace.NewCollector(trace.Config{
		SampleRate:    cfg.Trace.SampleRate,
		BatchSize:     cfg.Trace.BatchSize,
		FlushInterval: cfg.Trace.FlushInterval.Std(),
	}, exporter)
	defer collector.Close()

	var remote tool.RemoteClient
	if len(cfg.Tools.ServerCommand) > 0 {
		remote = tool.NewMCPClient(cfg.Tools.ServerCommand)
	}
	layer := tool.NewLayer(remote, tool.NewRegistry(), tool.Config{
		CircuitThreshold: cfg.Tools.CircuitThreshold,
		CallTimeout:      cfg.Tools.CallTimeout.Std(),
	})
	defer layer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !layer.Initialize(ctx) {
		fmt.Fprintln(os.Stderr, "tool layer degraded, continuing with local handlers")
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Log:          log,
		Publisher:    publish.NewPublisher(cfg.AgentID, log, collector),
		Store:        store,
		Layer:        layer,
		Collector:    collector,
		Alerts:       alert.NewDispatcher(cfg.Alerts),
		Routing:      cfg.Routing,
		PollInterval: cfg.HITL.PollInterval.Std(),
		WaitTimeout:  cfg.HITL.WaitTimeout.Std(),
	})
	if err != nil {
		return err
	}

	// Hot-reload routing when the config file changes
	reloader, err := orchestrator.NewReloader(orch, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}
	if reloader != nil {
		go reloader.Run(ctx)
	}

	orch.Start()
	defer orch.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintf(os.Stderr, "agentbus daemon running (bus: %s, tools: %s)\n", cfg.Bus.Path, layer.Status())
	<-sigCh
	fmt.Fprintln(os.Stderr, "\nShutting down...")
	return nil
}
