package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/event"
	"github.com/ppiankov/agentbus/internal/publish"
)

var (
	publishAgent       string
	publishCorrelation string
)

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishAgent, "agent", "", "Agent identity to stamp on the event (default from config)")
	publishCmd.Flags().StringVar(&publishCorrelation, "correlation-id", "", "Correlation id linking related events")
}

var publishCmd = &cobra.Command{
	Use:   "publish <type> <payload-json>",
	Short: "Publish an event to the bus",
	Long:  "Appends one event to the durable log. The payload must be a JSON object\nwith a status field and at least one domain field.",
	Args:  cobra.ExactArgs(2),
	RunE:  runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var payload event.Payload
	if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
		return fmt.Errorf("payload must be a JSON object: %w", err)
	}

	log, err := bus.Open(cfg.Bus.Path)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer log.Close()

	agent := publishAgent
	if agent == "" {
		agent = cfg.AgentID
	}

	var opts []publish.Option
	if publishCorrelation != "" {
		opts = append(opts, publish.WithCorrelationID(publishCorrelation))
	}

	pub := publish.NewPublisher(agent, log, nil)
	id, err := pub.Publish(event.Type(args[0]), payload, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Published %s\n", id)
	return nil
}
