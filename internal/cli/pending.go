package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/hitl"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List requests awaiting a decision",
	Long:  "Shows all pending approval requests with their reason and timestamps.\nEscalated requests are marked but remain decidable.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := hitl.NewStore(cfg.HITL.Dir)
	if err != nil {
		return fmt.Errorf("failed to open request store: %w", err)
	}

	list, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}

	shown := 0
	for _, r := range list {
		if r.Decision != hitl.DecisionPending {
			continue
		}
		if shown == 0 {
			fmt.Printf("%-42s %-10s %-40s %s\n", "REQUEST", "ESCALATED", "REASON", "REQUESTED")
		}
		escalated := "-"
		if r.Escalated {
			escalated = "yes"
		}
		fmt.Printf("%-42s %-10s %-40s %s\n",
			r.ID,
			escalated,
			truncate(r.Reason, 40),
			r.RequestedAt.Format("15:04:05"),
		)
		shown++
	}

	if shown == 0 {
		fmt.Println("No pending requests.")
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
