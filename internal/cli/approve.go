package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agentbus/internal/hitl"
)

var approveDecider string

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().StringVar(&approveDecider, "decider", "cli", "Identity of the human deciding")
}

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending request",
	Long:  "Records the approval in the request store and announces it on the bus.\nA waiting orchestrator picks up the decision within its poll interval.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	orch, log, err := openRuntime("cli")
	if err != nil {
		return err
	}
	defer log.Close()

	if err := orch.Decide(args[0], hitl.DecisionApproved, approveDecider); err != nil {
		return err
	}
	fmt.Printf("Approved %q\n", args[0])
	return nil
}
