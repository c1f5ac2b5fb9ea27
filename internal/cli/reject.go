package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agentbus/internal/hitl"
)

var rejectDecider string

func init() {
	rootCmd.AddCommand(rejectCmd)
	rejectCmd.Flags().StringVar(&rejectDecider, "decider", "cli", "Identity of the human deciding")
}

var rejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a pending request",
	Long:  "Records the rejection in the request store and announces it on the bus.\nRejection is terminal: the request cannot be re-decided.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

func runReject(cmd *cobra.Command, args []string) error {
	orch, log, err := openRuntime("cli")
	if err != nil {
		return err
	}
	defer log.Close()

	if err := orch.Decide(args[0], hitl.DecisionRejected, rejectDecider); err != nil {
		return err
	}
	fmt.Printf("Rejected %q\n", args[0])
	return nil
}
