package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/event"
)

var (
	replayType        string
	replayCorrelation string
	replaySinceSeq    uint64
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayType, "type", "", "Only replay events of this type")
	replayCmd.Flags().StringVar(&replayCorrelation, "correlation-id", "", "Only replay events with this correlation id")
	replayCmd.Flags().Uint64Var(&replaySinceSeq, "since-seq", 0, "Only replay events after this sequence number")
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Republish historical events",
	Long:  "Reads matching events from the durable log and republishes them in\noriginal order, marked as replayed. Waiting decision loops ignore them.",
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	orch, log, err := openRuntime("")
	if err != nil {
		return err
	}
	defer log.Close()

	n, err := orch.ReplayHistory(bus.Filter{
		Type:          event.Type(replayType),
		CorrelationID: replayCorrelation,
		SinceSeq:      replaySinceSeq,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Replayed %d events\n", n)
	return nil
}
