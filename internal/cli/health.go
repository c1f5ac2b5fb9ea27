package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report runtime health",
	Long:  "Prints bus availability, tool layer capability, and the number of\nrequests awaiting a decision.",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	orch, log, err := openRuntime("")
	if err != nil {
		return err
	}
	defer log.Close()

	out, _ := json.MarshalIndent(orch.CheckHealth(), "", "  ")
	fmt.Println(string(out))
	return nil
}
