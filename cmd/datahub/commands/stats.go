package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/datahub/internal/printer"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show hub counters",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, addr, err := newHubClient(ctx)
	if err != nil {
		return err
	}

	st, err := c.Stats(ctx)
	if err != nil {
		return hubError(addr, err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Printf("Hub %s\n\n", addr)
	printer.Printf("  %-10s %d\n", "keys", st.Keys)
	printer.Printf("  %-10s %d\n", "waiters", st.Waiters)
	printer.Printf("  %-10s %d\n", "writes", st.Writes)
	printer.Printf("  %-10s %d\n", "reads", st.Reads)
	printer.Printf("  %-10s %d\n", "timeouts", st.Timeouts)
	printer.Printf("  %-10s %d\n", "cancelled", st.Cancelled)
	return nil
}
