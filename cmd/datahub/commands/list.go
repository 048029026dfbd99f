package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/datahub/internal/listing"
	"github.com/dyluth/datahub/internal/printer"
)

var (
	listOutput  string
	listPattern string
	listReady   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the keys a hub has seen",
	Long: `List every key the hub has seen with its state, version, waiting
readers and the age of its last write.

Output Formats:
  default - Human-readable table
  json    - JSON array of key records

Examples:
  datahub list
  datahub list --pattern 'sensor.*' --ready
  datahub list --output json | jq -r '.[].key'`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "default", "Output format (default or json)")
	listCmd.Flags().StringVar(&listPattern, "pattern", "", "Only keys matching this glob")
	listCmd.Flags().BoolVar(&listReady, "ready", false, "Only keys that hold a value")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := listing.ParseOutputFormat(listOutput)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", listOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	filter := listing.Filter{Pattern: listPattern, ReadyOnly: listReady}
	if err := filter.Validate(); err != nil {
		return printer.Error("invalid pattern", err.Error(), nil)
	}

	c, addr, err := newHubClient(ctx)
	if err != nil {
		return err
	}

	if err := listing.ListKeys(ctx, c, addr, format, filter, os.Stdout); err != nil {
		return hubError(addr, err)
	}
	return nil
}
