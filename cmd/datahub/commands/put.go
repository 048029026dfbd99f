package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/datahub/internal/printer"
)

var putQuiet bool

var putCmd = &cobra.Command{
	Use:   "put KEY [VALUE]",
	Short: "Write a value",
	Long: `Write VALUE under KEY, waking every reader waiting for it.

The previous value, if any, is replaced. With no VALUE, or VALUE "-", the
value is read from stdin.

Examples:
  datahub put X_Data 50
  date | datahub put last_run -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

func init() {
	putCmd.Flags().BoolVarP(&putQuiet, "quiet", "q", false, "Print nothing on success")
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var value []byte
	if len(args) == 2 && args[1] != "-" {
		value = []byte(args[1])
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read value from stdin: %w", err)
		}
		value = data
	}

	c, addr, err := newHubClient(ctx)
	if err != nil {
		return err
	}

	ack, err := c.Write(ctx, args[0], value)
	if err != nil {
		return hubError(addr, err)
	}

	if !putQuiet {
		printer.Success("%s = version %d (woke %d)\n", ack.Key, ack.Version, ack.Notified)
	}
	return nil
}
