package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/datahub/internal/printer"
	"github.com/dyluth/datahub/internal/timespec"
	"github.com/dyluth/datahub/pkg/hub"
	"github.com/dyluth/datahub/pkg/wire"
)

var (
	getTimeout string
	getAfter   uint64
	getOutput  string
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Read a value, waiting for it if needed",
	Long: `Read KEY. If it has never been written, wait up to --timeout for a
writer to supply it.

With --after N, wait for a value newer than version N instead (used to
follow a key that changes).

Exit status is 0 when a value was read and 2 when the read timed out.

Output Formats:
  default - the value followed by a newline
  raw     - the value bytes exactly
  json    - the hub's JSON response

Examples:
  datahub get Y_Data --timeout 60
  datahub get Y_Data --timeout 1m30s --output json
  datahub get counter --after 4`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getTimeout, "timeout", "t", "30s", "How long to wait: seconds (60, 1.5) or a duration (1m30s); 0 = don't wait")
	getCmd.Flags().Uint64Var(&getAfter, "after", 0, "Wait for a version newer than this")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "default", "Output format: default, raw or json")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	timeout, err := timespec.ParseTimeout(getTimeout)
	if err != nil {
		return printer.Error(
			"invalid timeout",
			err.Error(),
			[]string{"Use seconds or a Go duration:\n  --timeout 60\n  --timeout 1m30s"},
		)
	}

	switch getOutput {
	case "default", "raw", "json":
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", getOutput),
			[]string{"Valid formats: default, raw, json"},
		)
	}

	c, addr, err := newHubClient(ctx)
	if err != nil {
		return err
	}

	var res hub.Result
	if cmd.Flags().Changed("after") {
		res, err = c.WaitNewer(ctx, args[0], getAfter, timeout)
	} else {
		res, err = c.ReadOrWait(ctx, args[0], timeout)
	}
	if err != nil {
		return hubError(addr, err)
	}

	if err := writeResult(os.Stdout, res, getOutput); err != nil {
		return err
	}
	return resultError(res, timeout)
}

// writeResult prints res in the given format. Non-READY results print
// nothing except in json format.
func writeResult(w io.Writer, res hub.Result, format string) error {
	switch format {
	case "json":
		data, err := json.Marshal(wire.NewReadResponse(res))
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "raw":
		if res.Ready() {
			_, err := w.Write(res.Value)
			return err
		}
	default:
		if res.Ready() {
			_, err := fmt.Fprintf(w, "%s\n", res.Value)
			return err
		}
	}
	return nil
}

// resultError maps a non-READY result to an exit error.
func resultError(res hub.Result, timeout time.Duration) error {
	switch res.Status {
	case hub.StatusReady:
		return nil
	case hub.StatusTimeout:
		printer.Warning("no value for %s within %s\n", res.Key, timeout)
		return &ExitError{Code: 2, Err: fmt.Errorf("timed out waiting for %s", res.Key)}
	default:
		return &ExitError{Code: 1, Err: fmt.Errorf("read of %s ended: %s", res.Key, res.Status)}
	}
}
