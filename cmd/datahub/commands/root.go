package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	hubAddrFlag  string
	clientIDFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datahub",
	Short: "datahub - hand named values between processes",
	Long: `datahub is a central hub through which independent processes exchange
named values. A reader asks for a key and blocks, without polling, until a
writer supplies it or the read times out.

Run 'datahub serve' to start a hub, then use put/get from any process.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Cobra's own error and usage printing is
// silenced; commands report errors through the printer package.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit code: 2 for a read that
// timed out, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hubAddrFlag, "hub", "", "Hub URL (default $DATAHUB_ADDR, then Redis presence, then "+defaultHubAddr+")")
	rootCmd.PersistentFlags().StringVar(&clientIDFlag, "client-id", "", "Name sent to the hub as X-Client-ID (default $DATAHUB_CLIENT_ID)")
}
