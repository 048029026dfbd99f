package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/datahub/internal/printer"
	"github.com/dyluth/datahub/internal/watch"
	"github.com/dyluth/datahub/pkg/events"
)

var (
	watchRedisURL string
	watchInstance string
	watchOutput   string
)

var watchCmd = &cobra.Command{
	Use:   "watch [KEY...]",
	Short: "Stream writes as they happen",
	Long: `Stream every write the hub completes, or only writes to the given keys.

Writes are fanned out through Redis, so the hub must be running with a
redis_url and watch must reach the same Redis.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  datahub watch --redis-url redis://localhost:6379
  datahub watch X_Data Y_Data
  datahub watch --output=json > writes.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "", "Redis URL (default $REDIS_URL)")
	watchCmd.Flags().StringVarP(&watchInstance, "instance", "n", "", "Hub instance name (default $DATAHUB_INSTANCE or \"default\")")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var format watch.OutputFormat
	switch watchOutput {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	redisURL := firstNonEmpty(watchRedisURL, os.Getenv("REDIS_URL"))
	if redisURL == "" {
		return printer.Error(
			"no Redis configured",
			"watch reads write events from the Redis the hub publishes to.",
			[]string{"Pass it explicitly:\n  datahub watch --redis-url redis://localhost:6379"},
		)
	}
	instance := firstNonEmpty(watchInstance, os.Getenv("DATAHUB_INSTANCE"), defaultInstance)

	ec, err := events.NewClientFromURL(redisURL, instance)
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), nil)
	}
	defer ec.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ec.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Error": err.Error()},
			nil,
		)
	}

	sub, err := ec.SubscribeWrites(ctx, args...)
	if err != nil {
		return printer.Error("subscription failed", err.Error(), nil)
	}
	defer sub.Close()

	if format == watch.OutputFormatDefault {
		printer.Step("watching writes on instance '%s' (Ctrl+C to stop)\n", instance)
	}
	return watch.StreamWrites(ctx, sub, format, os.Stdout, os.Stderr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
