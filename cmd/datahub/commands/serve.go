package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/datahub/internal/config"
	"github.com/dyluth/datahub/internal/httpapi"
	"github.com/dyluth/datahub/internal/logging"
	"github.com/dyluth/datahub/internal/printer"
	"github.com/dyluth/datahub/pkg/events"
	"github.com/dyluth/datahub/pkg/hub"
)

const (
	announceInterval = 10 * time.Second
	redisPingTimeout = 5 * time.Second
)

var (
	serveConfigPath string
	serveListen     string
	serveInstance   string
	serveRedisURL   string
	serveAdvertise  string
	serveLogLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a hub",
	Long: `Run a hub serving the HTTP API until interrupted.

Configuration is read from datahub.yml when present, then environment
variables (DATAHUB_LISTEN, DATAHUB_INSTANCE, REDIS_URL, DATAHUB_LOG_LEVEL,
DATAHUB_LOG_FORMAT), then flags.

With a Redis URL the hub publishes every write for 'datahub watch' and
announces its address so clients can find it without --hub.

On SIGINT/SIGTERM the hub stops accepting requests, wakes suspended
readers with CANCELLED and exits.

Examples:
  datahub serve
  datahub serve --listen :9000 --redis-url redis://localhost:6379`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", config.DefaultPath, "Path to configuration file")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVarP(&serveInstance, "instance", "n", "", "Instance name for Redis channels (overrides config)")
	serveCmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "Redis URL for write events (overrides config)")
	serveCmd.Flags().StringVar(&serveAdvertise, "advertise", "", "URL announced to clients (default derived from the listen address)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(serveConfigPath)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to load configuration",
			err.Error(),
			map[string]string{"Config": serveConfigPath},
			nil,
		)
	}
	cfg.ApplyEnv(os.Getenv)
	applyServeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": serveConfigPath},
			[]string{fmt.Sprintf("Fix %s or the overriding environment variables and flags", serveConfigPath)},
		)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format, "datahub")
	if err != nil {
		return printer.Error("invalid log settings", err.Error(), nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return printer.Error(
			"cannot listen",
			err.Error(),
			[]string{"Choose another address:\n  datahub serve --listen :9000"},
		)
	}

	if err := serveHub(ctx, cfg, l, serveAdvertise, logger); err != nil {
		return printer.ErrorWithContext(
			"hub stopped with an error",
			err.Error(),
			map[string]string{"Instance": cfg.Instance, "Listen": cfg.Listen},
			nil,
		)
	}
	return nil
}

func applyServeFlags(cmd *cobra.Command, cfg *config.HubConfig) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = serveListen
	}
	if flags.Changed("instance") {
		cfg.Instance = serveInstance
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = serveRedisURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
}

// serveHub runs the hub on l until ctx is cancelled. The HTTP server, the
// write-event publisher and the presence announcer run in one errgroup; the
// hub is closed when the group's context ends so suspended reads return.
func serveHub(ctx context.Context, cfg *config.HubConfig, l net.Listener, advertise string, logger *slog.Logger) error {
	g, gCtx := errgroup.WithContext(ctx)

	hubOpts := []hub.Option{
		hub.WithLogger(logger),
		hub.WithMaxKeyLength(cfg.MaxKeyLength),
		hub.WithMaxValueBytes(cfg.MaxValueBytes),
	}

	var pinger httpapi.Pinger
	if cfg.RedisURL != "" {
		ec, err := connectEvents(ctx, cfg)
		if err != nil {
			l.Close()
			return err
		}
		defer ec.Close()
		pinger = ec

		pub := events.NewPublisher(ec, events.DefaultQueueSize, logger)
		hubOpts = append(hubOpts, hub.WithWriteListener(pub))
		g.Go(func() error { return pub.Run(gCtx) })

		if advertise == "" {
			advertise = advertiseURL(l.Addr())
		}
		ann := events.NewAnnouncer(ec, advertise, announceInterval, logger)
		g.Go(func() error { return ann.Run(gCtx) })
	}

	h := hub.New(hubOpts...)
	srv := httpapi.NewServer(h, httpapi.Options{
		DefaultWait:   cfg.DefaultWait.Std(),
		MaxWait:       cfg.MaxWait.Std(),
		MaxValueBytes: cfg.MaxValueBytes,
		Events:        pinger,
		Logger:        logger,
	})

	logger.Info("hub starting",
		"instance", cfg.Instance,
		"listen", l.Addr().String(),
		"max_wait", cfg.MaxWait.Std(),
		"events", cfg.RedisURL != "")

	g.Go(func() error { return srv.Serve(gCtx, l) })
	g.Go(func() error {
		<-gCtx.Done()
		h.Close()
		return nil
	})

	err := g.Wait()
	logger.Info("hub stopped", "writes", h.Stats().Writes)
	return err
}

func connectEvents(ctx context.Context, cfg *config.HubConfig) (*events.Client, error) {
	ec, err := events.NewClientFromURL(cfg.RedisURL, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create events client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := ec.Ping(pingCtx); err != nil {
		ec.Close()
		return nil, fmt.Errorf("redis not accessible at %s: %w", cfg.RedisURL, err)
	}
	return ec, nil
}

// advertiseURL derives a reachable URL from the bound address, substituting
// the hostname for an unspecified IP.
func advertiseURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://" + addr.String()
	}

	host := tcp.IP.String()
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		if name, err := os.Hostname(); err == nil && name != "" {
			host = name
		} else {
			host = "localhost"
		}
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}
