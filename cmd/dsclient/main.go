package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/angariumd/dsclient/internal/agent"
	"github.com/angariumd/dsclient/internal/auth"
	"github.com/angariumd/dsclient/internal/config"
	"github.com/angariumd/dsclient/internal/logutil"
	"github.com/angariumd/dsclient/internal/scheduler"
	"github.com/angariumd/dsclient/internal/transport"
)

type options struct {
	configPath  string
	algorithm   string
	host        string
	port        int
	user        string
	catalogPath string
	dialTimeout time.Duration
	readTimeout time.Duration
	dialRetries int
	verbose     bool
}

func main() {
	var opts options
	rootCmd := &cobra.Command{
		Use:           "dsclient",
		Short:         "Schedule jobs from a ds-sim server onto its simulated servers",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Client config file (.yaml or .toml)")
	flags.StringVarP(&opts.algorithm, "algorithm", "a", "", "Scheduling algorithm: ff, bf or wf (default largest-first)")
	flags.StringVar(&opts.host, "host", config.DefaultHost, "Server host")
	flags.IntVarP(&opts.port, "port", "p", config.DefaultPort, "Server port")
	flags.StringVarP(&opts.user, "user", "u", "", "User name sent with AUTH (default current user)")
	flags.StringVar(&opts.catalogPath, "catalog", config.DefaultCatalogPath, "System description written by the server")
	flags.DurationVar(&opts.dialTimeout, "dial-timeout", config.DefaultDialTimeout, "Timeout for each connection attempt")
	flags.DurationVar(&opts.readTimeout, "read-timeout", 0, "Timeout for each server reply, 0 waits forever")
	flags.IntVar(&opts.dialRetries, "dial-retries", 0, "Extra connection attempts before giving up")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every protocol line")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dsclient:", err)
		os.Exit(1)
	}
}

// applyFlags overrides file settings with the flags given on the command
// line.
func applyFlags(cfg *config.ClientConfig, flags *pflag.FlagSet, opts options) {
	if flags.Changed("algorithm") {
		cfg.Algorithm = opts.algorithm
	}
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("user") {
		cfg.User = opts.user
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath = opts.catalogPath
	}
	if flags.Changed("dial-timeout") {
		cfg.DialTimeout = opts.dialTimeout
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout = opts.readTimeout
	}
	if flags.Changed("dial-retries") {
		cfg.DialRetries = opts.dialRetries
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.User == "" {
		cfg.User = auth.DefaultUser()
	}
}

func run(flags *pflag.FlagSet, opts options) error {
	cfg, err := config.LoadClientConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, flags, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// An unknown algorithm is rejected before any connection is made.
	policy, err := scheduler.New(cfg.Algorithm)
	if err != nil {
		return err
	}

	if err := logutil.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer log.L().Sync()
	logger := log.L().With(zap.String("session-id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, cfg.Addr(), transport.DialOptions{
		Timeout:       cfg.DialTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		Retries:       cfg.DialRetries,
		RetryInterval: cfg.RetryInterval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	logger.Info("connected", zap.String("addr", cfg.Addr()), zap.String("algorithm", policy.Name()))

	if err := agent.NewAgent(conn, policy, cfg.User, cfg.CatalogPath, logger).Run(ctx); err != nil {
		logger.Error("session failed", zap.Error(err))
		return err
	}
	return nil
}
