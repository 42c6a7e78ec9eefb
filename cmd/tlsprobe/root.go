package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/config"
	"github.com/mel2oo/tlsprobe/logging"
	"github.com/mel2oo/tlsprobe/mempool"
	"github.com/mel2oo/tlsprobe/probe"
)

// State shared by every subcommand, filled in before any of them runs.
type app struct {
	envFiles    []string
	development bool
	logLevel    string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "tlsprobe",
		Short:        "Shows what a TLS client offers in its ClientHello",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, ".env files to load (default .env)")
	flags.BoolVar(&a.development, "development", false, "human-readable debug logging")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(a),
		newListenCommand(a),
		newPcapCommand(a),
		newSendCommand(a),
	)
	return root
}

// Loads configuration, lets flags override it, and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("development") {
		cfg.Development = a.development
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Development: cfg.Development, Level: level})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) newProber() (*probe.Prober, error) {
	pool, err := mempool.MakeBufferPool(a.cfg.PoolSize_bytes, a.cfg.PoolChunkSize_bytes)
	if err != nil {
		return nil, err
	}
	return probe.NewProber(pool,
		probe.WithReadTimeout(a.cfg.ReadTimeout),
		probe.WithMaxBufferedBytes(a.cfg.MaxBufferedBytes),
		probe.WithMaxHandshakeLength(a.cfg.MaxHandshakeLength),
		probe.WithLogger(a.logger),
	), nil
}

// Context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
