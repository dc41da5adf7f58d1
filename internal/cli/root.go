// Package cli implements docsyncctl, a command line client that drives the
// repositories in-process against the configured backends.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/docsync/internal/api"
	"github.com/example/docsync/internal/app"
	"github.com/example/docsync/internal/config"
	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/logging"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Env is everything a command needs to reach the repositories.
type Env struct {
	Config    *config.Config
	Registry  *api.Registry
	Scheduler core.Scheduler
	Logger    *zap.Logger
	close     func()
}

// Close stops the scheduler and releases backend connections.
func (e *Env) Close() {
	if e != nil && e.close != nil {
		e.close()
	}
}

// EnvFactory builds the Env once flags are parsed.
type EnvFactory func(ctx context.Context, opts *RootOptions) (*Env, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string
	Timeout time.Duration
	Verbose bool
}

// NewRootCommand creates the docsyncctl root command. A nil factory uses
// DefaultEnv.
func NewRootCommand(factory EnvFactory) *cobra.Command {
	if factory == nil {
		factory = DefaultEnv
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docsyncctl",
		Short: "Fetch, query, watch and mutate docsync model types",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for one-shot commands")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewListCommand(opts, factory))
	cmd.AddCommand(NewGetCommand(opts, factory))
	cmd.AddCommand(NewQueryCommand(opts, factory))
	cmd.AddCommand(NewWatchCommand(opts, factory))
	cmd.AddCommand(NewCreateCommand(opts, factory))
	cmd.AddCommand(NewDeleteCommand(opts, factory))
	cmd.AddCommand(NewEventsCommand(opts, factory))

	return cmd
}

// DefaultEnv loads configuration from the environment and opens the
// configured backends. Metrics are not collected by the CLI.
func DefaultEnv(ctx context.Context, opts *RootOptions) (*Env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	} else if level == "" {
		level = "warn"
	}
	logger, err := logging.New(cfg.IsRelease(), level)
	if err != nil {
		return nil, err
	}

	clients, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	hooks, err := app.BuildHooks(ctx, cfg, nil, logger)
	if err != nil {
		clients.Close()
		return nil, err
	}
	descs, err := app.Descriptors(cfg)
	if err != nil {
		hooks.Close()
		clients.Close()
		return nil, err
	}

	dispatcher := core.NewDispatcher(logger)
	registry, err := app.BuildRegistry(clients.Backends, dispatcher, descs, hooks, logger)
	if err != nil {
		dispatcher.Close()
		hooks.Close()
		clients.Close()
		return nil, err
	}

	return &Env{
		Config:    cfg,
		Registry:  registry,
		Scheduler: dispatcher,
		Logger:    logger,
		close: func() {
			dispatcher.Close()
			hooks.Close()
			clients.Close()
			_ = logger.Sync()
		},
	}, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
