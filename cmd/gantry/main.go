// Command gantry serves a middleware chain on one of the registered
// adapter backends.
//
//	gantry serve [--config f] [--adapter id] [--host h] [--port p] [--watch]
//	gantry adapters
//	gantry token --secret s --session id
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/gantry/pkg/adapter"
	"github.com/rhuss/gantry/pkg/app"
	"github.com/rhuss/gantry/pkg/config"
	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/middleware"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gantry",
		Short:         "Request dispatch and middleware pipeline server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newAdaptersCmd(), newTokenCmd())
	return root
}

// serveFlags are the command line overrides applied on top of the config.
type serveFlags struct {
	config  string
	adapter string
	host    string
	port    int
	watch   bool
}

func (f *serveFlags) apply(cfg *config.Config) {
	if f.adapter != "" {
		cfg.Server.Adapter = f.adapter
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the server on the configured adapter.

Configuration is read from --config, $GANTRY_CONFIG, ./gantry.yaml or
/etc/gantry/gantry.yaml, then overridden by GANTRY_* variables and flags.
With --watch the server restarts whenever the config file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "path to configuration file (YAML)")
	cmd.Flags().StringVarP(&flags.adapter, "adapter", "a", "", "adapter backend id (see 'gantry adapters')")
	cmd.Flags().StringVar(&flags.host, "host", "", "listen host")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "listen port")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "restart when the config file changes")
	return cmd
}

func runServe(ctx context.Context, flags *serveFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := &app.Supervisor{
		ConfigPath: flags.config,
		Override:   flags.apply,
	}
	cfg, err := sup.Load()
	if err != nil {
		return err
	}
	sup.Logger = debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	if path := config.Path(flags.config); path != "" {
		sup.Logger.Info("configuration loaded", "path", path)
	}

	return sup.Run(ctx, flags.watch)
}

func newAdaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the registered adapter backends and their aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listAdapters(cmd.OutOrStdout(), adapter.Default())
		},
	}
}

func listAdapters(w io.Writer, reg *adapter.Registry) error {
	aliases := reg.Aliases()
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var others []string
		for _, id := range aliases[name] {
			if id != name {
				others = append(others, id)
			}
		}
		line := name
		if len(others) > 0 {
			line += " (" + strings.Join(others, ", ") + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func newTokenCmd() *cobra.Command {
	var secret, sessionID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the CSRF token for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), middleware.Token(secret, sessionID))
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "CSRF secret")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	return cmd
}
