package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"SLRAutomation/internal/app"
	"SLRAutomation/internal/config"
	"SLRAutomation/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "slrautomation",
		Short:         "Systematic literature review assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `slrautomation turns a research topic into research questions,
boolean search queries and matching Cochrane reviews.

"run" drives a topic through the three stage services; "serve" hosts them.`,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults to $SLR_CONFIG)")

	load := func() config.Config {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.Load()
	}

	root.AddCommand(runCmd(load))
	root.AddCommand(serveCmd(load))
	return root
}

func runCmd(load func() config.Config) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Generate questions, queries and Cochrane records for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if baseURL != "" {
				cfg.Pipeline.BaseURL = baseURL
			}
			logger := logging.New(cfg.Logging.Level)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application := app.New(cfg, logger, cmd.OutOrStdout())
			_, err := application.Run(ctx, strings.Join(args, " "))
			return err
		},
	}

	cmd.Flags().StringVar(&baseURL, "api", "", "base URL of the stage services (overrides config)")
	return cmd
}

func serveCmd(load func() config.Config) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question, query and scraping endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := load()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := logging.New(cfg.Logging.Level)

			backend, err := app.NewBackend(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return backend.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
