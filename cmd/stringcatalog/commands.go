package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/string-catalog/internal/filter"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/mcp"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
	"github.com/rzpsarthak13/string-catalog/internal/server"
	"github.com/rzpsarthak13/string-catalog/pkg/stringcatalog"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "stringcatalog",
		Short: "Analyze, catalog and search strings",
		Long: `stringcatalog stores strings together with derived properties (length,
palindrome flag, word count, unique characters, SHA-256 hash, character
frequencies) and retrieves them by exact value, structured filters or plain
English.

Examples:
  stringcatalog serve --config catalog.yaml
  stringcatalog mcp
  stringcatalog analyze "never odd or even"
  stringcatalog translate "palindromic strings longer than 5"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or JSON config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newAnalyzeCmd(),
		newTranslateCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := stringcatalog.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := stringcatalog.NewClient(ctx, cfg,
				stringcatalog.WithLogger(log),
				stringcatalog.WithMetrics(m),
			)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					log.Error().Err(err).Msg("closing catalog")
				}
			}()

			if err := client.Start(ctx); err != nil {
				return err
			}

			srv := newHTTPServer(client, cfg, log, m, reg)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("signal received")
			// The signal context is already done; shutdown gets a fresh one.
			return srv.Shutdown(context.Background())
		},
	}
}

func newHTTPServer(client stringcatalog.Client, cfg *stringcatalog.Config, log zerolog.Logger, m *metrics.Metrics, reg *prometheus.Registry) *server.Server {
	return server.New(client, cfg.Server, log, server.WithMetrics(m, reg))
}

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose the catalog as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := stringcatalog.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			log := logger.New(logger.Config{Level: cfg.Log.Level, Output: os.Stderr})

			client, err := stringcatalog.NewClient(cmd.Context(), cfg, stringcatalog.WithLogger(log))
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Start(cmd.Context()); err != nil {
				return err
			}
			return errors.Wrap(mcp.ServeStdio(mcp.NewServer(client, version)), "mcp server")
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <value>",
		Short: "Print the properties derived from a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), properties.Extract(args[0]))
		},
	}
}

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <text>",
		Short: "Print the filter a natural-language query is understood as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter.NewTranslator().Translate(args[0])
			return printJSON(cmd.OutOrStdout(), stringcatalog.InterpretedQuery{
				Original:      args[0],
				ParsedFilters: f,
			})
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
