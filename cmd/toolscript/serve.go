package main

import (
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolscript/httpapi"
	"github.com/jonwraymond/toolscript/mcpserver"
	"github.com/jonwraymond/toolscript/metrics"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		Long: `Serve MCP over stdio.

Expected to be executed via an AI agent, not by a human. Logs are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.newExecutor(nil)
			if err != nil {
				return err
			}
			server := mcpserver.New(e, mcpserver.Options{Version: version})
			logrus.WithField("tools", len(e.ListTools())).Info("serving MCP over stdio")
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
	return cmd
}

func newServeHTTPCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Serve the REST API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.cfg.HTTP.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}

			col := metrics.NewCollector()
			e, err := a.newExecutor(col)
			if err != nil {
				return err
			}
			server := httpapi.New(e, httpapi.Options{
				Logger:       logrus.StandardLogger(),
				AllowOrigins: a.cfg.HTTP.AllowOrigins,
				Metrics:      col,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to http.addr from the config)")
	return cmd
}
