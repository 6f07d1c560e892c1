package main

import (
	"github.com/aretw0/lendflow"
	"github.com/aretw0/lendflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the conversation API over HTTP, with server-sent events for conversation
changes and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, cfg, logger, err := loadRuntime(ctx, cmd, runtimeOptions{metrics: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := cfg.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		err = cli.Serve(ctx, rt, logger, cli.ServeOptions{
			Addr:            addr,
			Version:         lendflow.Version,
			ShutdownTimeout: cfg.ShutdownTimeout,
		})
		if sig := ctx.Signal(); sig != nil {
			logger.Info("HTTP server stopped", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on; overrides LENDFLOW_ADDR")
}
