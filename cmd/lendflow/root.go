package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/lendflow/internal/cli"
	"github.com/aretw0/lendflow/internal/config"
	"github.com/aretw0/lendflow/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lendflow",
	Short: "Lendflow runs personal loan intake conversations",
	Long: `Lendflow guides a customer from the first message to a sanction letter:
engagement, needs assessment, verification, underwriting and sanction.

Configuration is read from LENDFLOW_* environment variables and an optional .env file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().String("rules", "", "Rule configuration file (YAML or JSON); overrides LENDFLOW_RULES")
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, false, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		cfg.LogLevel = "debug"
	}
	if path, _ := cmd.Flags().GetString("rules"); path != "" {
		cfg.RulesPath = path
	}
	return cfg, debug, nil
}

type runtimeOptions struct {
	// quietLogs discards logs unless --debug is set, keeping the terminal for the conversation.
	quietLogs bool
	metrics   bool
}

func loadRuntime(ctx context.Context, cmd *cobra.Command, opts runtimeOptions) (*cli.Runtime, *config.Config, *slog.Logger, error) {
	cfg, debug, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cfg.Logger()
	if opts.quietLogs && !debug {
		logger = logging.NewNop()
	}

	build := cli.BuildOptions{Debug: debug}
	if opts.metrics {
		build.Registry = prometheus.NewRegistry()
	}
	rt, err := cli.BuildEngine(ctx, cfg, logger, build)
	if err != nil {
		return nil, nil, nil, err
	}
	return rt, cfg, logger, nil
}
