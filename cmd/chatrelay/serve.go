package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/evanoh/chatrelay/internal/config"
	"github.com/evanoh/chatrelay/internal/gateway"
	"github.com/evanoh/chatrelay/internal/logger"
	"github.com/evanoh/chatrelay/internal/metrics"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	APIKey     string
	Port       int
	WorkerCmd  string
	WorkerPort int
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway: spawn the worker, wait until it is ready, then begin
serving POST /v1/chat/completions. The process exits non-zero if the
worker never reaches readiness, and zero on signal-driven shutdown.

Examples:
  chatrelay serve --api-key=sk-... --worker-cmd="llm-worker"
  chatrelay serve --config=config.toml --api-key=sk-... --port=3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(globalFlags, flags)
		},
	}

	cmd.Flags().StringVar(&flags.APIKey, "api-key", "", "credential passed to the worker at spawn (required)")
	cmd.Flags().IntVar(&flags.Port, "port", 0, "gateway listen port (overrides config)")
	cmd.Flags().StringVar(&flags.WorkerCmd, "worker-cmd", "", "worker command (overrides config)")
	cmd.Flags().IntVar(&flags.WorkerPort, "worker-port", 0, "worker loopback port (overrides config)")

	if err := cmd.MarkFlagRequired("api-key"); err != nil {
		panic(err)
	}
	return cmd
}

func runServe(globalFlags *GlobalFlags, flags *ServeFlags) error {
	cfg := config.Default()
	if globalFlags.ConfigPath != "" {
		loaded, err := config.Load(globalFlags.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.Port > 0 {
		cfg.Listen = fmt.Sprintf(":%d", flags.Port)
	}
	if flags.WorkerCmd != "" {
		cfg.Worker.Command = flags.WorkerCmd
	}
	if flags.WorkerPort > 0 {
		cfg.Worker.Port = flags.WorkerPort
	}
	if cfg.Worker.Command == "" {
		return fmt.Errorf("worker command required: set --worker-cmd or worker.command in the config")
	}

	logger.Setup(cfg.LogLevel)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	ctx, cancel := gateway.NotifyContext(context.Background())
	defer cancel()
	return gateway.New(cfg, flags.APIKey).Run(ctx)
}
