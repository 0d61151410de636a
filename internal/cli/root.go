// Package cli holds the prizebot-admin commands. `run` is the container
// entrypoint; the other commands expose single steps for operators.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"prizebot/internal/config"
	"prizebot/internal/http/middleware"
	"prizebot/internal/logging"
	"prizebot/internal/readiness"
	"prizebot/internal/startup"
)

var (
	cfg       *config.AppConfig
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "prizebot-admin",
	Short: "Startup and admin server for the PrizeBot stack",
	Long: `prizebot-admin prepares the admin container and serves the admin site.

The run command waits for PostgreSQL, applies migrations, creates the
configured superuser, collects static files and then serves HTTP on
SERVER_BIND until it receives SIGINT or SIGTERM.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		logging.SetLevel(cfg.Log.Level)
		logging.SetOutputFormat(cfg.Log.Format)
		logging.SetOutputs("-")

		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format, json or text (overrides LOG_FORMAT)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createSuperuserCmd)
	rootCmd.AddCommand(collectStaticCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

var (
	metricsOnce      sync.Once
	metricsErr       error
	readinessMetrics *readiness.Metrics
	startupMetrics   *startup.Metrics
	httpMetrics      *middleware.PrometheusMiddleware
)

// registerMetrics registers every collector on the default registry, which
// /metrics exposes.
func registerMetrics() error {
	metricsOnce.Do(func() {
		var err error
		reg := prometheus.DefaultRegisterer
		if readinessMetrics, err = readiness.NewMetrics(reg); err != nil {
			metricsErr = multierror.Append(metricsErr, err)
		}
		if startupMetrics, err = startup.NewMetrics(reg); err != nil {
			metricsErr = multierror.Append(metricsErr, err)
		}
		if httpMetrics, err = middleware.NewPrometheusMiddleware(reg); err != nil {
			metricsErr = multierror.Append(metricsErr, err)
		}
	})
	return metricsErr
}

// newAdmin wires the startup steps for the loaded configuration.
func newAdmin() (*startup.Admin, error) {
	if err := registerMetrics(); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return startup.NewAdmin(cfg, readinessMetrics), nil
}

// runSteps executes steps and treats an interrupted run as a clean stop.
func runSteps(ctx context.Context, steps []startup.Step) error {
	seq := &startup.Sequencer{Steps: steps, Metrics: startupMetrics}
	err := seq.Run(ctx)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logging.Component("startup").Info("startup interrupted")
		return nil
	}
	return err
}
