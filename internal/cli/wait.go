package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"prizebot/internal/logging"
	"prizebot/internal/readiness"
)

var (
	waitInterval    time.Duration
	waitMaxAttempts int
	waitTimeout     time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until a dependency is ready",
}

var waitDBCmd = &cobra.Command{
	Use:   "db",
	Short: "Wait until PostgreSQL accepts connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := registerMetrics(); err != nil {
			return err
		}
		return waitFor(cmd, &readiness.PostgresProbe{Config: cfg.Database})
	},
}

var waitHTTPCmd = &cobra.Command{
	Use:   "http URL",
	Short: "Wait until URL answers with a 2xx or 3xx status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := registerMetrics(); err != nil {
			return err
		}
		return waitFor(cmd, readiness.NewHTTPProbe(args[0]))
	},
}

func init() {
	for _, c := range []*cobra.Command{waitDBCmd, waitHTTPCmd} {
		c.Flags().DurationVar(&waitInterval, "interval", 0, "delay between attempts (default DB_WAIT_INTERVAL)")
		c.Flags().IntVar(&waitMaxAttempts, "max-attempts", -1, "give up after this many attempts, 0 waits forever (default DB_WAIT_MAX_ATTEMPTS)")
		c.Flags().DurationVar(&waitTimeout, "probe-timeout", 0, "timeout of a single attempt (default DB_WAIT_PROBE_TIMEOUT)")
		waitCmd.AddCommand(c)
	}
}

func waitFor(cmd *cobra.Command, probe readiness.Probe) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	p := &readiness.Poller{
		Interval:     cfg.Wait.Interval,
		ProbeTimeout: cfg.Wait.ProbeTimeout,
		MaxAttempts:  cfg.Wait.MaxAttempts,
		Metrics:      readinessMetrics,
	}
	if waitInterval > 0 {
		p.Interval = waitInterval
	}
	if waitTimeout > 0 {
		p.ProbeTimeout = waitTimeout
	}
	if waitMaxAttempts >= 0 {
		p.MaxAttempts = waitMaxAttempts
	}

	log := logging.Component("readiness").WithField("probe", probe.Name())
	attempts, err := p.Wait(ctx, probe)
	if err != nil {
		// A stop signal ends the wait the same way it ends run.
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			log.Info("wait interrupted")
			return nil
		}
		return err
	}
	log.WithField("attempts", attempts).Info("dependency ready")
	return nil
}
