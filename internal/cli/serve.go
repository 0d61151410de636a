package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"prizebot/internal/http/handler"
	"prizebot/internal/otel"
	"prizebot/internal/server"
	"prizebot/internal/startup"
	"prizebot/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin site without running migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		shutdown, err := otel.Init(ctx)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())

		admin, err := newAdmin()
		if err != nil {
			return err
		}
		defer admin.Close()

		if err := runSteps(ctx, admin.Select(startup.StepEnsureDirs, startup.StepWaitDB)); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		return serveAdmin(ctx, admin)
	},
}

// serveAdmin runs the HTTP server on the database opened by wait-db until ctx
// is cancelled.
func serveAdmin(ctx context.Context, admin *startup.Admin) error {
	if admin.DB == nil {
		return fmt.Errorf("serve: database is not open")
	}
	media, err := storage.New(cfg)
	if err != nil {
		return fmt.Errorf("open media storage: %w", err)
	}

	srv := server.New(cfg, server.Options{
		Deps: handler.Deps{
			DB:         admin.DB,
			Media:      media,
			StaticRoot: cfg.Paths.StaticRoot,
			Metrics:    promhttp.Handler(),
		},
		HTTPMetrics: httpMetrics,
	})
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
