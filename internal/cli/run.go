package cli

import (
	"context"

	"github.com/spf13/cobra"

	"prizebot/internal/logging"
	"prizebot/internal/otel"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the startup sequence, then serve the admin site",
	Long: `Run executes, in order: ensure-dirs, bootstrap-project, wait-db,
make-migrations, migrate, create-superuser, collect-static. The database
wait retries until PostgreSQL accepts connections. A failing step other than
create-superuser stops the command with a non-zero exit status.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
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

	if err := runSteps(ctx, admin.Steps()); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	logging.Component("startup").WithField(logging.EventFieldKey, "startup_complete").Info("startup finished, handing off to server")
	return serveAdmin(ctx, admin)
}
