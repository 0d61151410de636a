package cli

import (
	"github.com/spf13/cobra"

	"prizebot/internal/startup"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Write missing migration files and apply them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelected(cmd, startup.StepEnsureDirs, startup.StepWaitDB, startup.StepMakeMigrations, startup.StepMigrate)
	},
}

var (
	superuserName  string
	superuserEmail string
)

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create the admin superuser from DJANGO_SUPERUSER_* variables",
	Long: `Create the admin superuser. The password is only read from
DJANGO_SUPERUSER_PASSWORD. Unlike the run command, a failure here is
reported with a non-zero exit status.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if superuserName != "" {
			cfg.Superuser.Username = superuserName
		}
		if superuserEmail != "" {
			cfg.Superuser.Email = superuserEmail
		}
		return runSelected(cmd, startup.StepWaitDB, startup.StepCreateSuperuser)
	},
}

var collectStaticCmd = &cobra.Command{
	Use:   "collectstatic",
	Short: "Copy bundled static assets into STATIC_ROOT",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelected(cmd, startup.StepEnsureDirs, startup.StepCollectStatic)
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserName, "username", "", "superuser name (overrides DJANGO_SUPERUSER_USERNAME)")
	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "superuser email (overrides DJANGO_SUPERUSER_EMAIL)")
}

// runSelected runs the named steps strictly: nothing is skipped and every
// failure is returned.
func runSelected(cmd *cobra.Command, names ...string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	admin, err := newAdmin()
	if err != nil {
		return err
	}
	defer admin.Close()

	steps := admin.Select(names...)
	for i := range steps {
		steps[i].Skip = nil
		steps[i].IgnoreError = false
	}
	return runSteps(ctx, steps)
}
