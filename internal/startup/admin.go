package startup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prizebot/internal/config"
	"prizebot/internal/database"
	"prizebot/internal/database/migration"
	"prizebot/internal/layout"
	"prizebot/internal/logging"
	"prizebot/internal/readiness"
	"prizebot/internal/repository/postgres"
	"prizebot/internal/service"
	"prizebot/internal/staticfiles"
)

// Step names, in execution order.
const (
	StepEnsureDirs      = "ensure-dirs"
	StepBootstrap       = "bootstrap-project"
	StepWaitDB          = "wait-db"
	StepMakeMigrations  = "make-migrations"
	StepMigrate         = "migrate"
	StepCreateSuperuser = "create-superuser"
	StepCollectStatic   = "collect-static"
)

// Admin holds what the admin container's steps need. Zero-valued hooks fall
// back to the real implementations.
type Admin struct {
	Config *config.AppConfig
	Poller *readiness.Poller
	Probe  readiness.Probe

	OpenDB     func(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error)
	Migrate    func(ctx context.Context, db *sql.DB, dir, dbHost string) error
	Superusers func(db *sql.DB) service.SuperuserService
	Now        func() time.Time

	// DB is opened by the wait-db step and used by the steps after it.
	DB *sql.DB
}

// NewAdmin wires the steps to the real database, poller and services.
func NewAdmin(cfg *config.AppConfig, metrics *readiness.Metrics) *Admin {
	return &Admin{
		Config: cfg,
		Poller: &readiness.Poller{
			Interval:     cfg.Wait.Interval,
			ProbeTimeout: cfg.Wait.ProbeTimeout,
			MaxAttempts:  cfg.Wait.MaxAttempts,
			Metrics:      metrics,
		},
		Probe: &readiness.PostgresProbe{Config: cfg.Database},
	}
}

func (a *Admin) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Steps returns the full admin startup sequence.
func (a *Admin) Steps() []Step {
	paths := a.Config.Paths
	return []Step{
		{
			Name: StepEnsureDirs,
			Run: func(ctx context.Context) error {
				return layout.EnsureDirs(paths)
			},
		},
		{
			Name: StepBootstrap,
			Run: func(ctx context.Context) error {
				created, err := layout.BootstrapProject(paths, a.now())
				if err != nil {
					return err
				}
				logging.Component("startup").WithField("created", created).Debug("project manifest checked")
				return nil
			},
		},
		{
			Name: StepWaitDB,
			Run:  a.waitDB,
		},
		{
			Name: StepMakeMigrations,
			Run: func(ctx context.Context) error {
				_, err := migration.Generate(paths.MigrationsDir())
				return err
			},
		},
		{
			Name: StepMigrate,
			Run: func(ctx context.Context) error {
				migrate := a.Migrate
				if migrate == nil {
					migrate = migration.Apply
				}
				return migrate(ctx, a.DB, paths.MigrationsDir(), a.Config.Database.Host)
			},
		},
		{
			Name:        StepCreateSuperuser,
			Skip:        func() bool { return !a.Config.Superuser.Enabled() },
			IgnoreError: true,
			Run:         a.createSuperuser,
		},
		{
			Name: StepCollectStatic,
			Run: func(ctx context.Context) error {
				res, err := staticfiles.Collect(staticfiles.Assets(), paths.StaticRoot)
				if err != nil {
					return err
				}
				logging.Component("startup").WithFields(logging.Fields{
					"copied":    res.Copied,
					"unchanged": res.Unchanged,
				}).Info("static files collected")
				return nil
			},
		},
	}
}

// Select returns the named steps in sequence order.
func (a *Admin) Select(names ...string) []Step {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Step
	for _, s := range a.Steps() {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func (a *Admin) waitDB(ctx context.Context) error {
	if _, err := a.Poller.Wait(ctx, a.Probe); err != nil {
		return err
	}
	if a.DB != nil {
		return nil
	}
	open := a.OpenDB
	if open == nil {
		open = database.NewPostgres
	}
	db, err := open(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	a.DB = db
	return nil
}

func (a *Admin) createSuperuser(ctx context.Context) error {
	if a.DB == nil {
		return fmt.Errorf("database is not open")
	}
	newSvc := a.Superusers
	if newSvc == nil {
		newSvc = func(db *sql.DB) service.SuperuserService {
			return service.NewSuperuserService(postgres.NewAdminUserPostgres(db))
		}
	}

	log := logging.Component("startup").WithField("username", a.Config.Superuser.Username)
	_, err := newSvc(a.DB).Create(ctx, a.Config.Superuser)
	if errors.Is(err, service.ErrSuperuserExists) {
		log.Info("superuser already exists")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("superuser created")
	return nil
}

// Close releases the database opened by wait-db.
func (a *Admin) Close() error {
	if a.DB == nil {
		return nil
	}
	err := a.DB.Close()
	a.DB = nil
	return err
}
