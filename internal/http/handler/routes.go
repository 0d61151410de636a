package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"prizebot/internal/http/middleware"
	"prizebot/internal/logging"
	"prizebot/internal/storage"
)

const (
	SiteHeader = "PrizeBot"
	IndexTitle = "Prize administration"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the admin routes need.
type Deps struct {
	DB         Pinger
	Media      storage.Storage
	StaticRoot string
	Metrics    http.Handler
	ErrorLog   logrus.FieldLogger
}

// RegisterRoutes attaches the admin HTTP routes to app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.ErrorLog == nil {
		d.ErrorLog = logging.Component("http")
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/admin/", fiber.StatusMovedPermanently)
	})
	app.Get("/admin", AdminIndex(d.DB))

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Metrics != nil {
		app.Get(middleware.MetricsPath, adaptor.HTTPHandler(d.Metrics))
	}

	if d.StaticRoot != "" {
		app.Static("/static", d.StaticRoot, fiber.Static{
			Compress: true,
			MaxAge:   3600,
		})
	}

	app.Get("/media/*", MediaGet(d.Media, d.ErrorLog))
	app.Post("/media/prizes", MediaUpload(d.Media, d.ErrorLog))
	app.Delete("/media/*", MediaDelete(d.Media, d.ErrorLog))
}

// HealthCheck reports whether the database answers a ping within 2s.
func HealthCheck(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !databaseUp(c.UserContext(), db) {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// AdminIndex is the landing page of the admin site.
func AdminIndex(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := "down"
		if databaseUp(c.UserContext(), db) {
			state = "up"
		}
		return c.JSON(fiber.Map{
			"site":     SiteHeader,
			"title":    IndexTitle,
			"database": state,
		})
	}
}

func databaseUp(ctx context.Context, db Pinger) bool {
	if db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx) == nil
}
