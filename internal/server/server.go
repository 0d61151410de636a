// Package server runs the admin HTTP application the container hands off to
// once startup has finished.
package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"prizebot/internal/config"
	"prizebot/internal/http/handler"
	"prizebot/internal/http/middleware"
	"prizebot/internal/logging"
)

const (
	// ShutdownTimeout bounds how long in-flight requests may run after a
	// termination signal.
	ShutdownTimeout = 10 * time.Second

	bodyLimit = 10 << 20
)

// Server is the admin web application bound to SERVER_BIND.
type Server struct {
	App  *fiber.App
	Bind string

	log *logrus.Entry
}

// Options carry the collaborators a Server needs beyond its configuration.
type Options struct {
	Deps        handler.Deps
	HTTPMetrics *middleware.PrometheusMiddleware
}

// New builds the fiber application. Requests are written to the access log
// file and unexpected failures to the error log; both rotate with lumberjack.
func New(cfg *config.AppConfig, opt Options) *Server {
	errLog := opt.Deps.ErrorLog
	if errLog == nil {
		errLog = logging.New(cfg.Log.Level, "json", "=", cfg.Server.ErrorLog)
		opt.Deps.ErrorLog = errLog
	}

	app := fiber.New(fiber.Config{
		AppName:               "prizebot-admin",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          handler.ErrorHandler(errLog),
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.LoggerWithWriter(logging.Writer(cfg.Server.AccessLog), time.Local))
	if opt.HTTPMetrics != nil {
		app.Use(opt.HTTPMetrics.Handler())
	}
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Workers(cfg.Server.Workers))

	handler.RegisterRoutes(app, opt.Deps)

	return &Server{
		App:  app,
		Bind: cfg.Server.Bind,
		log:  logging.Component("server"),
	}
}

// Serve listens on Bind until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Bind)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled or the listener fails.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.App.Listener(ln)
	}()

	s.log.WithFields(logging.Fields{
		logging.EventFieldKey: "server_start",
		"bind":                ln.Addr().String(),
	}).Info("admin server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.WithField(logging.EventFieldKey, "server_shutdown").Info("shutting down admin server")
	if err := s.App.ShutdownWithTimeout(ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
