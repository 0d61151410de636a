package readiness

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"prizebot/internal/config"
	"prizebot/internal/database"
)

// PostgresProbe succeeds once a connection can be established with the
// configured credentials. The connection is closed right away.
type PostgresProbe struct {
	Config config.DatabaseConfig
	// Dial defaults to a single pgx connection attempt.
	Dial func(ctx context.Context, dsn string) error
}

func (p *PostgresProbe) Name() string { return "postgres" }

func (p *PostgresProbe) Check(ctx context.Context) error {
	dsn, err := database.BuildPostgresDSN(p.Config)
	if err != nil {
		return err
	}
	dial := p.Dial
	if dial == nil {
		dial = dialPostgres
	}
	return dial(ctx, dsn)
}

func dialPostgres(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// HTTPProbe succeeds on any 2xx or 3xx response from URL. Redirects are not
// followed.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{URL: url, Client: newHTTPClient()}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (p *HTTPProbe) Name() string { return "http" }

func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	client := p.Client
	if client == nil {
		client = newHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, p.URL)
	}
	return nil
}
