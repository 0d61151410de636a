package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prizebot/internal/config"
	"prizebot/internal/readiness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

// executeContext runs the root command with fresh flag values so that one
// test's flags never leak into the next.
func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags()
	})
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func resetFlags() {
	logLevel, logFormat = "", ""
	waitInterval, waitMaxAttempts, waitTimeout = 0, -1, 0
	superuserName, superuserEmail = "", ""
	for _, c := range []*cobra.Command{waitDBCmd, waitHTTPCmd, createSuperuserCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "prizebot-admin dev\n", out)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("SERVER_WORKERS", "-1")

	_, err := execute(t, "collectstatic")

	assert.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestCollectStatic(t *testing.T) {
	root := t.TempDir()
	t.Setenv("APP_ROOT", root)
	t.Setenv("MEDIA_ROOT", "")
	t.Setenv("STATIC_ROOT", "")

	_, err := execute(t, "collectstatic", "--log-level", "error")

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "static", "robots.txt"))
	assert.DirExists(t, filepath.Join(root, "media", "prizes"))
	assert.DirExists(t, filepath.Join(root, "logs"))
}

func TestWaitHTTP(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := execute(t, "wait", "http", srv.URL+"/healthz", "--interval", "10ms", "--max-attempts", "0")

	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWaitHTTP_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := execute(t, "wait", "http", srv.URL, "--interval", "1ms", "--max-attempts", "2")

	assert.ErrorIs(t, err, readiness.ErrNotReady)
}

func TestWaitHTTP_RequiresURL(t *testing.T) {
	_, err := execute(t, "wait", "http")

	assert.Error(t, err)
}

func TestWaitHTTP_FlagsDoNotLeak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := execute(t, "wait", "http", srv.URL, "--interval", "1ms", "--max-attempts", "1")
	require.ErrorIs(t, err, readiness.ErrNotReady)

	// without flags the DB_WAIT_* settings apply again
	t.Setenv("DB_WAIT_INTERVAL", "1ms")
	t.Setenv("DB_WAIT_MAX_ATTEMPTS", "3")
	var calls atomic.Int32
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer counting.Close()

	_, err = execute(t, "wait", "http", counting.URL)
	require.ErrorIs(t, err, readiness.ErrNotReady)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWaitHTTP_InterruptIsCleanStop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := executeContext(t, ctx, "wait", "http", srv.URL, "--interval", "5ms", "--max-attempts", "0")

	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
