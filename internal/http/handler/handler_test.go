package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prizebot/internal/storage"
	storageMocks "prizebot/internal/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewLocal(t.TempDir(), "http://localhost:8000/media")
	require.NoError(t, err)
	return s
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	t.Run("no database", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminIndex(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/admin", AdminIndex(db))

	for _, tc := range []struct {
		name    string
		pingErr error
		want    string
	}{
		{name: "database up", want: "up"},
		{name: "database down", pingErr: errors.New("connection refused"), want: "down"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dbMock.ExpectPing().WillReturnError(tc.pingErr)

			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/admin/", nil))
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, SiteHeader, body["site"])
			assert.Equal(t, IndexTitle, body["title"])
			assert.Equal(t, tc.want, body["database"])
		})
	}
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestMediaUpload(t *testing.T) {
	store := newLocalStore(t)
	app := fiber.New()
	app.Post("/media/prizes", MediaUpload(store, logrus.New()))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "Trophy.PNG", []byte("fake png bytes"))
		req := httptest.NewRequest(http.MethodPost, "/media/prizes", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var res UploadResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.True(t, strings.HasPrefix(res.Key, PrizeImagePrefix))
		assert.True(t, strings.HasSuffix(res.Key, ".png"))
		assert.Equal(t, "http://localhost:8000/media/"+res.Key, res.URL)
		assert.Equal(t, int64(len("fake png bytes")), res.Size)
		assert.Equal(t, "image/png", res.ContentType)
		assert.Equal(t, "/media/"+res.Key, resp.Header.Get("Location"))

		rc, _, err := store.Get(context.Background(), res.Key)
		require.NoError(t, err)
		defer rc.Close()
		got, _ := io.ReadAll(rc)
		assert.Equal(t, "fake png bytes", string(got))
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/media/prizes", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "notes.txt", []byte("hello"))
		req := httptest.NewRequest(http.MethodPost, "/media/prizes", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "UNSUPPORTED_TYPE", res.Error.Code)
	})
}

func TestMediaUpload_StorageError(t *testing.T) {
	store := new(storageMocks.MockStorage)
	logger, hook := test.NewNullLogger()
	app := fiber.New()
	app.Post("/media/prizes", MediaUpload(store, logger))

	store.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, errors.New("bucket unavailable")).Once()

	body, ct := multipartBody(t, "file", "cup.jpg", []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/media/prizes", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var res errorPayload
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, "INTERNAL_ERROR", res.Error.Code)
	assert.Equal(t, "internal server error", res.Error.Message)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	store.AssertExpectations(t)
}

func TestMediaGet(t *testing.T) {
	store := newLocalStore(t)
	info, err := store.Put(context.Background(), "prizes/cup.png", strings.NewReader("png"), storage.PutObjectOptions{Size: 3})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/media/*", MediaGet(store, logrus.New()))

	t.Run("success", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/media/prizes/cup.png", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Equal(t, `"`+info.ETag+`"`, resp.Header.Get("ETag"))
		got, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "png", string(got))
	})

	t.Run("not modified", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/media/prizes/cup.png", nil)
		req.Header.Set("If-None-Match", `"`+info.ETag+`"`)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/media/prizes/missing.png", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})
}

func TestMediaDelete(t *testing.T) {
	store := new(storageMocks.MockStorage)
	app := fiber.New()
	app.Delete("/media/*", MediaDelete(store, logrus.New()))

	t.Run("success", func(t *testing.T) {
		store.On("Delete", mock.Anything, "prizes/a b.png").Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/media/prizes/a%20b.png", nil))

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		store.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		store.On("Delete", mock.Anything, "prizes/gone.png").Return(storage.ErrObjectNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/media/prizes/gone.png", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		store.AssertExpectations(t)
	})

	t.Run("trailing slash is stripped", func(t *testing.T) {
		store.On("Delete", mock.Anything, "prizes").Return(storage.ErrObjectNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/media/prizes/", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		store.AssertExpectations(t)
	})

	t.Run("invalid key", func(t *testing.T) {
		strict := fiber.New(fiber.Config{StrictRouting: true})
		strict.Delete("/media/*", MediaDelete(store, logrus.New()))
		store.On("Delete", mock.Anything, "prizes/").Return(storage.ErrInvalidKey).Once()

		resp, _ := strict.Test(httptest.NewRequest(http.MethodDelete, "/media/prizes/", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_KEY", res.Error.Code)
		store.AssertExpectations(t)
	})

	t.Run("storage error", func(t *testing.T) {
		store.On("Delete", mock.Anything, "prizes/x.png").Return(errors.New("io error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/media/prizes/x.png", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		store.AssertExpectations(t)
	})
}

func TestMediaDelete_LocalDirectory(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocal(root, "http://localhost:8000/media")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "prizes/cup.png", strings.NewReader("png"), storage.PutObjectOptions{Size: -1})
	require.NoError(t, err)

	app := fiber.New()
	app.Delete("/media/*", MediaDelete(store, logrus.New()))

	for _, target := range []string{"/media/prizes", "/media/prizes/"} {
		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, target, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, target)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code, target)
	}
	assert.FileExists(t, filepath.Join(root, "prizes", "cup.png"))
}

func TestRouting(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(logger),
	})

	RegisterRoutes(app, Deps{Media: newLocalStore(t), ErrorLog: logger})

	t.Run("root redirects to admin", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
		assert.Equal(t, "/admin/", resp.Header.Get("Location"))
	})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})

	t.Run("admin without database", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/admin/", nil))

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "down", body["database"])
	})
}

func TestRouting_StaticAndMetrics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "robots.txt"), []byte("User-agent: *\n"), 0o644))

	app := fiber.New()
	RegisterRoutes(app, Deps{
		Media:      newLocalStore(t),
		StaticRoot: dir,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
	})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/static/robots.txt", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "# metrics\n", string(got))
}

func TestErrorHandler_UnexpectedError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: relation missing") })

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var res errorPayload
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, "internal server error", res.Error.Message)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "/boom", hook.LastEntry().Data["path"])
}
