package handler

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"prizebot/internal/storage"
)

// PrizeImagePrefix is where uploaded prize images are stored.
const PrizeImagePrefix = "prizes/"

// MediaURLExpiry bounds presigned links handed out for uploaded media.
const MediaURLExpiry = time.Hour

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// UploadResponse is returned by POST /media/prizes.
type UploadResponse struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func mediaKey(c *fiber.Ctx) (string, error) {
	return url.PathUnescape(c.Params("*"))
}

// MediaGet streams a stored media object.
func MediaGet(store storage.Storage, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, err := mediaKey(c)
		if err != nil || key == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "invalid media key")
		}

		rc, info, err := store.Get(c.UserContext(), key)
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "media not found")
		case errors.Is(err, storage.ErrInvalidKey):
			return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "invalid media key")
		case err != nil:
			return internalError(c, log, err)
		}

		etag := `"` + info.ETag + `"`
		if info.ETag != "" && c.Get(fiber.HeaderIfNoneMatch) == etag {
			rc.Close()
			return c.SendStatus(fiber.StatusNotModified)
		}

		if info.ETag != "" {
			c.Set(fiber.HeaderETag, etag)
		}
		if !info.LastModified.IsZero() {
			c.Set(fiber.HeaderLastModified, info.LastModified.UTC().Format(time.RFC1123))
		}
		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		// fasthttp closes rc once the body is written
		return c.SendStream(rc, int(info.Size))
	}
}

// MediaUpload stores a prize image (multipart field "file") under a fresh key.
func MediaUpload(store storage.Storage, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		ext := strings.ToLower(path.Ext(fh.Filename))
		ct, ok := imageTypes[ext]
		if !ok {
			return writeError(c, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
				"only jpg, png, gif and webp images are accepted")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		key := PrizeImagePrefix + uuid.NewString() + ext
		info, err := store.Put(c.UserContext(), key, f, storage.PutObjectOptions{
			Size:        fh.Size,
			ContentType: ct,
			Metadata:    map[string]string{"original-name": path.Base(fh.Filename)},
		})
		if err != nil {
			return internalError(c, log, err)
		}

		link, err := store.PresignGet(c.UserContext(), info.Key, MediaURLExpiry)
		if err != nil {
			return internalError(c, log, err)
		}

		c.Set(fiber.HeaderLocation, "/media/"+info.Key)
		return c.Status(fiber.StatusCreated).JSON(UploadResponse{
			Key:         info.Key,
			URL:         link,
			Size:        info.Size,
			ContentType: ct,
		})
	}
}

// MediaDelete removes a stored media object.
func MediaDelete(store storage.Storage, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, err := mediaKey(c)
		if err != nil || key == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "invalid media key")
		}

		err = store.Delete(c.UserContext(), key)
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "media not found")
		case errors.Is(err, storage.ErrInvalidKey):
			return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "invalid media key")
		case err != nil:
			return internalError(c, log, err)
		}
		log.WithField("key", key).Info("media deleted")
		return c.SendStatus(fiber.StatusNoContent)
	}
}
