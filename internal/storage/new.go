package storage

import (
	"fmt"

	"prizebot/internal/config"
)

// New returns the MinIO store when an endpoint is configured and the local
// MEDIA_ROOT store otherwise. Local URLs use the external HOST and PORT so the
// bot can fetch them.
func New(cfg *config.AppConfig) (Storage, error) {
	if cfg.MinIO.Endpoint != "" {
		return NewMinIO(cfg.MinIO)
	}
	return NewLocal(cfg.Paths.MediaRoot, fmt.Sprintf("http://%s:%s/media", cfg.Host, cfg.Port))
}
