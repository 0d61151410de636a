// Package layout prepares the container filesystem before the admin starts.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"prizebot/internal/config"
)

const (
	ManifestName = "project.yaml"
	ProjectName  = "prizebot_admin"
	dirPerm      = 0o755
)

// Dirs lists the directories that must exist before any other startup step.
func Dirs(p config.PathsConfig) []string {
	return []string{
		p.LogsDir(),
		p.MediaRoot,
		p.PrizesMediaDir(),
		p.StaticRoot,
		p.MigrationsDir(),
	}
}

// EnsureDirs creates every directory in Dirs. Existing directories are left
// alone; all failures are reported together.
func EnsureDirs(p config.PathsConfig) error {
	var result *multierror.Error
	for _, dir := range Dirs(p) {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			result = multierror.Append(result, fmt.Errorf("create %s: %w", dir, err))
		}
	}
	return result.ErrorOrNil()
}

// Manifest describes the admin project skeleton.
type Manifest struct {
	Name       string    `yaml:"name"`
	CreatedAt  time.Time `yaml:"created_at"`
	Apps       []string  `yaml:"apps"`
	MediaRoot  string    `yaml:"media_root"`
	StaticRoot string    `yaml:"static_root"`
	Migrations string    `yaml:"migrations"`
}

// BootstrapProject writes the project manifest unless one already exists.
// It reports whether a new manifest was created.
func BootstrapProject(p config.PathsConfig, now time.Time) (bool, error) {
	path := filepath.Join(p.ProjectDir(), ManifestName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat manifest: %w", err)
	}

	if err := os.MkdirAll(p.ProjectDir(), dirPerm); err != nil {
		return false, fmt.Errorf("create project dir: %w", err)
	}

	m := Manifest{
		Name:       ProjectName,
		CreatedAt:  now.UTC(),
		Apps:       []string{"prizes"},
		MediaRoot:  p.MediaRoot,
		StaticRoot: p.StaticRoot,
		Migrations: p.MigrationsDir(),
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return false, fmt.Errorf("encode manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("write manifest: %w", err)
	}
	return true, nil
}

// ReadManifest loads the manifest written by BootstrapProject.
func ReadManifest(p config.PathsConfig) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(p.ProjectDir(), ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
