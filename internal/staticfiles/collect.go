// Package staticfiles copies the admin's bundled static assets to STATIC_ROOT.
package staticfiles

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed all:assets
var assets embed.FS

// Assets returns the bundled asset tree rooted at its top directory.
func Assets() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Result counts what a collection pass did.
type Result struct {
	Copied    int
	Unchanged int
}

// Collect copies every file of src into dst. Files whose content already
// matches are left untouched so repeated runs do not bump mtimes.
func Collect(src fs.FS, dst string) (Result, error) {
	var res Result
	err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dst, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		data, err := fs.ReadFile(src, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		existing, err := os.ReadFile(target)
		switch {
		case err == nil && bytes.Equal(existing, data):
			res.Unchanged++
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("read %s: %w", target, err)
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		res.Copied++
		return nil
	})
	return res, err
}
