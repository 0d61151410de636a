package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("invalid object key")

// localStorage keeps media on the shared volume mounted at MEDIA_ROOT.
// Writes go through a temp file and rename so readers on the read-only
// mount never see a partial image.
type localStorage struct {
	root    string
	baseURL string
}

// NewLocal creates a filesystem store rooted at root. baseURL is the public
// prefix objects are served under, e.g. http://localhost:8000/media.
func NewLocal(root, baseURL string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("media root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &localStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// resolve maps a slash separated key to a path under root. Keys can not
// escape root.
func (l *localStorage) resolve(key string) (string, string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	key, dst, err := l.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ObjectInfo{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return ObjectInfo{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ObjectInfo{}, err
	}
	if opt.Size >= 0 && n != opt.Size {
		return ObjectInfo{}, fmt.Errorf("short upload: got %d of %d bytes", n, opt.Size)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return ObjectInfo{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return ObjectInfo{}, err
	}

	st, err := os.Stat(dst)
	if err != nil {
		return ObjectInfo{}, err
	}
	ct := opt.ContentType
	if ct == "" {
		ct = contentTypeOf(key)
	}
	return ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ETag:         etag(st),
		ContentType:  ct,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	key, p, err := l.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, ObjectInfo{}, mapFSError(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ETag:         etag(st),
		ContentType:  contentTypeOf(key),
		LastModified: st.ModTime(),
	}, nil
}

func (l *localStorage) Delete(ctx context.Context, key string) error {
	_, p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if st, err := os.Stat(p); err == nil && st.IsDir() {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return mapFSError(os.Remove(p))
}

// PresignGet returns the public media URL; local media needs no signature so
// expiry is ignored.
func (l *localStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key, _, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	u := &url.URL{Path: "/" + key}
	return l.baseURL + u.EscapedPath(), nil
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}

func contentTypeOf(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func etag(st fs.FileInfo) string {
	return fmt.Sprintf("%x-%x", st.ModTime().UnixNano(), st.Size())
}
