package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore implements the Store interface using the local filesystem.
// All files live flat under a single uploads directory; names carry a
// millisecond timestamp plus a random suffix so concurrent saves never
// collide.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a new LocalStore rooted at dir.
// If dir is empty, "uploads" is used. The directory is created if it
// doesn't exist.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &LocalStore{dir: dir}, nil
}

// Dir returns the upload directory path.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes data to a new file named after the current time plus a random
// suffix, keeping the extension of name, and returns the stored path.
func (s *LocalStore) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := s.NewPath("", filepath.Ext(name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640) // #nosec G304 - path is generated internally
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}

	return path, nil
}

// Open reads a stored file. The caller must close the returned ReadCloser.
func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return f, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *LocalStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a stored file is present on disk.
func (s *LocalStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NewPath reserves a collision-resistant path under the upload directory.
// The name is <prefix><unix-millis>_<random><ext>, e.g. "trimmed_1712050000123_a1b2c3d4.mp4".
func (s *LocalStore) NewPath(prefix, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%s%d_%s%s", prefix, time.Now().UnixMilli(), suffix, strings.ToLower(ext))
	return filepath.Join(s.dir, name)
}

// Archive is not supported by LocalStore and returns ErrArchiveNotConfigured.
func (s *LocalStore) Archive(_ context.Context, _ string) (string, error) {
	return "", ErrArchiveNotConfigured
}
