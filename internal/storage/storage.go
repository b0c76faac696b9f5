// Package storage provides file storage for raw and derived video files.
// It defines the Store interface (port) and implementations for the local
// filesystem and for an optional S3 archive mirror.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrArchiveNotConfigured is returned when archive operations are attempted
// without an archive backend configured.
var ErrArchiveNotConfigured = errors.New("archive storage is not configured")

// Store defines the interface for video blob storage.
// Paths returned by Save and NewPath are relative to the process working
// directory and usable directly by callers (including subprocess tools).
type Store interface {
	// Save writes data to a new collision-resistant file whose extension is
	// taken from name, and returns the stored path.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Open reads a stored file. The caller must close the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes a stored file. Missing files are not an error.
	Remove(ctx context.Context, path string) error

	// Exists reports whether a stored file is present.
	Exists(path string) bool

	// NewPath reserves a collision-resistant path for a derived file with the
	// given operation prefix and extension. No file is created; the caller
	// (typically an external tool) writes it.
	NewPath(prefix, ext string) string

	// Archive copies the stored file at path to the archive backend and
	// returns its remote URL. Returns ErrArchiveNotConfigured when no
	// archive backend is available.
	Archive(ctx context.Context, path string) (url string, err error)
}
