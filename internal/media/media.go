// Package media provides video inspection and transformation capabilities.
// Implementations wrap the ffmpeg and ffprobe CLIs as black boxes.
package media

import "context"

// Inspector reports metadata about a stored media file.
type Inspector interface {
	// Duration returns the duration of the media file at path, in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// Transformer produces new media files from existing ones.
// Source files are never modified; outputs are written to dst and it is the
// caller's responsibility to remove dst if the operation fails partway.
type Transformer interface {
	// Trim writes the [start, end) time range of src to dst.
	// Times are in seconds and must satisfy 0 <= start < end.
	Trim(ctx context.Context, src, dst string, start, end float64) error

	// Concat concatenates the given video files, in order, into dst.
	// It first attempts a fast stream copy (no re-encoding) and falls back
	// to re-encoding with libx264/aac if the copy fails due to
	// incompatible codecs.
	Concat(ctx context.Context, srcs []string, dst string) error
}
