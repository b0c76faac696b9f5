package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoInputs is returned when no input paths are provided for concatenation.
	ErrNoInputs = errors.New("no input paths provided")
	// ErrInvalidRange is returned when a trim range is not 0 <= start < end.
	ErrInvalidRange = errors.New("invalid trim range")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// Compile-time checks that FFmpeg implements both ports.
var (
	_ Inspector   = (*FFmpeg)(nil)
	_ Transformer = (*FFmpeg)(nil)
)

// FFmpeg implements Inspector and Transformer using the ffmpeg and ffprobe CLIs.
type FFmpeg struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg wrapper.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Duration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

// Trim writes the [start, end) time range of src to dst.
// It first attempts a stream copy and falls back to re-encoding, since copy
// can only cut on keyframes and fails outright for some containers.
func (p *FFmpeg) Trim(ctx context.Context, src, dst string, start, end float64) error {
	if start < 0 || start >= end {
		return fmt.Errorf("%w: start=%.2f, end=%.2f", ErrInvalidRange, start, end)
	}

	err := p.trimWithCopy(ctx, src, dst, start, end)
	if err == nil {
		return nil
	}

	return p.trimWithReencode(ctx, src, dst, start, end)
}

// trimWithCopy cuts the range using stream copy (no re-encoding).
func (p *FFmpeg) trimWithCopy(ctx context.Context, src, dst string, start, end float64) error {
	args := []string{
		"-y", // Overwrite output file
		"-ss", formatSeconds(start), // Seek to start position
		"-i", src, // Input file
		"-t", formatSeconds(end - start), // Output duration
		"-c", "copy", // Copy streams without re-encoding
		dst, // Output file
	}
	return p.runFFmpeg(ctx, args)
}

// trimWithReencode cuts the range by re-encoding with libx264/aac.
func (p *FFmpeg) trimWithReencode(ctx context.Context, src, dst string, start, end float64) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(end - start),
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Quality (lower = better, 23 is default)
		"-c:a", "aac", // Audio codec
		"-b:a", "128k", // Audio bitrate
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// Concat concatenates multiple video files into a single output file.
// It first attempts a fast copy (no re-encoding) and falls back to re-encoding
// with libx264/aac if the copy fails.
func (p *FFmpeg) Concat(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return ErrNoInputs
	}

	if len(srcs) == 1 {
		// Single input: just copy the file
		return p.copyFile(srcs[0], dst)
	}

	// Create a temporary file list for the concat demuxer
	listFile, err := p.createConcatList(srcs)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	// Try fast copy first (no re-encoding)
	err = p.concatWithCopy(ctx, listFile, dst)
	if err == nil {
		return nil
	}

	// Fast copy failed, fall back to re-encoding
	return p.concatWithReencode(ctx, listFile, dst)
}

// concatWithCopy concatenates videos using stream copy (no re-encoding).
func (p *FFmpeg) concatWithCopy(ctx context.Context, listFile, dst string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		dst, // Output file
	}
	return p.runFFmpeg(ctx, args)
}

// concatWithReencode concatenates videos by re-encoding with libx264/aac.
func (p *FFmpeg) concatWithReencode(ctx context.Context, listFile, dst string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// createConcatList creates a temporary file containing the list of video files
// in the format required by ffmpeg's concat demuxer.
func (p *FFmpeg) createConcatList(srcs []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range srcs {
		// Convert to absolute path for safety
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func (p *FFmpeg) copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpeg) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// formatSeconds renders a seconds value for an ffmpeg argument.
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
