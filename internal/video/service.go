package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/rmarchal/videovault/internal/media"
	"github.com/rmarchal/videovault/internal/storage"
)

// Default duration bounds for original uploads, in seconds.
const (
	DefaultMinDuration = 5
	DefaultMaxDuration = 25
)

// File name prefixes for derived videos.
const (
	trimmedFilePrefix = "trimmed_"
	mergedFilePrefix  = "merged_"
)

// Static validation errors surfaced by the lifecycle service.
// Messages are user-facing; handlers map them to HTTP 400/404.
var (
	// ErrDurationOutOfRange is returned when an uploaded video is shorter or
	// longer than the configured bounds. Derived videos are exempt.
	ErrDurationOutOfRange = errors.New("video duration is outside the allowed range")
	// ErrEndNotAfterStart is returned when a trim end time is not greater
	// than its start time.
	ErrEndNotAfterStart = errors.New("end time must be greater than start time")
	// ErrNegativeStart is returned when a trim start time is negative.
	ErrNegativeStart = errors.New("start time cannot be negative")
	// ErrEndBeyondDuration is returned when a trim end time exceeds the
	// source video duration.
	ErrEndBeyondDuration = errors.New("end time exceeds the video duration")
	// ErrTooFewVideos is returned when a merge request names fewer than two videos.
	ErrTooFewVideos = errors.New("at least 2 video ids are required")
	// ErrSourceFileMissing is returned when a merge input's backing file is
	// missing from the blob store.
	ErrSourceFileMissing = errors.New("video file is missing")
)

// Service orchestrates the video lifecycle: upload validation, persistence,
// trim/merge derivation and lazy reconciliation of orphaned records.
// Every operation that writes a file before metadata deletes that file again
// on any downstream failure, so the blob store never accumulates orphans.
type Service struct {
	repo        Repository
	store       storage.Store
	inspector   media.Inspector
	transformer media.Transformer
	logger      *slog.Logger

	minDuration int
	maxDuration int
}

// ServiceOption is a function that configures a Service instance.
type ServiceOption func(*Service)

// WithDurationBounds overrides the min/max duration (in seconds) enforced on
// original uploads.
func WithDurationBounds(minSec, maxSec int) ServiceOption {
	return func(s *Service) {
		if minSec > 0 {
			s.minDuration = minSec
		}
		if maxSec > 0 {
			s.maxDuration = maxSec
		}
	}
}

// NewService creates a new lifecycle service.
func NewService(repo Repository, store storage.Store, inspector media.Inspector, transformer media.Transformer, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		store:       store,
		inspector:   inspector,
		transformer: transformer,
		logger:      logger,
		minDuration: DefaultMinDuration,
		maxDuration: DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload validates a freshly stored file and persists its metadata record.
// The file at path must already exist in the blob store; on any failure the
// file is deleted before the error is returned.
func (s *Service) Upload(ctx context.Context, path, originalName string) (*Video, error) {
	duration, err := s.inspector.Duration(ctx, path)
	if err != nil {
		s.discard(ctx, path)
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	if duration < float64(s.minDuration) || duration > float64(s.maxDuration) {
		s.discard(ctx, path)
		return nil, fmt.Errorf("%w: got %.1fs, allowed %d-%ds",
			ErrDurationOutOfRange, duration, s.minDuration, s.maxDuration)
	}

	v := &Video{
		Title:    originalName,
		Path:     path,
		Duration: int(math.Round(duration)),
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		s.discard(ctx, path)
		return nil, fmt.Errorf("save video record: %w", err)
	}

	s.logger.Info("video uploaded",
		slog.Int64("video_id", v.ID),
		slog.String("title", v.Title),
		slog.Int("duration", v.Duration),
	)

	s.archive(ctx, path)
	return v, nil
}

// List returns all videos, newest first, excluding and deleting any record
// whose backing file has gone missing. Individual reconciliation failures are
// logged, never surfaced.
func (s *Service) List(ctx context.Context) ([]*Video, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	videos := make([]*Video, 0, len(all))
	for _, v := range all {
		if !s.store.Exists(v.Path) {
			s.logger.Warn("backing file missing, removing record",
				slog.Int64("video_id", v.ID),
				slog.String("path", v.Path),
			)
			if err := s.repo.Delete(ctx, v.ID); err != nil && !errors.Is(err, ErrVideoNotFound) {
				s.logger.Error("failed to remove orphaned record",
					slog.Int64("video_id", v.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// Trim derives a new video covering [start, end) of the source video.
// The source record and file are never modified. Duration bounds are not
// re-checked on the result.
func (s *Service) Trim(ctx context.Context, id int64, start, end float64) (*Video, error) {
	if start >= end {
		return nil, ErrEndNotAfterStart
	}
	if start < 0 {
		return nil, ErrNegativeStart
	}

	src, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if end > float64(src.Duration) {
		return nil, ErrEndBeyondDuration
	}

	dst := s.store.NewPath(trimmedFilePrefix, filepath.Ext(src.Path))
	if err := s.transformer.Trim(ctx, src.Path, dst, start, end); err != nil {
		s.discard(ctx, dst)
		return nil, fmt.Errorf("trim video: %w", err)
	}

	v := &Video{
		Title:    TrimmedTitlePrefix + src.Title,
		Path:     dst,
		Duration: int(math.Round(end - start)),
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		s.discard(ctx, dst)
		return nil, fmt.Errorf("save trimmed video record: %w", err)
	}

	s.logger.Info("video trimmed",
		slog.Int64("source_id", src.ID),
		slog.Int64("video_id", v.ID),
		slog.Float64("start", start),
		slog.Float64("end", end),
	)

	s.archive(ctx, dst)
	return v, nil
}

// Merge concatenates two or more videos, in the given order, into a new
// derived video whose duration is the exact sum of the inputs' durations.
// Source records and files are untouched.
func (s *Service) Merge(ctx context.Context, ids []int64) (*Video, error) {
	if len(ids) < 2 {
		return nil, ErrTooFewVideos
	}

	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("look up videos: %w", err)
	}

	byID := make(map[int64]*Video, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}

	// The batch lookup collapses duplicates, so any count mismatch means an
	// unknown or repeated id.
	if len(found) != len(ids) {
		var missing []int64
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: ids %v", ErrVideoNotFound, missing)
		}
		return nil, fmt.Errorf("%w: duplicate ids in %v", ErrVideoNotFound, ids)
	}

	var missingFiles []int64
	for _, id := range ids {
		if !s.store.Exists(byID[id].Path) {
			missingFiles = append(missingFiles, id)
		}
	}
	if len(missingFiles) > 0 {
		return nil, fmt.Errorf("%w: ids %v", ErrSourceFileMissing, missingFiles)
	}

	paths := make([]string, 0, len(ids))
	total := 0
	for _, id := range ids {
		paths = append(paths, byID[id].Path)
		total += byID[id].Duration
	}

	dst := s.store.NewPath(mergedFilePrefix, ".mp4")
	if err := s.transformer.Concat(ctx, paths, dst); err != nil {
		s.discard(ctx, dst)
		return nil, fmt.Errorf("merge videos: %w", err)
	}

	v := &Video{
		Title:    MergedTitle,
		Path:     dst,
		Duration: total,
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		s.discard(ctx, dst)
		return nil, fmt.Errorf("save merged video record: %w", err)
	}

	s.logger.Info("videos merged",
		slog.Any("source_ids", ids),
		slog.Int64("video_id", v.ID),
		slog.Int("duration", total),
	)

	s.archive(ctx, dst)
	return v, nil
}

// discard removes a file that must not outlive a failed operation.
func (s *Service) discard(ctx context.Context, path string) {
	if err := s.store.Remove(ctx, path); err != nil {
		s.logger.Error("failed to remove file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// archive mirrors a stored file to the archive backend, if one is configured.
// Archive failures never fail the request.
func (s *Service) archive(ctx context.Context, path string) {
	url, err := s.store.Archive(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrArchiveNotConfigured) {
			return
		}
		s.logger.Warn("archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("video archived",
		slog.String("path", path),
		slog.String("url", url),
	)
}
