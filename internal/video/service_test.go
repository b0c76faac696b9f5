package video

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rmarchal/videovault/internal/storage"
)

// mockInspector implements media.Inspector for testing.
type mockInspector struct {
	mock.Mock
}

func (m *mockInspector) Duration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

// mockTransformer implements media.Transformer for testing.
type mockTransformer struct {
	mock.Mock
}

func (m *mockTransformer) Trim(ctx context.Context, src, dst string, start, end float64) error {
	args := m.Called(ctx, src, dst, start, end)
	return args.Error(0)
}

func (m *mockTransformer) Concat(ctx context.Context, srcs []string, dst string) error {
	args := m.Called(ctx, srcs, dst)
	return args.Error(0)
}

// writeDst is a mock Run hook that creates the output file, the way a
// successful ffmpeg invocation would.
func writeDst(t *testing.T) func(mock.Arguments) {
	t.Helper()
	return func(args mock.Arguments) {
		dst := args.String(2)
		require.NoError(t, os.WriteFile(dst, []byte("derived video"), 0640))
	}
}

// failingRepo wraps a Repository and fails Insert, to exercise metadata
// rollback of just-written files.
type failingRepo struct {
	Repository
}

func (r *failingRepo) Insert(context.Context, *Video) error {
	return errors.New("insert failed")
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, *storage.LocalStore, *mockInspector, *mockTransformer) {
	t.Helper()
	repo := NewMemoryRepository()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	inspector := &mockInspector{}
	transformer := &mockTransformer{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := NewService(repo, store, inspector, transformer, logger)
	return svc, repo, store, inspector, transformer
}

// saveUpload places a dummy file in the store, as the HTTP layer does before
// calling Upload.
func saveUpload(t *testing.T, store *storage.LocalStore, name string) string {
	t.Helper()
	path, err := store.Save(context.Background(), name, strings.NewReader("raw video"))
	require.NoError(t, err)
	return path
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts duration within bounds", func(t *testing.T) {
		svc, repo, store, inspector, _ := newTestService(t)
		path := saveUpload(t, store, "holiday.mp4")
		inspector.On("Duration", mock.Anything, path).Return(10.0, nil)

		v, err := svc.Upload(ctx, path, "holiday.mp4")
		require.NoError(t, err)

		assert.Equal(t, int64(1), v.ID)
		assert.Equal(t, "holiday.mp4", v.Title)
		assert.Equal(t, 10, v.Duration)
		assert.True(t, store.Exists(v.Path))

		stored, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.Path, stored.Path)
	})

	t.Run("accepts boundary durations", func(t *testing.T) {
		for _, d := range []float64{5.0, 25.0} {
			svc, _, store, inspector, _ := newTestService(t)
			path := saveUpload(t, store, "clip.mp4")
			inspector.On("Duration", mock.Anything, path).Return(d, nil)

			v, err := svc.Upload(ctx, path, "clip.mp4")
			require.NoError(t, err)
			assert.Equal(t, int(d), v.Duration)
		}
	})

	t.Run("rounds fractional durations", func(t *testing.T) {
		svc, _, store, inspector, _ := newTestService(t)
		path := saveUpload(t, store, "clip.mp4")
		inspector.On("Duration", mock.Anything, path).Return(9.6, nil)

		v, err := svc.Upload(ctx, path, "clip.mp4")
		require.NoError(t, err)
		assert.Equal(t, 10, v.Duration)
	})

	t.Run("rejects too-short video and deletes file", func(t *testing.T) {
		svc, repo, store, inspector, _ := newTestService(t)
		path := saveUpload(t, store, "blip.mp4")
		inspector.On("Duration", mock.Anything, path).Return(4.2, nil)

		_, err := svc.Upload(ctx, path, "blip.mp4")
		assert.ErrorIs(t, err, ErrDurationOutOfRange)
		assert.False(t, store.Exists(path))

		videos, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, videos)
	})

	t.Run("rejects too-long video and deletes file", func(t *testing.T) {
		svc, _, store, inspector, _ := newTestService(t)
		path := saveUpload(t, store, "epic.mp4")
		inspector.On("Duration", mock.Anything, path).Return(26.0, nil)

		_, err := svc.Upload(ctx, path, "epic.mp4")
		assert.ErrorIs(t, err, ErrDurationOutOfRange)
		assert.False(t, store.Exists(path))
	})

	t.Run("custom bounds apply", func(t *testing.T) {
		repo := NewMemoryRepository()
		store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
		require.NoError(t, err)
		inspector := &mockInspector{}
		svc := NewService(repo, store, inspector, &mockTransformer{}, nil,
			WithDurationBounds(1, 60))

		path := saveUpload(t, store, "long.mp4")
		inspector.On("Duration", mock.Anything, path).Return(45.0, nil)

		v, err := svc.Upload(ctx, path, "long.mp4")
		require.NoError(t, err)
		assert.Equal(t, 45, v.Duration)
	})

	t.Run("probe failure deletes file", func(t *testing.T) {
		svc, _, store, inspector, _ := newTestService(t)
		path := saveUpload(t, store, "corrupt.mp4")
		inspector.On("Duration", mock.Anything, path).Return(0.0, errors.New("ffprobe exploded"))

		_, err := svc.Upload(ctx, path, "corrupt.mp4")
		require.Error(t, err)
		assert.False(t, store.Exists(path))
	})

	t.Run("insert failure deletes file", func(t *testing.T) {
		svc, _, store, inspector, _ := newTestService(t)
		svc.repo = &failingRepo{Repository: svc.repo}
		path := saveUpload(t, store, "clip.mp4")
		inspector.On("Duration", mock.Anything, path).Return(10.0, nil)

		_, err := svc.Upload(ctx, path, "clip.mp4")
		require.Error(t, err)
		assert.False(t, store.Exists(path))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("returns newest first", func(t *testing.T) {
		svc, _, store, inspector, _ := newTestService(t)
		inspector.On("Duration", mock.Anything, mock.Anything).Return(10.0, nil)

		first, err := svc.Upload(ctx, saveUpload(t, store, "a.mp4"), "a.mp4")
		require.NoError(t, err)
		second, err := svc.Upload(ctx, saveUpload(t, store, "b.mp4"), "b.mp4")
		require.NoError(t, err)

		videos, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, videos, 2)
		assert.Equal(t, second.ID, videos[0].ID)
		assert.Equal(t, first.ID, videos[1].ID)
	})

	t.Run("removes records whose file is missing", func(t *testing.T) {
		svc, repo, store, inspector, _ := newTestService(t)
		inspector.On("Duration", mock.Anything, mock.Anything).Return(10.0, nil)

		kept, err := svc.Upload(ctx, saveUpload(t, store, "kept.mp4"), "kept.mp4")
		require.NoError(t, err)
		orphan, err := svc.Upload(ctx, saveUpload(t, store, "orphan.mp4"), "orphan.mp4")
		require.NoError(t, err)

		// Simulate the backing file vanishing out from under the record
		require.NoError(t, os.Remove(orphan.Path))

		videos, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, videos, 1)
		assert.Equal(t, kept.ID, videos[0].ID)

		_, err = repo.FindByID(ctx, orphan.ID)
		assert.ErrorIs(t, err, ErrVideoNotFound)
	})
}

func TestTrim(t *testing.T) {
	ctx := context.Background()

	// uploadSource inserts a 10-second source video.
	uploadSource := func(t *testing.T, svc *Service, store *storage.LocalStore, inspector *mockInspector) *Video {
		t.Helper()
		path := saveUpload(t, store, "source.mp4")
		inspector.On("Duration", mock.Anything, path).Return(10.0, nil)
		v, err := svc.Upload(ctx, path, "source.mp4")
		require.NoError(t, err)
		return v
	}

	t.Run("validation rejects before invoking the transformer", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		src := uploadSource(t, svc, store, inspector)

		tests := []struct {
			name       string
			start, end float64
			want       error
		}{
			{"start equals end", 5, 5, ErrEndNotAfterStart},
			{"start after end", 7, 2, ErrEndNotAfterStart},
			{"negative start", -1, 5, ErrNegativeStart},
			{"end beyond duration", 2, 11, ErrEndBeyondDuration},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Trim(ctx, src.ID, tt.start, tt.end)
				assert.ErrorIs(t, err, tt.want)
			})
		}
		transformer.AssertNotCalled(t, "Trim")
	})

	t.Run("missing source returns not found", func(t *testing.T) {
		svc, _, _, _, transformer := newTestService(t)

		_, err := svc.Trim(ctx, 42, 2, 7)
		assert.ErrorIs(t, err, ErrVideoNotFound)
		transformer.AssertNotCalled(t, "Trim")
	})

	t.Run("creates derived record and leaves source untouched", func(t *testing.T) {
		svc, repo, store, inspector, transformer := newTestService(t)
		src := uploadSource(t, svc, store, inspector)
		transformer.On("Trim", mock.Anything, src.Path, mock.Anything, 2.0, 7.0).
			Run(writeDst(t)).Return(nil)

		v, err := svc.Trim(ctx, src.ID, 2, 7)
		require.NoError(t, err)

		assert.Equal(t, "Trimmed_source.mp4", v.Title)
		assert.Equal(t, 5, v.Duration)
		assert.True(t, strings.HasPrefix(filepath.Base(v.Path), "trimmed_"))
		assert.True(t, store.Exists(v.Path))

		// Source unchanged and still present
		unchanged, err := repo.FindByID(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, src.Path, unchanged.Path)
		assert.Equal(t, src.Duration, unchanged.Duration)
		assert.True(t, store.Exists(src.Path))
	})

	t.Run("duration bounds are not re-checked on derived videos", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		src := uploadSource(t, svc, store, inspector)
		transformer.On("Trim", mock.Anything, src.Path, mock.Anything, 2.0, 4.0).
			Run(writeDst(t)).Return(nil)

		// 2 seconds is below the 5-second upload minimum
		v, err := svc.Trim(ctx, src.ID, 2, 4)
		require.NoError(t, err)
		assert.Equal(t, 2, v.Duration)
	})

	t.Run("transform failure cleans up output", func(t *testing.T) {
		svc, repo, store, inspector, transformer := newTestService(t)
		src := uploadSource(t, svc, store, inspector)

		var dst string
		transformer.On("Trim", mock.Anything, src.Path, mock.Anything, 2.0, 7.0).
			Run(func(args mock.Arguments) {
				dst = args.String(2)
				require.NoError(t, os.WriteFile(dst, []byte("partial"), 0640))
			}).
			Return(errors.New("ffmpeg exploded"))

		_, err := svc.Trim(ctx, src.ID, 2, 7)
		require.Error(t, err)
		assert.False(t, store.Exists(dst))

		videos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, videos, 1) // only the source
	})

	t.Run("insert failure after transform cleans up output", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		src := uploadSource(t, svc, store, inspector)
		svc.repo = &failingRepo{Repository: svc.repo}

		var dst string
		transformer.On("Trim", mock.Anything, src.Path, mock.Anything, 2.0, 7.0).
			Run(func(args mock.Arguments) {
				dst = args.String(2)
				require.NoError(t, os.WriteFile(dst, []byte("derived"), 0640))
			}).
			Return(nil)

		_, err := svc.Trim(ctx, src.ID, 2, 7)
		require.Error(t, err)
		assert.False(t, store.Exists(dst))
		assert.True(t, store.Exists(src.Path))
	})
}

func TestMerge(t *testing.T) {
	ctx := context.Background()

	// uploadClip inserts a video with the given duration.
	uploadClip := func(t *testing.T, svc *Service, store *storage.LocalStore, inspector *mockInspector, name string, duration float64) *Video {
		t.Helper()
		path := saveUpload(t, store, name)
		inspector.On("Duration", mock.Anything, path).Return(duration, nil)
		v, err := svc.Upload(ctx, path, name)
		require.NoError(t, err)
		return v
	}

	t.Run("requires at least two ids", func(t *testing.T) {
		svc, _, _, _, transformer := newTestService(t)

		_, err := svc.Merge(ctx, []int64{1})
		assert.ErrorIs(t, err, ErrTooFewVideos)
		transformer.AssertNotCalled(t, "Concat")
	})

	t.Run("reports missing ids", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		a := uploadClip(t, svc, store, inspector, "a.mp4", 10)

		_, err := svc.Merge(ctx, []int64{a.ID, 99})
		require.ErrorIs(t, err, ErrVideoNotFound)
		assert.Contains(t, err.Error(), "99")
		transformer.AssertNotCalled(t, "Concat")
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		a := uploadClip(t, svc, store, inspector, "a.mp4", 10)

		_, err := svc.Merge(ctx, []int64{a.ID, a.ID})
		require.ErrorIs(t, err, ErrVideoNotFound)
		transformer.AssertNotCalled(t, "Concat")
	})

	t.Run("reports ids with missing files", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		a := uploadClip(t, svc, store, inspector, "a.mp4", 10)
		b := uploadClip(t, svc, store, inspector, "b.mp4", 10)
		require.NoError(t, os.Remove(b.Path))

		_, err := svc.Merge(ctx, []int64{a.ID, b.ID})
		require.ErrorIs(t, err, ErrSourceFileMissing)
		transformer.AssertNotCalled(t, "Concat")
	})

	t.Run("sums durations in input order", func(t *testing.T) {
		svc, repo, store, inspector, transformer := newTestService(t)
		a := uploadClip(t, svc, store, inspector, "a.mp4", 10)
		b := uploadClip(t, svc, store, inspector, "b.mp4", 7)

		// Reversed order relative to creation: the request order wins
		transformer.On("Concat", mock.Anything, []string{b.Path, a.Path}, mock.Anything).
			Run(writeDst(t)).Return(nil)

		v, err := svc.Merge(ctx, []int64{b.ID, a.ID})
		require.NoError(t, err)

		assert.Equal(t, MergedTitle, v.Title)
		assert.Equal(t, 17, v.Duration)
		assert.True(t, strings.HasPrefix(filepath.Base(v.Path), "merged_"))
		assert.True(t, store.Exists(v.Path))

		// Sources untouched
		for _, src := range []*Video{a, b} {
			got, err := repo.FindByID(ctx, src.ID)
			require.NoError(t, err)
			assert.Equal(t, src.Path, got.Path)
			assert.True(t, store.Exists(src.Path))
		}
	})

	t.Run("transform failure cleans up output", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		a := uploadClip(t, svc, store, inspector, "a.mp4", 10)
		b := uploadClip(t, svc, store, inspector, "b.mp4", 10)

		var dst string
		transformer.On("Concat", mock.Anything, []string{a.Path, b.Path}, mock.Anything).
			Run(func(args mock.Arguments) {
				dst = args.String(2)
				require.NoError(t, os.WriteFile(dst, []byte("partial"), 0640))
			}).
			Return(errors.New("ffmpeg exploded"))

		_, err := svc.Merge(ctx, []int64{a.ID, b.ID})
		require.Error(t, err)
		assert.False(t, store.Exists(dst))
	})

	t.Run("insert failure cleans up output", func(t *testing.T) {
		svc, _, store, inspector, transformer := newTestService(t)
		a := uploadClip(t, svc, store, inspector, "a.mp4", 10)
		b := uploadClip(t, svc, store, inspector, "b.mp4", 10)
		svc.repo = &failingRepo{Repository: svc.repo}

		var dst string
		transformer.On("Concat", mock.Anything, []string{a.Path, b.Path}, mock.Anything).
			Run(func(args mock.Arguments) {
				dst = args.String(2)
				require.NoError(t, os.WriteFile(dst, []byte("derived"), 0640))
			}).
			Return(nil)

		_, err := svc.Merge(ctx, []int64{a.ID, b.ID})
		require.Error(t, err)
		assert.False(t, store.Exists(dst))
	})
}
