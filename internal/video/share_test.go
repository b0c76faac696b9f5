package video

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable time source for expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestShareManager(t *testing.T) (*ShareManager, *MemoryRepository, *fakeClock) {
	t.Helper()
	repo := NewMemoryRepository()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewShareManager(repo, "http://localhost:8080", "http://localhost:3000", 24, nil,
		WithClock(clock.Now))
	return m, repo, clock
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a token with the default expiry", func(t *testing.T) {
		m, repo, clock := newTestShareManager(t)
		v := insertVideo(t, repo, "a.mp4")

		link, err := m.Generate(ctx, v.ID, 0)
		require.NoError(t, err)

		assert.Len(t, link.Token, 16)
		_, err = hex.DecodeString(link.Token)
		assert.NoError(t, err)

		assert.Equal(t, "http://localhost:8080/videos/share/"+link.Token, link.ShareableLink)
		assert.Equal(t, "http://localhost:3000/share/"+link.Token, link.FrontendLink)
		assert.True(t, link.ExpiresAt.Equal(clock.Now().Add(24*time.Hour)))
		assert.Equal(t, "in 1 day", link.ExpiresIn)

		stored, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ShareToken)
		assert.Equal(t, link.Token, *stored.ShareToken)
	})

	t.Run("custom expiry hours", func(t *testing.T) {
		m, repo, clock := newTestShareManager(t)
		v := insertVideo(t, repo, "a.mp4")

		link, err := m.Generate(ctx, v.ID, 3)
		require.NoError(t, err)
		assert.True(t, link.ExpiresAt.Equal(clock.Now().Add(3*time.Hour)))
		assert.Equal(t, "in 3 hours", link.ExpiresIn)
	})

	t.Run("unknown video", func(t *testing.T) {
		m, _, _ := newTestShareManager(t)
		_, err := m.Generate(ctx, 99, 0)
		assert.ErrorIs(t, err, ErrVideoNotFound)
	})

	t.Run("regenerating invalidates the previous token", func(t *testing.T) {
		m, repo, _ := newTestShareManager(t)
		v := insertVideo(t, repo, "a.mp4")

		first, err := m.Generate(ctx, v.ID, 0)
		require.NoError(t, err)
		second, err := m.Generate(ctx, v.ID, 0)
		require.NoError(t, err)
		assert.NotEqual(t, first.Token, second.Token)

		_, err = m.Resolve(ctx, first.Token)
		assert.ErrorIs(t, err, ErrVideoNotFound)

		shared, err := m.Resolve(ctx, second.Token)
		require.NoError(t, err)
		assert.Equal(t, v.ID, shared.Video.ID)
	})

	t.Run("tokens are unique across videos", func(t *testing.T) {
		m, repo, _ := newTestShareManager(t)
		seen := make(map[string]bool)
		for i := 0; i < 10; i++ {
			v := insertVideo(t, repo, "clip.mp4")
			link, err := m.Generate(ctx, v.ID, 0)
			require.NoError(t, err)
			assert.False(t, seen[link.Token])
			seen[link.Token] = true
		}
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("active token resolves with a file URL", func(t *testing.T) {
		m, repo, _ := newTestShareManager(t)
		v := insertVideo(t, repo, "a.mp4")
		link, err := m.Generate(ctx, v.ID, 0)
		require.NoError(t, err)

		shared, err := m.Resolve(ctx, link.Token)
		require.NoError(t, err)
		assert.Equal(t, v.ID, shared.Video.ID)
		assert.Equal(t, "http://localhost:8080/uploads/a.mp4", shared.URL)
	})

	t.Run("file URL uses the serving route, not the storage path", func(t *testing.T) {
		m, repo, _ := newTestShareManager(t)
		v := &Video{Title: "a.mp4", Path: "/var/data/blobs/1712050000123_a1b2c3d4.mp4", Duration: 10}
		require.NoError(t, repo.Insert(context.Background(), v))
		link, err := m.Generate(ctx, v.ID, 0)
		require.NoError(t, err)

		shared, err := m.Resolve(ctx, link.Token)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/uploads/1712050000123_a1b2c3d4.mp4", shared.URL)
	})

	t.Run("unknown token", func(t *testing.T) {
		m, _, _ := newTestShareManager(t)
		_, err := m.Resolve(ctx, "deadbeefdeadbeef")
		assert.ErrorIs(t, err, ErrVideoNotFound)
	})

	t.Run("expired token is rejected and swept", func(t *testing.T) {
		m, repo, clock := newTestShareManager(t)
		v := insertVideo(t, repo, "a.mp4")
		link, err := m.Generate(ctx, v.ID, 1)
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)

		_, err = m.Resolve(ctx, link.Token)
		assert.ErrorIs(t, err, ErrVideoNotFound)

		// The sweep clears the token from the record itself
		stored, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ShareToken)
		assert.Nil(t, stored.ExpiresAt)
	})

	t.Run("token stays valid until the expiry instant", func(t *testing.T) {
		m, repo, clock := newTestShareManager(t)
		v := insertVideo(t, repo, "a.mp4")
		link, err := m.Generate(ctx, v.ID, 1)
		require.NoError(t, err)

		clock.Advance(59 * time.Minute)

		shared, err := m.Resolve(ctx, link.Token)
		require.NoError(t, err)
		assert.Equal(t, v.ID, shared.Video.ID)
	})
}

func TestRelativeExpiry(t *testing.T) {
	tests := []struct {
		hours int
		want  string
	}{
		{1, "in 1 hour"},
		{3, "in 3 hours"},
		{24, "in 1 day"},
		{48, "in 2 days"},
		{36, "in 36 hours"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeExpiry(tt.hours))
	}
}
