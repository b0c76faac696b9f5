package video

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; the Postgres repository is the
// production implementation.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[int64]*Video
	nextID int64
}

// NewMemoryRepository creates a new in-memory video repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos: make(map[int64]*Video),
		nextID: 1,
	}
}

// Insert persists a video, assigning a sequential ID and creation timestamp.
func (r *MemoryRepository) Insert(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Enforce the share_token uniqueness constraint like the real store.
	if v.ShareToken != nil {
		for _, existing := range r.videos {
			if existing.ShareToken != nil && *existing.ShareToken == *v.ShareToken {
				return ErrShareTokenConflict
			}
		}
	}

	v.ID = r.nextID
	r.nextID++
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	r.videos[v.ID] = v.Clone()
	return nil
}

// List returns all videos ordered by creation time, newest first.
// Returns clones to prevent external mutations.
func (r *MemoryRepository) List(_ context.Context) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Video, 0, len(r.videos))
	for _, v := range r.videos {
		result = append(result, v.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// FindByID retrieves a video by its ID.
func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	return v.Clone(), nil
}

// FindByIDs retrieves all videos matching the given ids.
// Missing ids are simply absent from the result.
func (r *MemoryRepository) FindByIDs(_ context.Context, ids []int64) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]bool, len(ids))
	result := make([]*Video, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if v, ok := r.videos[id]; ok {
			result = append(result, v.Clone())
		}
	}
	return result, nil
}

// Delete removes a video record.
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[id]; !ok {
		return ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}

// SetShare sets the share token and expiry on a video.
func (r *MemoryRepository) SetShare(_ context.Context, id int64, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for otherID, other := range r.videos {
		if otherID != id && other.ShareToken != nil && *other.ShareToken == token {
			return ErrShareTokenConflict
		}
	}

	v, ok := r.videos[id]
	if !ok {
		return ErrVideoNotFound
	}
	v.ShareToken = &token
	v.ExpiresAt = &expiresAt
	return nil
}

// FindByShareToken retrieves the video with a matching, still-valid share token.
func (r *MemoryRepository) FindByShareToken(_ context.Context, token string, now time.Time) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.videos {
		if v.ShareToken != nil && *v.ShareToken == token && v.ShareActive(now) {
			return v.Clone(), nil
		}
	}
	return nil, ErrVideoNotFound
}

// ClearExpiredShares clears the share token and expiry on every video whose
// expiry has passed.
func (r *MemoryRepository) ClearExpiredShares(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.videos {
		if v.ExpiresAt != nil && v.ExpiresAt.Before(now) {
			v.ShareToken = nil
			v.ExpiresAt = nil
		}
	}
	return nil
}
