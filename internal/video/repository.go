package video

import (
	"context"
	"errors"
	"time"
)

// Static errors shared by repository implementations.
var (
	// ErrVideoNotFound is returned when a video cannot be found by ID.
	ErrVideoNotFound = errors.New("video not found")
	// ErrShareTokenConflict is returned when a generated share token collides
	// with an existing one (store-level uniqueness constraint).
	ErrShareTokenConflict = errors.New("share token already in use")
)

// Repository defines the interface for video metadata persistence.
// It acts as a port in the hexagonal architecture pattern; implementations
// must be safe for concurrent use.
type Repository interface {
	// Insert persists a new video record. The store assigns ID and
	// CreatedAt and fills them in on the passed record.
	Insert(ctx context.Context, v *Video) error

	// List returns all videos ordered by creation time, newest first.
	List(ctx context.Context) ([]*Video, error)

	// FindByID retrieves a video by its unique identifier.
	// Returns ErrVideoNotFound if the video does not exist.
	FindByID(ctx context.Context, id int64) (*Video, error)

	// FindByIDs retrieves all videos matching the given ids in a single
	// batch lookup. Missing ids are simply absent from the result; the
	// result order is unspecified.
	FindByIDs(ctx context.Context, ids []int64) ([]*Video, error)

	// Delete removes a video record.
	// Returns ErrVideoNotFound if the video does not exist.
	Delete(ctx context.Context, id int64) error

	// SetShare sets the share token and expiry on a video, replacing any
	// active share. Returns ErrVideoNotFound if no row was updated and
	// ErrShareTokenConflict on a token uniqueness violation.
	SetShare(ctx context.Context, id int64, token string, expiresAt time.Time) error

	// FindByShareToken retrieves the video whose share token matches and is
	// still valid at now (expiry in the future, or no expiry at all).
	// Returns ErrVideoNotFound if none matches.
	FindByShareToken(ctx context.Context, token string, now time.Time) (*Video, error)

	// ClearExpiredShares clears the share token and expiry on every video
	// whose expiry has passed at now.
	ClearExpiredShares(ctx context.Context, now time.Time) error
}
