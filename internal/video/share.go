package video

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// shareTokenBytes is the number of random bytes in a share token.
// Hex-encoded this yields 16 characters.
const shareTokenBytes = 8

// ShareLink is the result of generating a share link for a video.
type ShareLink struct {
	// Token is the raw share token embedded in both links.
	Token string
	// ShareableLink is the machine-facing API resource URL.
	ShareableLink string
	// FrontendLink is the human-facing viewer URL.
	FrontendLink string
	// ExpiresAt is the absolute expiry time.
	ExpiresAt time.Time
	// ExpiresIn is a human-readable relative expiry, e.g. "in 24 hours".
	ExpiresIn string
}

// SharedVideo is the read-only view returned when resolving a share token.
type SharedVideo struct {
	// Video is the underlying record.
	Video *Video
	// URL is the direct file-access URL for the backing file.
	URL string
}

// ShareManager issues, resolves and garbage-collects time-boxed share tokens.
// Generating a new token while one is active simply overwrites it; nothing
// revokes a share early.
type ShareManager struct {
	repo         Repository
	baseURL      string
	frontendURL  string
	defaultHours int
	logger       *slog.Logger

	// now is injectable for expiry tests.
	now func() time.Time
}

// ShareOption is a function that configures a ShareManager instance.
type ShareOption func(*ShareManager)

// WithClock overrides the time source, for tests with a simulated clock.
func WithClock(now func() time.Time) ShareOption {
	return func(m *ShareManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewShareManager creates a new share token manager.
// baseURL is the API origin used for shareable links; frontendURL is the
// viewer origin used for human-facing links.
func NewShareManager(repo Repository, baseURL, frontendURL string, defaultHours int, logger *slog.Logger, opts ...ShareOption) *ShareManager {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultHours <= 0 {
		defaultHours = 24
	}
	m := &ShareManager{
		repo:         repo,
		baseURL:      baseURL,
		frontendURL:  frontendURL,
		defaultHours: defaultHours,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate issues a fresh share token for the video, valid for the given
// number of hours (the configured default when hours <= 0).
func (m *ShareManager) Generate(ctx context.Context, id int64, hours int) (*ShareLink, error) {
	if hours <= 0 {
		hours = m.defaultHours
	}

	if _, err := m.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate share token: %w", err)
	}

	expiresAt := m.now().Add(time.Duration(hours) * time.Hour)
	if err := m.repo.SetShare(ctx, id, token, expiresAt); err != nil {
		return nil, err
	}

	m.logger.Info("share link generated",
		slog.Int64("video_id", id),
		slog.Time("expires_at", expiresAt),
	)

	return &ShareLink{
		Token:         token,
		ShareableLink: fmt.Sprintf("%s/videos/share/%s", m.baseURL, token),
		FrontendLink:  fmt.Sprintf("%s/share/%s", m.frontendURL, token),
		ExpiresAt:     expiresAt,
		ExpiresIn:     relativeExpiry(hours),
	}, nil
}

// Resolve returns the video behind a share token, if the token exists and
// has not expired. Before looking up, it opportunistically clears every
// expired token in the store; there is no background sweep.
func (m *ShareManager) Resolve(ctx context.Context, token string) (*SharedVideo, error) {
	if err := m.repo.ClearExpiredShares(ctx, m.now()); err != nil {
		return nil, fmt.Errorf("sweep expired share tokens: %w", err)
	}

	v, err := m.repo.FindByShareToken(ctx, token, m.now())
	if err != nil {
		return nil, err
	}

	return &SharedVideo{
		Video: v,
		URL:   fmt.Sprintf("%s/uploads/%s", m.baseURL, filepath.Base(v.Path)),
	}, nil
}

// newToken returns a hex share token drawn from a cryptographically strong
// random source.
func newToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto/rand failure: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// relativeExpiry renders a duration in hours as a short human-readable phrase.
func relativeExpiry(hours int) string {
	switch {
	case hours%24 == 0 && hours >= 24:
		days := hours / 24
		if days == 1 {
			return "in 1 day"
		}
		return fmt.Sprintf("in %d days", days)
	case hours == 1:
		return "in 1 hour"
	default:
		return fmt.Sprintf("in %d hours", hours)
	}
}
