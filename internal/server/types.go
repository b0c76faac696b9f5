// Package server provides the HTTP layer for the video management API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rmarchal/videovault/internal/video"
)

// errNotNumeric is returned when a Seconds value cannot be parsed.
var errNotNumeric = errors.New("value must be a number")

// Seconds is a float64 that accepts both JSON numbers and numeric strings,
// mirroring the loose coercion clients of this API rely on.
type Seconds float64

// UnmarshalJSON parses a JSON number or a quoted numeric string.
func (s *Seconds) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	raw = strings.Trim(raw, `"`)
	if raw == "" || raw == "null" {
		return errNotNumeric
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errNotNumeric
	}
	*s = Seconds(f)
	return nil
}

// TrimRequest is the HTTP request body for trimming a video.
// Fields stay raw so presence is checked before numeric coercion.
type TrimRequest struct {
	StartTime json.RawMessage `json:"startTime"`
	EndTime   json.RawMessage `json:"endTime"`
}

// MergeRequest is the HTTP request body for merging videos.
type MergeRequest struct {
	VideoIDs []int64 `json:"videoIds" validate:"required,min=2"`
}

// ShareRequest is the HTTP request body for generating a share link.
// Hours falls back to the configured default when omitted.
type ShareRequest struct {
	Hours int `json:"hours" validate:"omitempty,min=1,max=8760"`
}

// VideoResponse is the wire representation of a video record.
type VideoResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// newVideoResponse converts a domain record to its wire form.
func newVideoResponse(v *video.Video) VideoResponse {
	return VideoResponse{
		ID:        v.ID,
		Title:     v.Title,
		Path:      v.Path,
		Duration:  v.Duration,
		CreatedAt: v.CreatedAt,
	}
}

// UploadResponse is the HTTP response after a successful upload, trim or merge.
type UploadResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Video   VideoResponse `json:"video"`
}

// ListResponse is the HTTP response for listing videos.
type ListResponse struct {
	Success bool            `json:"success"`
	Videos  []VideoResponse `json:"videos"`
}

// ShareResponse is the HTTP response after generating a share link.
type ShareResponse struct {
	Success       bool      `json:"success"`
	ShareableLink string    `json:"shareable_link"`
	FrontendLink  string    `json:"frontend_link"`
	ExpiresAt     time.Time `json:"expires_at"`
	ExpiresIn     string    `json:"expires_in"`
}

// SharedVideoBody is the read-only view of a shared video.
type SharedVideoBody struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
}

// SharedVideoResponse is the HTTP response for resolving a share token.
type SharedVideoResponse struct {
	Success bool            `json:"success"`
	Video   SharedVideoBody `json:"video"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is always true; clients branch on this flag.
	Error bool `json:"error"`
	// Message is the human-readable error message.
	Message string `json:"message"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
