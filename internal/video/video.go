// Package video provides the Video record, its persistence ports,
// the lifecycle service orchestrating upload/list/trim/merge, and the
// share-token manager for time-boxed unauthenticated access.
package video

import "time"

// Titles synthesized for derived videos.
const (
	// TrimmedTitlePrefix is prepended to the source title for trimmed videos.
	TrimmedTitlePrefix = "Trimmed_"
	// MergedTitle is the title given to merged videos.
	MergedTitle = "Merged_Video"
)

// Video is the metadata record describing one stored video, original or derived.
type Video struct {
	// ID is assigned by the metadata store on insert and is immutable.
	ID int64 `json:"id"`
	// Title is the original filename for uploads, or a synthesized name
	// (Trimmed_<title>, Merged_Video) for derived videos.
	Title string `json:"title"`
	// Path is the blob-store location of the backing file.
	Path string `json:"path"`
	// Duration is the video length in whole seconds.
	Duration int `json:"duration"`
	// CreatedAt is set by the store at insert time.
	CreatedAt time.Time `json:"created_at"`
	// ShareToken is present only while a share link is active.
	ShareToken *string `json:"-"`
	// ExpiresAt pairs with ShareToken; nil means the share never expires.
	ExpiresAt *time.Time `json:"-"`
}

// Clone returns a deep copy of the video.
func (v *Video) Clone() *Video {
	if v == nil {
		return nil
	}
	clone := *v
	if v.ShareToken != nil {
		token := *v.ShareToken
		clone.ShareToken = &token
	}
	if v.ExpiresAt != nil {
		expires := *v.ExpiresAt
		clone.ExpiresAt = &expires
	}
	return &clone
}

// ShareActive reports whether the video has a share token that is valid at
// the given instant. A nil expiry means the share never expires.
func (v *Video) ShareActive(now time.Time) bool {
	if v.ShareToken == nil {
		return false
	}
	return v.ExpiresAt == nil || v.ExpiresAt.After(now)
}
