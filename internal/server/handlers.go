package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rmarchal/videovault/internal/storage"
	"github.com/rmarchal/videovault/internal/video"
)

// allowedExtensions is the upload allow-list by file extension.
var allowedExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true,
	".avi": true, ".wmv": true, ".webm": true,
}

// allowedMimeTypes is the upload allow-list by declared MIME type.
// application/octet-stream is allowed because some systems detect MKV as
// octet-stream; the extension check still applies on its own.
var allowedMimeTypes = map[string]bool{
	"video/mp4":                true,
	"video/mkv":                true,
	"video/x-matroska":         true,
	"video/quicktime":          true,
	"video/avi":                true,
	"video/x-msvideo":          true,
	"video/x-ms-wmv":           true,
	"video/webm":               true,
	"application/octet-stream": true,
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *video.Service
	shares         *video.ShareManager
	store          storage.Store
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes overrides the maximum accepted upload size in bytes.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *video.Service, shares *video.ShareManager, store storage.Store, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		shares:         shares,
		store:          store,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 25 << 20, // 25 MiB
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Message: "Server is running"})
}

// Upload handles POST /videos/upload requests.
// It expects a multipart form with the file in the "video" field.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "Upload error: file exceeds the maximum allowed size")
			return
		}
		writeError(w, http.StatusBadRequest, "Upload error: malformed multipart form")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No video file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType := header.Header.Get("Content-Type")
	if !allowedExtensions[ext] && !allowedMimeTypes[mimeType] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"Invalid file type. Allowed extensions: %s", strings.Join(extensionList(), ", ")))
		return
	}

	path, err := h.store.Save(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Error("failed to store upload",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	v, err := h.service.Upload(r.Context(), path, header.Filename)
	if err != nil {
		if errors.Is(err, video.ErrDurationOutOfRange) {
			writeError(w, http.StatusBadRequest, capitalize(err.Error()))
			return
		}
		h.logger.Error("upload failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to process uploaded video")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Success: true,
		Message: "Video uploaded successfully",
		Video:   newVideoResponse(v),
	})
}

// ListVideos handles GET /videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list videos", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to fetch videos")
		return
	}

	out := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, newVideoResponse(v))
	}
	writeJSON(w, http.StatusOK, ListResponse{Success: true, Videos: out})
}

// Trim handles POST /videos/{id}/trim requests.
func (h *Handlers) Trim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	var req TrimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Start time and end time are required")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
		}
		return
	}
	if len(req.StartTime) == 0 || len(req.EndTime) == 0 {
		writeError(w, http.StatusBadRequest, "Start time and end time are required")
		return
	}

	var start, end Seconds
	if json.Unmarshal(req.StartTime, &start) != nil || json.Unmarshal(req.EndTime, &end) != nil {
		writeError(w, http.StatusBadRequest, "Start time and end time must be numbers")
		return
	}

	v, err := h.service.Trim(r.Context(), id, float64(start), float64(end))
	if err != nil {
		switch {
		case errors.Is(err, video.ErrEndNotAfterStart),
			errors.Is(err, video.ErrNegativeStart),
			errors.Is(err, video.ErrEndBeyondDuration):
			writeError(w, http.StatusBadRequest, capitalize(err.Error()))
		case errors.Is(err, video.ErrVideoNotFound):
			writeError(w, http.StatusNotFound, "Video not found")
		default:
			h.logger.Error("trim failed",
				slog.Int64("video_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "Failed to trim video")
		}
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Success: true,
		Message: "Video trimmed successfully",
		Video:   newVideoResponse(v),
	})
}

// Merge handles POST /videos/merge requests.
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "At least 2 video ids are required")
		return
	}

	v, err := h.service.Merge(r.Context(), req.VideoIDs)
	if err != nil {
		switch {
		case errors.Is(err, video.ErrTooFewVideos):
			writeError(w, http.StatusBadRequest, capitalize(err.Error()))
		case errors.Is(err, video.ErrVideoNotFound),
			errors.Is(err, video.ErrSourceFileMissing):
			writeError(w, http.StatusNotFound, capitalize(err.Error()))
		default:
			h.logger.Error("merge failed",
				slog.Any("video_ids", req.VideoIDs),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "Failed to merge videos")
		}
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Success: true,
		Message: "Videos merged successfully",
		Video:   newVideoResponse(v),
	})
}

// Share handles POST /videos/{id}/share requests.
// The body is optional; an omitted hours field falls back to the default.
func (h *Handlers) Share(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Hours must be between 1 and 8760")
		return
	}

	link, err := h.shares.Generate(r.Context(), id, req.Hours)
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		h.logger.Error("share link generation failed",
			slog.Int64("video_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to generate share link")
		return
	}

	writeJSON(w, http.StatusOK, ShareResponse{
		Success:       true,
		ShareableLink: link.ShareableLink,
		FrontendLink:  link.FrontendLink,
		ExpiresAt:     link.ExpiresAt,
		ExpiresIn:     link.ExpiresIn,
	})
}

// SharedVideo handles GET /videos/share/{token} requests.
// This is the one endpoint exempt from the credential check.
func (h *Handlers) SharedVideo(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeError(w, http.StatusNotFound, "Video not found or link has expired")
		return
	}

	shared, err := h.shares.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "Video not found or link has expired")
			return
		}
		h.logger.Error("share resolution failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to resolve share link")
		return
	}

	writeJSON(w, http.StatusOK, SharedVideoResponse{
		Success: true,
		Video: SharedVideoBody{
			ID:        shared.Video.ID,
			Title:     shared.Video.Title,
			Duration:  shared.Video.Duration,
			CreatedAt: shared.Video.CreatedAt,
			URL:       shared.URL,
		},
	})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// extensionList returns the allowed extensions in stable order for messages.
func extensionList() []string {
	return []string{".mp4", ".mkv", ".mov", ".avi", ".wmv", ".webm"}
}

// capitalize upper-cases the first letter of a message for client display.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   true,
		Message: message,
	})
}
