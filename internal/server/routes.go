package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// APIToken is the shared-secret credential for authenticated routes.
	APIToken string
	// UploadDir is the directory served read-only under /uploads/.
	UploadDir string
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		UploadDir:      "uploads",
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing. Share resolution,
// health and the static uploads directory are open; everything else requires
// the shared-secret credential.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Open routes
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /videos/share/{token}", h.SharedVideo)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.UploadDir))))

	// Authenticated routes
	auth := AuthMiddleware(cfg.APIToken)
	mux.Handle("POST /videos/upload", auth(http.HandlerFunc(h.Upload)))
	mux.Handle("GET /videos", auth(http.HandlerFunc(h.ListVideos)))
	mux.Handle("POST /videos/{id}/trim", auth(http.HandlerFunc(h.Trim)))
	mux.Handle("POST /videos/merge", auth(http.HandlerFunc(h.Merge)))
	mux.Handle("POST /videos/{id}/share", auth(http.HandlerFunc(h.Share)))

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
