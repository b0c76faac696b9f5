// Package bootstrap provides dependency initialization for the video API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rmarchal/videovault/internal/config"
	"github.com/rmarchal/videovault/internal/media"
	"github.com/rmarchal/videovault/internal/storage"
	"github.com/rmarchal/videovault/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Repo         *video.PostgresRepository
	Store        storage.Store
	VideoService *video.Service
	Shares       *video.ShareManager
}

// NewDependencies creates and initializes all dependencies for the application.
// A database that cannot be reached is a fatal startup error.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	repo, err := video.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	if err := repo.RunMigrations(ctx, logger); err != nil {
		repo.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("connected to metadata store")

	store, err := initStorage(cfg, logger)
	if err != nil {
		repo.Close()
		return nil, err
	}

	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)

	svc := video.NewService(repo, store, ffmpeg, ffmpeg, logger,
		video.WithDurationBounds(cfg.MinDurationSec, cfg.MaxDurationSec),
	)
	shares := video.NewShareManager(repo, cfg.BaseURL, cfg.FrontendURL, cfg.ShareExpiryHours, logger)

	return &Dependencies{
		Repo:         repo,
		Store:        store,
		VideoService: svc,
		Shares:       shares,
	}, nil
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.Repo != nil {
		d.Repo.Close()
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.UploadDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 archive configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("upload_dir", cfg.UploadDir),
	)
	return localStore, nil
}
