package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_videos",
		SQL: `
			CREATE TABLE IF NOT EXISTS videos (
				id          BIGSERIAL    PRIMARY KEY,
				title       TEXT         NOT NULL,
				path        TEXT         NOT NULL,
				duration    INTEGER      NOT NULL,
				created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				share_token TEXT         UNIQUE,
				expires_at  TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_videos_expires_at ON videos(expires_at);
		`,
	},
}

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a pgx-backed implementation of Repository.
// The underlying pgxpool is safe for concurrent use across requests.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a connection pool, verifies connectivity
// and returns a repository. Callers must Close it on shutdown.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
// Each migration runs inside a single transaction and is rolled back on
// any step failure.
func (r *PostgresRepository) RunMigrations(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := r.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Version, err)
		}

		logger.Info("applied migration", slog.String("version", m.Version))
	}

	return nil
}

// Ping verifies the database connection is alive.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// videoColumns is the column list shared by all SELECTs.
const videoColumns = "id, title, path, duration, created_at, share_token, expires_at"

// scanVideo scans one row into a Video.
func scanVideo(row pgx.Row) (*Video, error) {
	v := &Video{}
	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Path,
		&v.Duration,
		&v.CreatedAt,
		&v.ShareToken,
		&v.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Insert persists a new video record, filling in the store-assigned ID and
// creation timestamp.
func (r *PostgresRepository) Insert(ctx context.Context, v *Video) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO videos (title, path, duration)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, v.Title, v.Path, v.Duration).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// List returns all videos ordered by creation time, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*Video, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+videoColumns+" FROM videos ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// FindByID retrieves a video by its unique identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*Video, error) {
	v, err := scanVideo(r.pool.QueryRow(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

// FindByIDs retrieves all videos matching the given ids in one batch lookup.
func (r *PostgresRepository) FindByIDs(ctx context.Context, ids []int64) ([]*Video, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("batch get videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// Delete removes a video record by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM videos WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// SetShare sets the share token and expiry on a video, replacing any active share.
func (r *PostgresRepository) SetShare(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE videos SET share_token = $1, expires_at = $2 WHERE id = $3",
		token, expiresAt, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrShareTokenConflict
		}
		return fmt.Errorf("set share token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// FindByShareToken retrieves the video with a matching, still-valid share token.
func (r *PostgresRepository) FindByShareToken(ctx context.Context, token string, now time.Time) (*Video, error) {
	v, err := scanVideo(r.pool.QueryRow(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE share_token = $1 AND (expires_at IS NULL OR expires_at > $2)",
		token, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("get video by share token: %w", err)
	}
	return v, nil
}

// ClearExpiredShares clears the share token and expiry on every video whose
// expiry has passed.
func (r *PostgresRepository) ClearExpiredShares(ctx context.Context, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET share_token = NULL, expires_at = NULL WHERE expires_at IS NOT NULL AND expires_at < $1",
		now)
	if err != nil {
		return fmt.Errorf("clear expired share tokens: %w", err)
	}
	return nil
}
