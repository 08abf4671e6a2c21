package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/fedibridge/skybridge/internal/models"
)

type SyncedPostRepository interface {
	Create(ctx context.Context, sp *models.SyncedPost) (int64, error)
	GetByURI(ctx context.Context, uri string) (*models.SyncedPost, error)
	MarkSuccess(ctx context.Context, uri, mastodonID, mastodonURL string) error
	MarkFailed(ctx context.Context, uri, errorMessage string) error
	GetRecent(ctx context.Context, limit int) ([]*models.SyncedPost, error)
	GetFailed(ctx context.Context) ([]*models.SyncedPost, error)
	GetStats(ctx context.Context) (*models.SyncStats, error)
}

type syncedPostRepository struct {
	db *sql.DB
}

func NewSyncedPostRepository(db *sql.DB) SyncedPostRepository {
	return &syncedPostRepository{db: db}
}

const syncedPostColumns = `id, atproto_uri, atproto_cid, atproto_rkey, content_hash,
	mastodon_id, mastodon_url, sync_status, error_message, retry_count, max_retries,
	atproto_created_at, synced_at, created_at`

func (r *syncedPostRepository) Create(ctx context.Context, sp *models.SyncedPost) (int64, error) {
	query := `
		INSERT INTO synced_posts (atproto_uri, atproto_cid, atproto_rkey, content_hash,
			sync_status, retry_count, max_retries, atproto_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, sp.AtprotoURI, sp.AtprotoCID, sp.AtprotoRkey, sp.ContentHash,
		sp.SyncStatus, sp.RetryCount, sp.MaxRetries, sp.AtprotoCreatedAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *syncedPostRepository) GetByURI(ctx context.Context, uri string) (*models.SyncedPost, error) {
	query := `SELECT ` + syncedPostColumns + ` FROM synced_posts WHERE atproto_uri = $1`
	row := r.db.QueryRowContext(ctx, query, uri)

	sp, err := scanSyncedPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sp, nil
}

func (r *syncedPostRepository) MarkSuccess(ctx context.Context, uri, mastodonID, mastodonURL string) error {
	query := `
		UPDATE synced_posts
		SET sync_status = $1,
			mastodon_id = $2,
			mastodon_url = $3,
			error_message = NULL,
			synced_at = $4
		WHERE atproto_uri = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.SyncStatusSuccess, mastodonID, mastodonURL, time.Now().Unix(), uri)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *syncedPostRepository) MarkFailed(ctx context.Context, uri, errorMessage string) error {
	query := `
		UPDATE synced_posts
		SET sync_status = $1,
			error_message = $2,
			retry_count = 0
		WHERE atproto_uri = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.SyncStatusFailed, errorMessage, uri)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *syncedPostRepository) GetRecent(ctx context.Context, limit int) ([]*models.SyncedPost, error) {
	query := `SELECT ` + syncedPostColumns + ` FROM synced_posts ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectSyncedPosts(rows)
}

// GetFailed returns failed rows still eligible for an out-of-band retry
// sweep (retry_count below max_retries).
func (r *syncedPostRepository) GetFailed(ctx context.Context) ([]*models.SyncedPost, error) {
	query := `SELECT ` + syncedPostColumns + ` FROM synced_posts
		WHERE sync_status = $1 AND retry_count < max_retries
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, models.SyncStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectSyncedPosts(rows)
}

func (r *syncedPostRepository) GetStats(ctx context.Context) (*models.SyncStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE sync_status = 'success'),
			COUNT(*) FILTER (WHERE sync_status = 'failed'),
			COUNT(*) FILTER (WHERE sync_status = 'pending')
		FROM synced_posts
	`
	row := r.db.QueryRowContext(ctx, query)

	var stats models.SyncStats
	if err := row.Scan(&stats.Total, &stats.Success, &stats.Failed, &stats.Pending); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncedPost(row rowScanner) (*models.SyncedPost, error) {
	var sp models.SyncedPost
	err := row.Scan(&sp.ID, &sp.AtprotoURI, &sp.AtprotoCID, &sp.AtprotoRkey, &sp.ContentHash,
		&sp.MastodonID, &sp.MastodonURL, &sp.SyncStatus, &sp.ErrorMessage, &sp.RetryCount, &sp.MaxRetries,
		&sp.AtprotoCreatedAt, &sp.SyncedAt, &sp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func collectSyncedPosts(rows *sql.Rows) ([]*models.SyncedPost, error) {
	var sps []*models.SyncedPost
	for rows.Next() {
		sp, err := scanSyncedPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		sps = append(sps, sp)
	}
	return sps, rows.Err()
}
