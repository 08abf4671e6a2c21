package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/fedibridge/skybridge/internal/models"
)

type SyncLogRepository interface {
	Create(ctx context.Context, l *models.SyncLog) (int64, error)
	GetRecent(ctx context.Context, limit int) ([]*models.SyncLog, error)
}

type syncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Create(ctx context.Context, l *models.SyncLog) (int64, error) {
	query := `
		INSERT INTO sync_logs (sync_type, posts_fetched, posts_synced, posts_failed, posts_skipped,
			error_message, duration_ms, cursor_start, cursor_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, l.SyncType, l.PostsFetched, l.PostsSynced, l.PostsFailed, l.PostsSkipped,
		l.ErrorMessage, l.DurationMs, l.CursorStart, l.CursorEnd).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *syncLogRepository) GetRecent(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	query := `
		SELECT id, sync_type, posts_fetched, posts_synced, posts_failed, posts_skipped,
			error_message, duration_ms, cursor_start, cursor_end, created_at
		FROM sync_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var logs []*models.SyncLog
	for rows.Next() {
		var l models.SyncLog
		err := rows.Scan(&l.ID, &l.SyncType, &l.PostsFetched, &l.PostsSynced, &l.PostsFailed, &l.PostsSkipped,
			&l.ErrorMessage, &l.DurationMs, &l.CursorStart, &l.CursorEnd, &l.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
