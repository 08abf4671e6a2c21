package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/fedibridge/skybridge/internal/models"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, bool, error)
	Create(ctx context.Context, s *models.Settings) (int64, error)
	Update(ctx context.Context, s *models.Settings) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, bool, error) {
	query := `
		SELECT id, sync_enabled, skip_mentions, post_visibility, sync_interval_minutes, created_at, updated_at
		FROM settings
		ORDER BY id
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query)

	var s models.Settings
	err := row.Scan(&s.ID, &s.SyncEnabled, &s.SkipMentions, &s.PostVisibility, &s.SyncIntervalMinutes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}

	return &s, true, nil
}

func (r *settingsRepository) Create(ctx context.Context, s *models.Settings) (int64, error) {
	query := `
		INSERT INTO settings (sync_enabled, skip_mentions, post_visibility, sync_interval_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, s.SyncEnabled, s.SkipMentions, s.PostVisibility, s.SyncIntervalMinutes).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *settingsRepository) Update(ctx context.Context, s *models.Settings) error {
	query := `
		UPDATE settings
		SET sync_enabled = $1,
			skip_mentions = $2,
			post_visibility = $3,
			sync_interval_minutes = $4,
			updated_at = $5
	`
	_, err := r.db.ExecContext(ctx, query, s.SyncEnabled, s.SkipMentions, s.PostVisibility, s.SyncIntervalMinutes, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
