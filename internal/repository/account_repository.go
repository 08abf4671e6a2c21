package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/fedibridge/skybridge/internal/models"
)

type AccountRepository interface {
	Get(ctx context.Context) (*models.Account, error)
	Create(ctx context.Context, a *models.Account) (int64, error)
	UpdateSyncState(ctx context.Context, lastSyncAt time.Time, cursor string) error
	SetSetupCompleted(ctx context.Context, completed bool) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Get returns the bridged account. The deployment holds at most one row;
// (nil, nil) means setup has never run.
func (r *accountRepository) Get(ctx context.Context) (*models.Account, error) {
	query := `
		SELECT id, bluesky_did, bluesky_handle, bluesky_app_password, bluesky_pds,
		       mastodon_server, mastodon_username, mastodon_access_token,
		       setup_completed, last_sync_at, last_sync_cursor, created_at, updated_at
		FROM accounts
		ORDER BY id
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query)

	var a models.Account
	err := row.Scan(&a.ID, &a.BlueskyDID, &a.BlueskyHandle, &a.BlueskyAppPassword, &a.BlueskyPDS,
		&a.MastodonServer, &a.MastodonUsername, &a.MastodonAccessToken,
		&a.SetupCompleted, &a.LastSyncAt, &a.LastSyncCursor, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &a, nil
}

func (r *accountRepository) Create(ctx context.Context, a *models.Account) (int64, error) {
	query := `
		INSERT INTO accounts (bluesky_did, bluesky_handle, bluesky_app_password, bluesky_pds,
			mastodon_server, mastodon_username, mastodon_access_token, setup_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, a.BlueskyDID, a.BlueskyHandle, a.BlueskyAppPassword, a.BlueskyPDS,
		a.MastodonServer, a.MastodonUsername, a.MastodonAccessToken, a.SetupCompleted).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *accountRepository) UpdateSyncState(ctx context.Context, lastSyncAt time.Time, cursor string) error {
	query := `
		UPDATE accounts
		SET last_sync_at = $1,
			last_sync_cursor = $2,
			updated_at = $3
	`
	_, err := r.db.ExecContext(ctx, query, lastSyncAt, sql.NullString{String: cursor, Valid: cursor != ""}, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *accountRepository) SetSetupCompleted(ctx context.Context, completed bool) error {
	query := `UPDATE accounts SET setup_completed = $1, updated_at = $2`
	_, err := r.db.ExecContext(ctx, query, completed, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
