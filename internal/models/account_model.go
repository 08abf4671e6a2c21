package models

import (
	"database/sql"
	"time"
)

// Account is the single bridged account pair: one Bluesky identity on the
// source side, one Mastodon identity on the destination side. Tokens are
// stored AES-GCM encrypted.
type Account struct {
	ID                  int64          `db:"id" json:"id"`
	BlueskyDID          string         `db:"bluesky_did" json:"bluesky_did"`
	BlueskyHandle       string         `db:"bluesky_handle" json:"bluesky_handle"`
	BlueskyAppPassword  string         `db:"bluesky_app_password" json:"-"`
	BlueskyPDS          string         `db:"bluesky_pds" json:"bluesky_pds"`
	MastodonServer      string         `db:"mastodon_server" json:"mastodon_server"`
	MastodonUsername    string         `db:"mastodon_username" json:"mastodon_username"`
	MastodonAccessToken string         `db:"mastodon_access_token" json:"-"`
	SetupCompleted      bool           `db:"setup_completed" json:"setup_completed"`
	LastSyncAt          sql.NullTime   `db:"last_sync_at" json:"last_sync_at"`
	LastSyncCursor      sql.NullString `db:"last_sync_cursor" json:"last_sync_cursor"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}
