package models

import (
	"database/sql"
	"time"
)

// SyncedPost tracks one cross-post attempt per source post. The unique
// atproto_uri column is what makes repeated sync runs idempotent.
type SyncedPost struct {
	ID               int64          `db:"id" json:"id"`
	AtprotoURI       string         `db:"atproto_uri" json:"atproto_uri"`
	AtprotoCID       string         `db:"atproto_cid" json:"atproto_cid"`
	AtprotoRkey      string         `db:"atproto_rkey" json:"atproto_rkey"`
	ContentHash      string         `db:"content_hash" json:"content_hash"`
	MastodonID       sql.NullString `db:"mastodon_id" json:"mastodon_id"`
	MastodonURL      sql.NullString `db:"mastodon_url" json:"mastodon_url"`
	SyncStatus       string         `db:"sync_status" json:"sync_status"`
	ErrorMessage     sql.NullString `db:"error_message" json:"error_message"`
	RetryCount       int            `db:"retry_count" json:"retry_count"`
	MaxRetries       int            `db:"max_retries" json:"max_retries"`
	AtprotoCreatedAt int64          `db:"atproto_created_at" json:"atproto_created_at"`
	SyncedAt         sql.NullInt64  `db:"synced_at" json:"synced_at"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

const (
	SyncStatusPending = "pending"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)

// SyncStats is an aggregate over synced_posts used by the status endpoint.
type SyncStats struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}
