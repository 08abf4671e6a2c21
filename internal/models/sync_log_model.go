package models

import (
	"database/sql"
	"time"
)

// SyncLog is an append-only summary of a single sync run. Rows are never
// updated after creation.
type SyncLog struct {
	ID           int64          `db:"id" json:"id"`
	SyncType     string         `db:"sync_type" json:"sync_type"` // manual, cron, webhook
	PostsFetched int            `db:"posts_fetched" json:"posts_fetched"`
	PostsSynced  int            `db:"posts_synced" json:"posts_synced"`
	PostsFailed  int            `db:"posts_failed" json:"posts_failed"`
	PostsSkipped int            `db:"posts_skipped" json:"posts_skipped"`
	ErrorMessage sql.NullString `db:"error_message" json:"error_message"`
	DurationMs   int64          `db:"duration_ms" json:"duration_ms"`
	CursorStart  sql.NullString `db:"cursor_start" json:"cursor_start"`
	CursorEnd    sql.NullString `db:"cursor_end" json:"cursor_end"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

const (
	SyncTypeManual  = "manual"
	SyncTypeCron    = "cron"
	SyncTypeWebhook = "webhook"
)
