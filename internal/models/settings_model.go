package models

import "time"

type Settings struct {
	ID                  int64     `db:"id" json:"id"`
	SyncEnabled         bool      `db:"sync_enabled" json:"sync_enabled"`
	SkipMentions        bool      `db:"skip_mentions" json:"skip_mentions"`
	PostVisibility      string    `db:"post_visibility" json:"post_visibility"` // public, unlisted, private
	SyncIntervalMinutes int       `db:"sync_interval_minutes" json:"sync_interval_minutes"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
