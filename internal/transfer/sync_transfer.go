package transfer

import "github.com/fedibridge/skybridge/internal/models"

type SettingsUpdate struct {
	SyncEnabled         *bool   `json:"sync_enabled,omitempty"`
	SkipMentions        *bool   `json:"skip_mentions,omitempty"`
	PostVisibility      *string `json:"post_visibility,omitempty"`
	SyncIntervalMinutes *int    `json:"sync_interval_minutes,omitempty"`
}

type SyncStatusResponse struct {
	Stats       *models.SyncStats    `json:"stats"`
	RecentPosts []*models.SyncedPost `json:"recent_posts"`
	RecentLogs  []*models.SyncLog    `json:"recent_logs"`
}
