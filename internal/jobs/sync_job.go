package job

import (
	"context"
	"log/slog"

	"github.com/fedibridge/skybridge/internal/models"
	"github.com/fedibridge/skybridge/internal/sync"
)

// SyncJob is the cron entry point: one scheduled sync run per tick. The
// orchestrator itself handles the setup and sync_enabled gates, so the job
// stays a thin wrapper.
type SyncJob struct {
	orchestrator *sync.Orchestrator
}

func NewSyncJob(orchestrator *sync.Orchestrator) *SyncJob {
	return &SyncJob{orchestrator: orchestrator}
}

func (j *SyncJob) Run() {
	ctx := context.Background()

	result := j.orchestrator.SyncUser(ctx, models.SyncTypeCron)
	if !result.Success {
		slog.Info("scheduled sync run reported errors", "errors", len(result.Errors))
		return
	}

	if result.PostsProcessed > 0 {
		slog.Info("scheduled sync run finished",
			"processed", result.PostsProcessed,
			"successful", result.PostsSuccessful,
			"failed", result.PostsFailed)
	}
}
