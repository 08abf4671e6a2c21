package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fedibridge/skybridge/internal/models"
)

func (q *Queue) HandleSyncRunTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	syncType := payload.SyncType
	if syncType == "" {
		syncType = models.SyncTypeWebhook
	}

	result := q.orchestrator.SyncUser(ctx, syncType)
	slog.Info("queued sync run finished",
		"sync_type", syncType,
		"processed", result.PostsProcessed,
		"successful", result.PostsSuccessful,
		"failed", result.PostsFailed)

	return nil
}
