package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/fedibridge/skybridge/internal/models"
	"github.com/fedibridge/skybridge/internal/queue"
	"github.com/fedibridge/skybridge/internal/repository"
	"github.com/fedibridge/skybridge/internal/sync"
	"github.com/fedibridge/skybridge/internal/transfer"
)

type SyncHandler struct {
	orchestrator *sync.Orchestrator
	tracking     repository.SyncedPostRepository
	logs         repository.SyncLogRepository
	asynqClient  *asynq.Client
}

func NewSyncHandler(
	orchestrator *sync.Orchestrator,
	tracking repository.SyncedPostRepository,
	logs repository.SyncLogRepository,
	asynqClient *asynq.Client) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		tracking:     tracking,
		logs:         logs,
		asynqClient:  asynqClient,
	}
}

// TriggerSync runs a manual sync inline and returns the run result.
func (h *SyncHandler) TriggerSync(c *fiber.Ctx) error {
	result := h.orchestrator.SyncUser(c.Context(), models.SyncTypeManual)
	return c.JSON(result)
}

// Webhook queues a sync run instead of blocking the caller.
func (h *SyncHandler) Webhook(c *fiber.Ctx) error {
	payload := queue.SyncRunPayload{SyncType: models.SyncTypeWebhook}
	if err := queue.EnqueueSyncRun(h.asynqClient, payload, 0); err != nil {
		slog.Error("failed to enqueue sync run", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to queue sync run",
		})
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// GetSyncStatus returns tracking stats, recent tracked posts and recent run
// logs for the dashboard.
func (h *SyncHandler) GetSyncStatus(c *fiber.Ctx) error {
	stats, err := h.tracking.GetStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load sync stats",
		})
	}

	recentPosts, err := h.tracking.GetRecent(c.Context(), 20)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load recent posts",
		})
	}

	recentLogs, err := h.logs.GetRecent(c.Context(), 20)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load sync logs",
		})
	}

	return c.JSON(transfer.SyncStatusResponse{
		Stats:       stats,
		RecentPosts: recentPosts,
		RecentLogs:  recentLogs,
	})
}
