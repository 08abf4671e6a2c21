package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fedibridge/skybridge/internal/models"
	"github.com/fedibridge/skybridge/internal/repository"
	"github.com/fedibridge/skybridge/internal/transfer"
)

type SettingsHandler struct {
	sr repository.SettingsRepository
}

func NewSettingsHandler(sr repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{sr: sr}
}

func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	settings, found, err := h.sr.Get(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load settings",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Settings have not been created yet",
		})
	}

	return c.JSON(settings)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var update transfer.SettingsUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	settings, found, err := h.sr.Get(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load settings",
		})
	}
	if !found {
		settings = &models.Settings{SyncEnabled: true, PostVisibility: "public", SyncIntervalMinutes: 5}
		if _, err := h.sr.Create(c.Context(), settings); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to create settings",
			})
		}
	}

	if update.SyncEnabled != nil {
		settings.SyncEnabled = *update.SyncEnabled
	}
	if update.SkipMentions != nil {
		settings.SkipMentions = *update.SkipMentions
	}
	if update.PostVisibility != nil {
		settings.PostVisibility = *update.PostVisibility
	}
	if update.SyncIntervalMinutes != nil {
		settings.SyncIntervalMinutes = *update.SyncIntervalMinutes
	}

	if err := h.sr.Update(c.Context(), settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to update settings",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
