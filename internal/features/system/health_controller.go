package system

import (
	"pos-sync/internal/database"
	"pos-sync/internal/features/queue"
	sync_feature "pos-sync/internal/features/sync"

	"github.com/gofiber/fiber/v2"
)

type HealthController struct {
	DB    *database.LocalDB
	Queue queue.QueueService
	Sync  sync_feature.SyncService
}

func NewHealthController(db *database.LocalDB, queueService queue.QueueService, syncService sync_feature.SyncService) *HealthController {
	return &HealthController{DB: db, Queue: queueService, Sync: syncService}
}

// GetHealth reports whether the local store answers and how far behind the queue is.
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/health [get]
func (h *HealthController) GetHealth(c *fiber.Ctx) error {
	if err := h.DB.PingContext(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "down",
			"error":  err.Error(),
		})
	}

	stats, err := h.Queue.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "down",
			"error":  err.Error(),
		})
	}

	status := "ok"
	if stats.FailedTerminal > 0 {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":     status,
		"queue":      stats,
		"last_drain": h.Sync.LastResult(),
	})
}
