package queue

import (
	"pos-sync/internal/config"
	"pos-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type QueueApi struct {
	controller *QueueController
	config     *config.Config
}

func NewQueueApi(controller *QueueController, config *config.Config) *QueueApi {
	return &QueueApi{
		controller: controller,
		config:     config,
	}
}

func (h *QueueApi) Setup(app *fiber.App) {
	queue := app.Group("/api/sync/queue", middleware.AuthMiddleware(h.config.SkipAuth))

	queue.Get("/", h.controller.ListEntries)
	queue.Get("/stats", h.controller.GetStats)
	queue.Get("/integrity", h.controller.CheckIntegrity)
	queue.Post("/:id/requeue", h.controller.RequeueEntry)
}
