package sync

import (
	"pos-sync/internal/config"
	"pos-sync/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) *SyncApi {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncApi) Setup(app *fiber.App) {
	app.Get("/api/sync/ws", websocket.New(h.controller.StreamResults))

	sync := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))
	sync.Post("/drain", h.controller.TriggerDrain)
	sync.Get("/drain/last", h.controller.GetLastResult)
}
