package diagnostics

import (
	"pos-sync/internal/config"
	"pos-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DiagnosticsApi struct {
	controller *DiagnosticsController
	config     *config.Config
}

func NewDiagnosticsApi(controller *DiagnosticsController, config *config.Config) *DiagnosticsApi {
	return &DiagnosticsApi{
		controller: controller,
		config:     config,
	}
}

func (h *DiagnosticsApi) Setup(app *fiber.App) {
	diagnostics := app.Group("/api/diagnostics", middleware.AuthMiddleware(h.config.SkipAuth))

	diagnostics.Get("/report", h.controller.GetReport)
	diagnostics.Get("/report.xlsx", h.controller.ExportReport)
	diagnostics.Get("/purchases", h.controller.CheckPurchases)
	diagnostics.Get("/duplicates/:entity", h.controller.ListDuplicates)
	diagnostics.Post("/duplicates/:entity/repair", h.controller.RepairDuplicates)
}
