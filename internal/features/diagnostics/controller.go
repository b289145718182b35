package diagnostics

import (
	"bytes"
	"errors"
	"fmt"

	"pos-sync/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type DiagnosticsController struct {
	Service DiagnosticsService
}

func NewDiagnosticsController(service DiagnosticsService) *DiagnosticsController {
	return &DiagnosticsController{Service: service}
}

// GetReport runs a full comparison. A failed snapshot load is reported as 502.
// @Summary Compare local and remote data
// @Tags diagnostics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/diagnostics/report [get]
func (ctrl *DiagnosticsController) GetReport(c *fiber.Ctx) error {
	report, err := ctrl.Service.Run(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"data": report, "clean": report.Clean()})
}

// ExportReport godoc
// @Summary Export the comparison as XLSX
// @Tags diagnostics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 500 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/diagnostics/report.xlsx [get]
func (ctrl *DiagnosticsController) ExportReport(c *fiber.Ctx) error {
	report, err := ctrl.Service.Run(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, report); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export report: " + err.Error(),
		})
	}

	filename := fmt.Sprintf("divergence-%s.xlsx", report.GeneratedAt.Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

// CheckPurchases godoc
// @Summary Check stored purchase totals
// @Tags diagnostics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/diagnostics/purchases [get]
func (ctrl *DiagnosticsController) CheckPurchases(c *fiber.Ctx) error {
	issues, err := ctrl.Service.CheckPurchases(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if issues == nil {
		issues = []PurchaseIssue{}
	}
	return c.JSON(fiber.Map{"data": issues})
}

// ListDuplicates godoc
// @Summary List duplicate records of an entity
// @Tags diagnostics
// @Produce json
// @Param entity path string true "Entity type"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/diagnostics/duplicates/{entity} [get]
func (ctrl *DiagnosticsController) ListDuplicates(c *fiber.Ctx) error {
	entityType := models.EntityType(c.Params("entity"))
	groups, err := ctrl.Service.Duplicates(c.UserContext(), entityType)
	if err != nil {
		return c.Status(duplicateStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"data": groups})
}

// RepairDuplicates deletes the listed duplicates remotely. Operator action.
// @Summary Delete duplicate records remotely
// @Tags diagnostics
// @Produce json
// @Param entity path string true "Entity type"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/diagnostics/duplicates/{entity}/repair [post]
func (ctrl *DiagnosticsController) RepairDuplicates(c *fiber.Ctx) error {
	entityType := models.EntityType(c.Params("entity"))
	result, err := ctrl.Service.RepairDuplicates(c.UserContext(), entityType)
	if err != nil {
		return c.Status(duplicateStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	status := fiber.StatusOK
	if len(result.Failed) > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}

func duplicateStatus(err error) int {
	if errors.Is(err, ErrNoRule) {
		return fiber.StatusNotFound
	}
	return fiber.StatusBadGateway
}
