package queue

import (
	"errors"
	"strconv"

	"pos-sync/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type QueueController struct {
	Service QueueService
}

func NewQueueController(service QueueService) *QueueController {
	return &QueueController{Service: service}
}

// ListEntries returns queue entries filtered by status, entity type and entity id.
// @Summary List sync queue entries
// @Tags queue
// @Produce json
// @Param status query string false "pending, synced or failed"
// @Param entity_type query string false "Entity type"
// @Param entity_id query string false "Entity ID"
// @Param limit query int false "Max entries (default 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sync/queue [get]
func (ctrl *QueueController) ListEntries(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	filter := Filter{
		Status:     models.SyncStatus(c.Query("status")),
		EntityType: models.EntityType(c.Query("entity_type")),
		EntityID:   c.Query("entity_id"),
		Limit:      limit,
	}

	entries, err := ctrl.Service.List(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if entries == nil {
		entries = []Entry{}
	}

	return c.JSON(fiber.Map{"data": entries})
}

// GetStats godoc
// @Summary Sync queue counts by status
// @Tags queue
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sync/queue/stats [get]
func (ctrl *QueueController) GetStats(c *fiber.Ctx) error {
	stats, err := ctrl.Service.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"data": stats})
}

// CheckIntegrity godoc
// @Summary Report unsafe queue states
// @Tags queue
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sync/queue/integrity [get]
func (ctrl *QueueController) CheckIntegrity(c *fiber.Ctx) error {
	issues, err := ctrl.Service.CheckIntegrity(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if issues == nil {
		issues = []IntegrityIssue{}
	}
	return c.JSON(fiber.Map{"data": issues, "ok": len(issues) == 0})
}

// RequeueEntry moves a failed entry back to pending. Operator action.
// @Summary Requeue a failed entry
// @Tags queue
// @Produce json
// @Param id path int true "Entry ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sync/queue/{id}/requeue [post]
func (ctrl *QueueController) RequeueEntry(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entry id",
		})
	}

	if err := ctrl.Service.Requeue(c.UserContext(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"message": "Entry requeued"})
}
