package system

import (
	"strconv"
	"strings"

	"pos-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct {
	Logs LogRepository
}

func NewDebugController(logs LogRepository) *DebugController {
	return &DebugController{Logs: logs}
}

// GetCurrentUser returns the claims of the operator token.
// @Summary Claims of the operator token
// @Tags debug
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	claims, _ := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if claims == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "No token claims",
		})
	}

	return ctx.JSON(fiber.Map{
		"user_id": claims.UserID,
		"roles":   claims.Roles,
		"message": "This is your current JWT token data",
	})
}

// GetLogs lists persisted warnings and errors, newest first.
// @Summary Persisted warnings and errors
// @Tags debug
// @Produce json
// @Param level query string false "Minimum level"
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/debug/logs [get]
func (c *DebugController) GetLogs(ctx *fiber.Ctx) error {
	limit, err := strconv.Atoi(ctx.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	logs, err := c.Logs.Recent(ctx.UserContext(), strings.ToUpper(ctx.Query("level")), limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if logs == nil {
		logs = []LogRecord{}
	}
	return ctx.JSON(fiber.Map{"data": logs})
}
