package cron_feature

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type CronController struct {
	Service CronService
}

func NewCronController(service CronService) *CronController {
	return &CronController{
		Service: service,
	}
}

// ListCronJobs godoc
// @Summary List scheduled jobs
// @Tags cron
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cron-jobs [get]
func (c *CronController) ListCronJobs(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"data": c.Service.ListCronJobs(ctx.UserContext())})
}

// ExecuteCronJob runs a job now, outside its schedule.
// @Summary Run a job now
// @Tags cron
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cron-jobs/{name}/execute [post]
func (c *CronController) ExecuteCronJob(ctx *fiber.Ctx) error {
	logEntry, err := c.Service.ExecuteCronJob(ctx.UserContext(), ctx.Params("name"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"data":  logEntry,
		})
	}
	return ctx.JSON(fiber.Map{"data": logEntry})
}

// GetCronJobLogs godoc
// @Summary Recent runs of a job
// @Tags cron
// @Produce json
// @Param name path string true "Job name"
// @Param limit query int false "Max runs (default 50)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cron-jobs/{name}/logs [get]
func (c *CronController) GetCronJobLogs(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))

	logs, err := c.Service.GetCronJobLogs(ctx.UserContext(), ctx.Params("name"), limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if logs == nil {
		logs = []CronJobLog{}
	}
	return ctx.JSON(fiber.Map{"data": logs})
}
