package sync

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service SyncService
	Hub     *Hub
}

func NewSyncController(service SyncService, hub *Hub) *SyncController {
	return &SyncController{Service: service, Hub: hub}
}

// TriggerDrain runs one drain now and returns its result.
// @Summary Run one drain now
// @Tags sync
// @Produce json
// @Param batch query int false "Entries to attempt (default DRAIN_BATCH_SIZE)"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sync/drain [post]
func (ctrl *SyncController) TriggerDrain(c *fiber.Ctx) error {
	batch, _ := strconv.Atoi(c.Query("batch", "0"))

	result, err := ctrl.Service.Drain(c.UserContext(), batch)
	if err != nil {
		if errors.Is(err, ErrDrainLocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"data": result})
}

// GetLastResult godoc
// @Summary Result of the last drain
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sync/drain/last [get]
func (ctrl *SyncController) GetLastResult(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": ctrl.Service.LastResult()})
}

// StreamResults pushes every drain result to the websocket client until it disconnects.
func (ctrl *SyncController) StreamResults(c *websocket.Conn) {
	results, unsubscribe := ctrl.Hub.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			if err := c.WriteJSON(result); err != nil {
				log.Println("write:", err)
				return
			}
		}
	}
}
