package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	ping    func(ctx context.Context) error
	started time.Time
}

func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping, started: time.Now()}
}

// GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	storage := "ok"
	status := fiber.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			storage = "unavailable"
			status = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"status":      map[bool]string{true: "ok", false: "degraded"}[status == fiber.StatusOK],
		"storage":     storage,
		"server_time": time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(h.started).Round(time.Second).String(),
	})
}
