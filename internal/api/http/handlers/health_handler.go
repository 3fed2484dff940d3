package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roseviahq/ticketbot/internal/persistence"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName  string
	version      string
	redis        *persistence.Redis
	gatewayReady func() bool
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, redis *persistence.Redis, gatewayReady func() bool) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, redis: redis, gatewayReady: gatewayReady}
}

// Root GET / — the static availability indicator the payment platform polls.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.SendString(h.serviceName + " is running")
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			depStatus["redis"] = err.Error()
			ready = false
		} else {
			depStatus["redis"] = "ok"
		}
	}

	if h.gatewayReady != nil {
		if h.gatewayReady() {
			depStatus["discord"] = "ok"
		} else {
			depStatus["discord"] = "not connected"
			ready = false
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
