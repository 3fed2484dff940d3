package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/roseviahq/ticketbot/internal/api/dto"
	"github.com/roseviahq/ticketbot/internal/repository"
	"github.com/roseviahq/ticketbot/internal/service"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

// UnlockHandler serves the payment processor's confirmation webhook.
type UnlockHandler struct {
	lifecycle *service.LifecycleService
	guard     repository.ReplayGuard
	secret    string
	logger    *zap.Logger
}

// NewUnlockHandler constructs the handler. The replay guard is optional.
func NewUnlockHandler(lifecycle *service.LifecycleService, guard repository.ReplayGuard, secret string, logger *zap.Logger) *UnlockHandler {
	return &UnlockHandler{lifecycle: lifecycle, guard: guard, secret: secret, logger: logger}
}

// Unlock POST /unlock.
func (h *UnlockHandler) Unlock(c *fiber.Ctx) error {
	if h.secret != "" {
		provided := c.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
			return apperrors.NewUnauthorized("invalid webhook secret")
		}
	}

	var req dto.UnlockRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ownerID := req.Owner()
	if ownerID == "" {
		return apperrors.NewValidationError("owner_id required", nil)
	}

	if h.guard != nil && req.EventID != "" {
		first, err := h.guard.FirstDelivery(c.Context(), req.EventID)
		if err != nil {
			// The registry's compare-and-set still guarantees exactly-once.
			h.logger.Warn("replay guard unavailable", zap.Error(err))
		} else if !first {
			return c.JSON(fiber.Map{"status": "duplicate", "event_id": req.EventID})
		}
	}

	ticket, err := h.lifecycle.ConfirmPayment(c.UserContext(), ownerID)
	if err != nil {
		// The webhook contract wants 400 for an unknown owner.
		if apperrors.HasCode(err, apperrors.CodeTicketNotFound) {
			return apperrors.NewValidationError("invalid user id or no ticket found", map[string]any{
				"owner_id": ownerID,
			})
		}
		return err
	}

	return c.JSON(fiber.Map{
		"status":     "unlocked",
		"channel_id": ticket.ChannelID,
	})
}
