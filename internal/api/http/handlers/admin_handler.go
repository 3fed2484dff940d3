package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roseviahq/ticketbot/internal/api/dto"
	"github.com/roseviahq/ticketbot/internal/auth"
	"github.com/roseviahq/ticketbot/internal/config"
	"github.com/roseviahq/ticketbot/internal/domain"
	"github.com/roseviahq/ticketbot/internal/service"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

// AdminHandler serves the administrative unlock/close endpoints.
type AdminHandler struct {
	lifecycle *service.LifecycleService
	tokens    *auth.TokenManager
	cfg       config.AuthConfig
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(lifecycle *service.LifecycleService, tokens *auth.TokenManager, cfg config.AuthConfig) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, tokens: tokens, cfg: cfg}
}

// Login POST /admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	if h.cfg.AdminPasswordHash == "" {
		return apperrors.NewUnauthorized("admin login disabled")
	}
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AdministratorID == "" || req.Password == "" {
		return apperrors.NewValidationError("administrator_id and password required", nil)
	}
	if err := auth.ComparePassword(h.cfg.AdminPasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.AdministratorID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AdminLoginResponse{Token: token, ExpiresAt: expiresAt}})
}

// Unlock POST /admin/tickets/:owner_id/unlock.
func (h *AdminHandler) Unlock(c *fiber.Ctx) error {
	adminID, ok := auth.AdminIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("administrator required")
	}
	ticket, err := h.lifecycle.ManualUnlock(c.UserContext(), c.Params("owner_id"), adminID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Close POST /admin/tickets/:owner_id/close.
func (h *AdminHandler) Close(c *fiber.Ctx) error {
	if _, ok := auth.AdminIDFromContext(c); !ok {
		return apperrors.NewUnauthorized("administrator required")
	}
	ticket, err := h.lifecycle.CloseTicket(c.UserContext(), c.Params("owner_id"), domain.CloseReasonAdministrative)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}
