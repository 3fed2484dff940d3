package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

const adminIDKey = "auth_admin_id"

// AuthMiddleware validates bearer tokens for the admin API.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces admin authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Scope != ScopeAdmin {
		return apperrors.NewForbidden("administrator capability required")
	}

	c.Locals(adminIDKey, claims.Subject)
	return c.Next()
}

// AdminIDFromContext retrieves the authenticated administrator identity.
func AdminIDFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(adminIDKey)
	if val == nil {
		return "", false
	}
	adminID, ok := val.(string)
	return adminID, ok
}
