package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// SessionHandler serves the welcome route and the token-protected routes.
type SessionHandler struct {
	accounts    *service.AccountService
	serviceName string
}

// NewSessionHandler constructs handler.
func NewSessionHandler(accountService *service.AccountService, serviceName string) *SessionHandler {
	return &SessionHandler{accounts: accountService, serviceName: serviceName}
}

// Welcome handles GET /.
func (h *SessionHandler) Welcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "welcome to " + h.serviceName})
}

// Landing handles GET /api/landing, echoing the token-bound identity.
func (h *SessionHandler) Landing(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	return c.JSON(fiber.Map{
		"message": "authenticated",
		"user": fiber.Map{
			"email":  principal.Email,
			"userId": principal.AccountID,
		},
	})
}

// Profile handles GET /api/profile. The response never carries the password
// hash or OTP fields.
func (h *SessionHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	account, err := h.accounts.GetProfile(c.UserContext(), principal.AccountID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":        account.ID,
			"email":     account.Email,
			"verified":  account.Verified,
			"createdAt": account.CreatedAt,
		},
	})
}
