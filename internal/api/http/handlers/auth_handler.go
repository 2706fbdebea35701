package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/isp-support/internal/api/dto"
	"github.com/spec-kit/isp-support/internal/service"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// AuthHandler exposes token endpoints. Credentials live with the external
// identity provider; DevToken exists for local deployments only.
type AuthHandler struct {
	auth      *service.AuthService
	allowMint bool
}

// NewAuthHandler constructs handler. allowMint enables POST /auth/token.
func NewAuthHandler(authService *service.AuthService, allowMint bool) *AuthHandler {
	return &AuthHandler{auth: authService, allowMint: allowMint}
}

// DevToken handles POST /auth/token.
func (h *AuthHandler) DevToken(c *fiber.Ctx) error {
	if !h.allowMint {
		return apperrors.NewNotFound("route", nil)
	}
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ref, err := actorRef(req.Kind, req.ID)
	if err != nil {
		return err
	}
	issued, err := h.auth.IssueToken(c.UserContext(), ref)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"actor": issued.Actor,
			"auth":  dto.AuthResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt},
		},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": actor})
}
