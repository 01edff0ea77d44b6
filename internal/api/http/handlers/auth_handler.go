package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/api/dto"
	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/service"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// AuthHandler exposes sign-up and login.
type AuthHandler struct {
	auth *service.AuthService
	gate *auth.Gate
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, gate *auth.Gate) *AuthHandler {
	return &AuthHandler{auth: authService, gate: gate}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, err := h.auth.Register(c.UserContext(), auth.PrincipalFromContext(c), service.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authPayload(user, token)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, token, err := h.auth.Login(c.UserContext(), auth.PrincipalFromContext(c), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authPayload(user, token)})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p := auth.PrincipalFromContext(c)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user":         dto.UserResponse{ID: p.UserID, Name: p.Name, Email: p.Email, Role: p.EffectiveRole()},
		"capabilities": h.gate.Capabilities(p.EffectiveRole()),
	}})
}

func authPayload(user *domain.User, token domain.Token) fiber.Map {
	return fiber.Map{
		"user": dto.NewUserResponse(user),
		"auth": dto.AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt},
	}
}
