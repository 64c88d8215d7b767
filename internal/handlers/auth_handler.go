package handlers

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/services"
	"github.com/gofiber/fiber/v2"
)

var errBadBody = apperr.New(apperr.InvalidArgument, "Invalid request body")

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	resp, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	resp, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	if err := h.authService.Logout(c.UserContext(), &req); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"message": "Logged out"})
}

// ValidateName is public: the registration screen calls it before the
// account exists.
func (h *AuthHandler) ValidateName(c *fiber.Ctx) error {
	var req dto.ValidateNameRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	resp, err := h.authService.ValidateName(c.UserContext(), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, resp)
}

// Me echoes the caller's resolved identity.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{
		"uid":             ic.UID,
		"email":           ic.Email,
		"role":            ic.Role,
		"university_path": ic.TenantPath,
		"directory_id":    ic.DirectoryID,
	})
}

func (h *AuthHandler) SetClaims(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.SetClaimsRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	if err := h.authService.SetCustomClaims(c.UserContext(), ic, &req); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"uid": req.UID, "role": req.Role, "university_path": req.UniversityPath})
}

func (h *AuthHandler) RevokeTokens(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.RevokeTokensRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	if err := h.authService.RevokeRefreshTokens(c.UserContext(), ic, &req); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"revoked": req.UID})
}
