package handlers

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UniversityHandler struct {
	universityService *services.UniversityService
}

func NewUniversityHandler(universityService *services.UniversityService) *UniversityHandler {
	return &UniversityHandler{universityService: universityService}
}

func (h *UniversityHandler) Initialize(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.InitializeUniversityRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	resp, err := h.universityService.InitializeUniversity(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, resp)
}

func (h *UniversityHandler) List(c *fiber.Ctx) error {
	return dto.OK(c, h.universityService.ListUniversities())
}

// GetSettings returns the caller's university settings as a typed map.
func (h *UniversityHandler) GetSettings(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	settings, err := h.universityService.GetSettings(c.UserContext(), ic.TenantPath)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, settings)
}

func (h *UniversityHandler) SetSetting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.SetSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	setting, err := h.universityService.SetSetting(c.UserContext(), ic, c.Params("key"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, setting)
}

func (h *UniversityHandler) DeleteSetting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	if err := h.universityService.DeleteSetting(c.UserContext(), ic, c.Params("key")); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"deleted": c.Params("key")})
}
