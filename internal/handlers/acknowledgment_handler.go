package handlers

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AcknowledgmentHandler struct {
	service *services.AcknowledgmentService
}

func NewAcknowledgmentHandler(service *services.AcknowledgmentService) *AcknowledgmentHandler {
	return &AcknowledgmentHandler{service: service}
}

func (h *AcknowledgmentHandler) Check(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	status, err := h.service.Check(c.UserContext(), ic)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, status)
}

func (h *AcknowledgmentHandler) Submit(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.SubmitAcknowledgmentRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	result, err := h.service.Submit(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, result)
}
