package announcements

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/gofiber/fiber/v2"
)

type AnnouncementHandler struct {
	service *AnnouncementService
}

func NewAnnouncementHandler(service *AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

func (h *AnnouncementHandler) Create(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req CreateAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	a, err := h.service.CreateAnnouncement(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, a)
}

func (h *AnnouncementHandler) List(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var q ListAnnouncementsQuery
	if err := c.QueryParser(&q); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	list, err := h.service.ListAnnouncements(c.UserContext(), ic, q.Limit)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, list)
}

func (h *AnnouncementHandler) Update(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req UpdateAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	a, err := h.service.UpdateAnnouncement(c.UserContext(), ic, c.Params("id"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, a)
}

func (h *AnnouncementHandler) Delete(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	if err := h.service.DeleteAnnouncement(c.UserContext(), ic, c.Params("id")); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"deleted": c.Params("id")})
}
