package scheduling

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/gofiber/fiber/v2"
)

type SchedulingHandler struct {
	availability *AvailabilityService
	meetings     *MeetingService
}

func NewSchedulingHandler(availability *AvailabilityService, meetings *MeetingService) *SchedulingHandler {
	return &SchedulingHandler{availability: availability, meetings: meetings}
}

func (h *SchedulingHandler) SetAvailability(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req SetAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	day, err := h.availability.SetAvailability(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, day)
}

func (h *SchedulingHandler) GetAvailability(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var q AvailabilityQuery
	if err := c.QueryParser(&q); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	days, err := h.availability.GetAvailability(c.UserContext(), ic, &q)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, days)
}

func (h *SchedulingHandler) GetAvailableSlots(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var q AvailabilityQuery
	if err := c.QueryParser(&q); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	days, err := h.availability.GetAvailableSlots(c.UserContext(), ic, &q)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, days)
}

func (h *SchedulingHandler) RemoveSlot(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	if err := h.availability.RemoveAvailabilitySlot(c.UserContext(), ic, c.Params("slotId")); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"removed": c.Params("slotId")})
}

func (h *SchedulingHandler) CreateMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req CreateMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	m, err := h.meetings.CreateMeeting(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, m)
}

func (h *SchedulingHandler) RequestMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req RequestMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	m, err := h.meetings.RequestMeeting(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, m)
}

func (h *SchedulingHandler) ListMeetings(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var q ListMeetingsQuery
	if err := c.QueryParser(&q); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	meetings, err := h.meetings.ListMeetings(c.UserContext(), ic, &q)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, meetings)
}

func (h *SchedulingHandler) GetMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	m, err := h.meetings.GetMeeting(c.UserContext(), ic, c.Params("id"))
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}

func (h *SchedulingHandler) UpdateMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req UpdateMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	m, err := h.meetings.UpdateMeeting(c.UserContext(), ic, c.Params("id"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}

func (h *SchedulingHandler) AcceptMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	m, err := h.meetings.AcceptMeeting(c.UserContext(), ic, c.Params("id"))
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}

// statusReason reads the optional reason body of reject and cancel.
func statusReason(c *fiber.Ctx) (string, error) {
	var req StatusChangeRequest
	if len(c.Body()) == 0 {
		return "", nil
	}
	if err := c.BodyParser(&req); err != nil {
		return "", apperr.New(apperr.InvalidArgument, "Invalid request body")
	}
	if err := dto.Validate(&req); err != nil {
		return "", err
	}
	return req.Reason, nil
}

func (h *SchedulingHandler) RejectMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}
	reason, err := statusReason(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	m, err := h.meetings.RejectMeeting(c.UserContext(), ic, c.Params("id"), reason)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}

func (h *SchedulingHandler) CancelMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}
	reason, err := statusReason(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	m, err := h.meetings.CancelMeeting(c.UserContext(), ic, c.Params("id"), reason)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}

func (h *SchedulingHandler) HideMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	m, err := h.meetings.HideMeeting(c.UserContext(), ic, c.Params("id"))
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}

func (h *SchedulingHandler) UnhideMeeting(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	m, err := h.meetings.UnhideMeeting(c.UserContext(), ic, c.Params("id"))
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, m)
}
