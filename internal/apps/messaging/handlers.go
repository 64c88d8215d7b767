package messaging

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/gofiber/fiber/v2"
)

type MessagingHandler struct {
	service *MessagingService
}

func NewMessagingHandler(service *MessagingService) *MessagingHandler {
	return &MessagingHandler{service: service}
}

func (h *MessagingHandler) CreateConversation(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req CreateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	result, err := h.service.CreateConversation(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	if result.IsNew {
		return dto.Created(c, result)
	}
	return dto.OK(c, result)
}

func (h *MessagingHandler) ListConversations(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var q PageQuery
	if err := c.QueryParser(&q); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	page, err := h.service.GetUserConversations(c.UserContext(), ic, &q)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, page)
}

func (h *MessagingHandler) UpdateSettings(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req ConversationSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	member, err := h.service.UpdateConversationSettings(c.UserContext(), ic, c.Params("id"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, member)
}

func (h *MessagingHandler) SendMessage(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
	}

	msg, err := h.service.SendMessage(c.UserContext(), ic, c.Params("id"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, msg)
}

func (h *MessagingHandler) ListMessages(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var q PageQuery
	if err := c.QueryParser(&q); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	page, err := h.service.GetMessages(c.UserContext(), ic, c.Params("id"), &q)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, page)
}

func (h *MessagingHandler) MarkRead(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req MarkReadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request body"))
		}
	}

	result, err := h.service.MarkMessagesRead(c.UserContext(), ic, c.Params("id"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, result)
}
