package handlers

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	user, err := h.userService.CreateUser(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, user)
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.ListUsersRequest
	if err := c.QueryParser(&req); err != nil {
		return dto.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid query"))
	}

	users, err := h.userService.ListUsers(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, users)
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	user, err := h.userService.GetUser(c.UserContext(), ic, c.Params("id"))
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, user)
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	user, err := h.userService.UpdateUser(c.UserContext(), ic, c.Params("id"), &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, user)
}

func (h *UserHandler) Delete(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	if err := h.userService.DeleteUser(c.UserContext(), ic, c.Params("id")); err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, fiber.Map{"deleted": c.Params("id")})
}

func (h *UserHandler) AssignMentor(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.AssignMentorRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	m, err := h.userService.AssignMentor(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.Created(c, m)
}

// BulkCreate and BulkAssign always answer 200 once the batch is accepted;
// per-item failures are in the report.
func (h *UserHandler) BulkCreate(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.BulkCreateUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	report, err := h.userService.BulkCreateUsers(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, report)
}

func (h *UserHandler) BulkAssign(c *fiber.Ctx) error {
	ic, err := identity.From(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	var req dto.BulkAssignMentorsRequest
	if err := c.BodyParser(&req); err != nil {
		return dto.Fail(c, errBadBody)
	}

	report, err := h.userService.BulkAssignMentors(c.UserContext(), ic, &req)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, report)
}
