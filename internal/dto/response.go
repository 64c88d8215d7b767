package dto

import (
	"log/slog"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	DB          string `json:"db"`
	TenantCount int    `json:"tenant_count"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return fiber.StatusUnauthorized
	case apperr.PermissionDenied:
		return fiber.StatusForbidden
	case apperr.InvalidArgument:
		return fiber.StatusBadRequest
	case apperr.NotFound:
		return fiber.StatusNotFound
	case apperr.AlreadyExists:
		return fiber.StatusConflict
	case apperr.FailedPrecondition:
		return fiber.StatusPreconditionFailed
	default:
		return fiber.StatusInternalServerError
	}
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Response{Success: true, Data: data})
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data})
}

// Fail writes err as an error envelope. Errors without a kind are logged
// and reported as Internal with a masked message.
func Fail(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"tenant_path", tenant.GetTenantPath(c),
			"trace_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"error", err.Error(),
		)
	}
	return c.Status(StatusFor(kind)).JSON(Response{
		Success: false,
		Error:   &ErrorBody{Kind: kind, Message: apperr.MessageOf(err)},
	})
}
