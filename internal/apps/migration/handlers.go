package migration

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/gofiber/fiber/v2"
)

type MigrationHandler struct {
	service *MigrationService
}

func NewMigrationHandler(service *MigrationService) *MigrationHandler {
	return &MigrationHandler{service: service}
}

// parseRun reads the job parameters. The university defaults to the
// caller's tenant.
func parseRun(c *fiber.Ctx) (string, bool, error) {
	ic, err := identity.From(c)
	if err != nil {
		return "", false, err
	}
	var req RunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", false, apperr.New(apperr.InvalidArgument, "Invalid request body")
		}
	}
	path := req.UniversityPath
	if path == "" {
		path = ic.TenantPath
	}
	return path, req.dryRun(), nil
}

func (h *MigrationHandler) MigrateMeetings(c *fiber.Ctx) error {
	path, dryRun, err := parseRun(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	stats, err := h.service.MigrateMeetingsAndAvailability(c.UserContext(), path, dryRun)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, stats)
}

func (h *MigrationHandler) CleanupLegacy(c *fiber.Ctx) error {
	path, dryRun, err := parseRun(c)
	if err != nil {
		return dto.Fail(c, err)
	}

	stats, err := h.service.CleanupLegacySubcollections(c.UserContext(), path, dryRun)
	if err != nil {
		return dto.Fail(c, err)
	}
	return dto.OK(c, stats)
}
