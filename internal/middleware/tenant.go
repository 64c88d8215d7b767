package middleware

import (
	"strings"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// HeaderUniversityPath lets super admins and developers act on another
// registered university.
const HeaderUniversityPath = "X-University-Path"

// resolveTenant returns the tenant the request acts on: the claim tenant, or
// the X-University-Path header for roles allowed to switch.
func resolveTenant(c *fiber.Ctx, ic identity.Context, registry *tenant.Registry) (string, error) {
	override := strings.TrimSpace(c.Get(HeaderUniversityPath))
	if override == "" || override == ic.TenantPath {
		return ic.TenantPath, nil
	}

	if !ic.HasRole(identity.RoleSuperAdmin, identity.RoleDeveloper) {
		return "", apperr.New(apperr.PermissionDenied, "Only super admins may switch university")
	}
	if registry == nil || !registry.Exists(override) {
		return "", apperr.New(apperr.InvalidArgument, "Invalid "+HeaderUniversityPath+": "+override)
	}
	return override, nil
}
