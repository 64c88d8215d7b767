package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	adminTokenUID    = "admin-token"
	adminTokenLocal  = "admin_token"
)

// RequireRoles rejects callers whose role is not listed. It must run after
// Identity.
func RequireRoles(roles ...identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ic, err := identity.From(c)
		if err != nil {
			return dto.Fail(c, err)
		}
		if err := identity.RequireRole(ic, roles...); err != nil {
			return dto.Fail(c, err)
		}
		return c.Next()
	}
}

// AdminToken lets operators call admin routes with the configured token
// instead of a user session. Such requests act as a developer on the tenant
// named by X-University-Path, or the default tenant. JWTProtected and
// Identity step aside for them.
func AdminToken(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(HeaderAdminToken)
		if cfg.AdminToken == "" || got == "" ||
			subtle.ConstantTimeCompare([]byte(got), []byte(cfg.AdminToken)) != 1 {
			return c.Next()
		}

		path := strings.TrimSpace(c.Get(HeaderUniversityPath))
		if path == "" {
			path = cfg.DefaultTenantPath
		}
		c.Locals(adminTokenLocal, true)
		identity.Set(c, identity.Context{UID: adminTokenUID, Role: identity.RoleDeveloper, TenantPath: path})
		tenant.SetTenantPath(c, path)
		return c.Next()
	}
}

func viaAdminToken(c *fiber.Ctx) bool {
	ok, _ := c.Locals(adminTokenLocal).(bool)
	return ok
}
