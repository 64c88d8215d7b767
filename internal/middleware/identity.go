package middleware

import (
	"context"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var errTokenRevoked = apperr.New(apperr.Unauthenticated, "Token has been revoked")

// AccountChecker reports when an account's tokens were last revoked.
type AccountChecker interface {
	TokensValidAfter(ctx context.Context, uid string) (time.Time, error)
}

// DirectoryLookup maps an identity to its directory id within a tenant.
type DirectoryLookup interface {
	DirectoryIDFor(ctx context.Context, tenantPath, uid, email string) (string, error)
}

type IdentityConfig struct {
	DefaultTenant string
	Registry      *tenant.Registry
	Accounts      AccountChecker
	Directory     DirectoryLookup
}

// Identity turns the verified token into an identity.Context and fixes the
// request's tenant. It must run after JWTProtected.
func Identity(cfg IdentityConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if viaAdminToken(c) {
			return c.Next()
		}
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return dto.Fail(c, identity.ErrUnauthenticated)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return dto.Fail(c, identity.ErrUnauthenticated)
		}

		ic, err := identity.FromClaims(claims, cfg.DefaultTenant)
		if err != nil {
			return dto.Fail(c, err)
		}

		ctx := c.UserContext()
		if cfg.Accounts != nil {
			validAfter, err := cfg.Accounts.TokensValidAfter(ctx, ic.UID)
			if err != nil {
				if apperr.Is(err, apperr.NotFound) {
					return dto.Fail(c, errTokenRevoked)
				}
				return dto.Fail(c, err)
			}
			if !validAfter.IsZero() && ic.IssuedAt.Before(validAfter) {
				return dto.Fail(c, errTokenRevoked)
			}
		}

		path, err := resolveTenant(c, ic, cfg.Registry)
		if err != nil {
			return dto.Fail(c, err)
		}
		ic.TenantPath = path

		if cfg.Directory != nil {
			id, err := cfg.Directory.DirectoryIDFor(ctx, ic.TenantPath, ic.UID, ic.Email)
			if err != nil {
				return dto.Fail(c, err)
			}
			ic.DirectoryID = id
		}

		identity.Set(c, ic)
		tenant.SetTenantPath(c, ic.TenantPath)
		return c.Next()
	}
}
