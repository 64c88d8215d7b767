// Package identity resolves the caller of a request into an identity
// Context and holds the role checks layered on top of it.
package identity

import (
	"log/slog"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleMentor      Role = "mentor"
	RoleMentee      Role = "mentee"
	RoleCoordinator Role = "coordinator"
	RoleSuperAdmin  Role = "super_admin"
	RoleDeveloper   Role = "developer"
)

// AdminRoles may act on any document of their tenant.
var AdminRoles = []Role{RoleCoordinator, RoleSuperAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleMentor, RoleMentee, RoleCoordinator, RoleSuperAdmin, RoleDeveloper:
		return true
	}
	return false
}

var (
	ErrUnauthenticated = apperr.New(apperr.Unauthenticated, "Authentication required")
	ErrPermission      = apperr.New(apperr.PermissionDenied, "Insufficient permissions")
)

// Context is the resolved caller.
type Context struct {
	UID        string
	Email      string
	Role       Role
	TenantPath string
	// DirectoryID is the caller's directory record id in TenantPath, empty
	// when the caller has none.
	DirectoryID string
	IssuedAt    time.Time
	// DefaultedTenant is set when the token carried no tenant claim.
	DefaultedTenant bool
}

// FromClaims builds a Context from verified token claims. A missing tenant
// claim falls back to defaultTenant.
func FromClaims(claims jwt.MapClaims, defaultTenant string) (Context, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Context{}, ErrUnauthenticated
	}

	ic := Context{UID: sub}
	ic.Email, _ = claims["email"].(string)

	role, _ := claims["role"].(string)
	if role == "" {
		role, _ = claims["userType"].(string)
	}
	ic.Role = Role(role)

	ic.TenantPath, _ = claims["university_path"].(string)
	if ic.TenantPath == "" {
		ic.TenantPath = defaultTenant
		ic.DefaultedTenant = true
		slog.Warn("identity claims missing tenant, using default",
			"user_id", sub, "role", role, "tenant_path", defaultTenant)
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		ic.IssuedAt = iat.Time
	}
	return ic, nil
}

func (ic Context) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if ic.Role == r {
			return true
		}
	}
	return false
}

func (ic Context) IsAdmin() bool {
	return ic.HasRole(AdminRoles...)
}

// IsSelf reports whether id names the caller, by provider uid or directory id.
func (ic Context) IsSelf(id string) bool {
	return id != "" && (id == ic.UID || id == ic.DirectoryID)
}

// RequireRole fails with PermissionDenied unless the caller holds one of roles.
func RequireRole(ic Context, roles ...Role) error {
	if ic.UID == "" {
		return ErrUnauthenticated
	}
	if !ic.HasRole(roles...) {
		return ErrPermission
	}
	return nil
}

// RequireSelfOrRole passes when ownerID is the caller or the caller holds
// one of roles.
func RequireSelfOrRole(ic Context, ownerID string, roles ...Role) error {
	if ic.UID == "" {
		return ErrUnauthenticated
	}
	if ic.IsSelf(ownerID) || ic.HasRole(roles...) {
		return nil
	}
	return ErrPermission
}

const localsKey = "identity"

func Set(c *fiber.Ctx, ic Context) {
	c.Locals(localsKey, ic)
}

// From returns the Context stored by the identity middleware.
func From(c *fiber.Ctx) (Context, error) {
	ic, ok := c.Locals(localsKey).(Context)
	if !ok || ic.UID == "" {
		return Context{}, ErrUnauthenticated
	}
	return ic, nil
}
