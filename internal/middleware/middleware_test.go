package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "0123456789abcdef0123"
	defaultTenant = "california_merced_uc_merced"
	otherTenant   = "texas_austin_ut_austin"
)

type fakeAccounts map[string]time.Time

func (f fakeAccounts) TokensValidAfter(_ context.Context, uid string) (time.Time, error) {
	return f[uid], nil
}

type fakeDirectory map[string]string

func (f fakeDirectory) DirectoryIDFor(_ context.Context, tenantPath, uid, _ string) (string, error) {
	return f[tenantPath+"/"+uid], nil
}

func testApp(t *testing.T, accounts fakeAccounts) *fiber.App {
	t.Helper()
	cfg := &config.Config{JWTSecret: testSecret, DefaultTenantPath: defaultTenant, AdminToken: "op-token"}
	registry := tenant.NewRegistry()
	registry.Register(&tenant.University{Path: defaultTenant})
	registry.Register(&tenant.University{Path: otherTenant})

	idCfg := IdentityConfig{
		DefaultTenant: defaultTenant,
		Registry:      registry,
		Accounts:      accounts,
		Directory:     fakeDirectory{defaultTenant + "/uid-mentor": "jane_doe"},
	}
	echo := func(c *fiber.Ctx) error {
		ic, err := identity.From(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"uid": ic.UID, "role": ic.Role, "tenant": tenant.GetTenantPath(c), "directory_id": ic.DirectoryID,
		})
	}

	app := fiber.New()
	app.Get("/p/me", JWTProtected(cfg), Identity(idCfg), echo)
	app.Get("/admin/me", AdminToken(cfg), JWTProtected(cfg), Identity(idCfg),
		RequireRoles(identity.RoleSuperAdmin, identity.RoleDeveloper), echo)
	return app
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = time.Now().Unix()
	}
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

type envelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Kind string `json:"kind"`
	} `json:"error"`
	UID         string `json:"uid"`
	Role        string `json:"role"`
	Tenant      string `json:"tenant"`
	DirectoryID string `json:"directory_id"`
}

func do(t *testing.T, app *fiber.App, path, token string, headers map[string]string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestIdentity_ResolvesClaimsAndDirectoryID(t *testing.T) {
	app := testApp(t, fakeAccounts{})
	token := sign(t, jwt.MapClaims{"sub": "uid-mentor", "role": "mentor", "university_path": defaultTenant})

	status, body := do(t, app, "/p/me", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "uid-mentor", body.UID)
	assert.Equal(t, "mentor", body.Role)
	assert.Equal(t, defaultTenant, body.Tenant)
	assert.Equal(t, "jane_doe", body.DirectoryID)
}

func TestIdentity_RejectsMissingToken(t *testing.T) {
	status, body := do(t, testApp(t, fakeAccounts{}), "/p/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Unauthenticated", body.Error.Kind)
}

func TestIdentity_RejectsRevokedToken(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	app := testApp(t, fakeAccounts{"uid-mentor": time.Now().Add(-time.Minute)})
	token := sign(t, jwt.MapClaims{"sub": "uid-mentor", "role": "mentor", "iat": issued.Unix()})

	status, _ := do(t, app, "/p/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestIdentity_TenantOverride(t *testing.T) {
	app := testApp(t, fakeAccounts{})
	override := map[string]string{HeaderUniversityPath: otherTenant}

	mentor := sign(t, jwt.MapClaims{"sub": "uid-mentor", "role": "mentor", "university_path": defaultTenant})
	status, _ := do(t, app, "/p/me", mentor, override)
	assert.Equal(t, fiber.StatusForbidden, status)

	admin := sign(t, jwt.MapClaims{"sub": "uid-admin", "role": "super_admin", "university_path": defaultTenant})
	status, body := do(t, app, "/p/me", admin, override)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, otherTenant, body.Tenant)

	status, _ = do(t, app, "/p/me", admin, map[string]string{HeaderUniversityPath: "nowhere"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAdminRoutes(t *testing.T) {
	app := testApp(t, fakeAccounts{})

	coord := sign(t, jwt.MapClaims{"sub": "uid-coord", "role": "coordinator"})
	status, _ := do(t, app, "/admin/me", coord, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := do(t, app, "/admin/me", "", map[string]string{HeaderAdminToken: "op-token"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "developer", body.Role)
	assert.Equal(t, defaultTenant, body.Tenant)

	status, _ = do(t, app, "/admin/me", "", map[string]string{HeaderAdminToken: "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
