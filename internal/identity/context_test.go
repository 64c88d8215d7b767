package identity

import (
	"testing"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClaims(t *testing.T) {
	issued := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ic, err := FromClaims(jwt.MapClaims{
		"sub":             "uid-1",
		"email":           "jane@example.edu",
		"role":            "mentor",
		"university_path": "texas_austin_ut_austin",
		"iat":             float64(issued.Unix()),
	}, "default_path")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", ic.UID)
	assert.Equal(t, RoleMentor, ic.Role)
	assert.Equal(t, "texas_austin_ut_austin", ic.TenantPath)
	assert.False(t, ic.DefaultedTenant)
	assert.True(t, ic.IssuedAt.Equal(issued))
}

func TestFromClaims_DefaultsTenantAndLegacyRole(t *testing.T) {
	ic, err := FromClaims(jwt.MapClaims{"sub": "uid-2", "userType": "mentee"}, "default_path")
	require.NoError(t, err)
	assert.Equal(t, RoleMentee, ic.Role)
	assert.Equal(t, "default_path", ic.TenantPath)
	assert.True(t, ic.DefaultedTenant)
}

func TestFromClaims_RequiresSubject(t *testing.T) {
	_, err := FromClaims(jwt.MapClaims{"role": "mentor"}, "default_path")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestRoleChecks(t *testing.T) {
	mentee := Context{UID: "uid-m", DirectoryID: "john_roe", Role: RoleMentee}
	coord := Context{UID: "uid-c", Role: RoleCoordinator}

	assert.True(t, coord.IsAdmin())
	assert.False(t, mentee.IsAdmin())
	assert.False(t, Context{UID: "x", Role: RoleDeveloper}.IsAdmin())

	assert.True(t, mentee.IsSelf("john_roe"))
	assert.True(t, mentee.IsSelf("uid-m"))
	assert.False(t, mentee.IsSelf(""))

	assert.NoError(t, RequireSelfOrRole(mentee, "john_roe", AdminRoles...))
	assert.ErrorIs(t, RequireSelfOrRole(mentee, "jane_doe", AdminRoles...), ErrPermission)
	assert.NoError(t, RequireSelfOrRole(coord, "jane_doe", AdminRoles...))

	assert.ErrorIs(t, RequireRole(Context{}, RoleMentor), ErrUnauthenticated)
	assert.ErrorIs(t, RequireRole(mentee, RoleMentor, RoleCoordinator), ErrPermission)
	assert.False(t, Role("admin").Valid())
}
