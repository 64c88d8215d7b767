package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testTenant = "california_merced_uc_merced"

var coordinator = identity.Context{UID: "uid-coord", Role: identity.RoleCoordinator, TenantPath: testTenant}

type fixture struct {
	db       *gorm.DB
	registry *tenant.Registry
	users    *UserService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t,
		&models.University{},
		&models.TenantSetting{},
		&models.IdentityAccount{},
		&models.RefreshToken{},
		&models.User{},
		&models.Mentorship{},
	)
	registry := tenant.NewRegistry()
	registry.Register(&tenant.University{Path: testTenant, Name: "UC Merced"})
	cfg := &config.Config{
		JWTSecret:         "0123456789abcdef0123",
		JWTAccessExpiry:   time.Hour,
		JWTRefreshExpiry:  24 * time.Hour,
		DefaultTenantPath: testTenant,
	}
	users := NewUserService(db)
	return &fixture{db: db, registry: registry, users: users, auth: NewAuthService(db, cfg, users, registry)}
}

func (f *fixture) createUser(t *testing.T, name, email, userType string) *models.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), coordinator, &dto.CreateUserRequest{
		Name: name, Email: email, UserType: userType,
	})
	require.NoError(t, err)
	return u
}

func TestCreateUser_SlugCollisionsAndDefaults(t *testing.T) {
	f := newFixture(t)

	first := f.createUser(t, "Jane Doe", "Jane.Doe@Example.edu", "mentee")
	second := f.createUser(t, "Jane Doe", "jane.doe2@example.edu", "mentor")

	assert.Equal(t, "Jane_Doe", first.ID)
	assert.Equal(t, "Jane_Doe_2", second.ID)
	assert.Equal(t, "jane.doe@example.edu", first.Email)
	assert.Equal(t, models.AckNo, first.AcknowledgmentSigned)
	assert.Equal(t, models.AckNotApplicable, second.AcknowledgmentSigned)

	_, err := f.users.CreateUser(context.Background(), coordinator, &dto.CreateUserRequest{
		Name: "Someone Else", Email: "JANE.DOE@example.edu", UserType: "mentee",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateUser_RequiresCoordinator(t *testing.T) {
	f := newFixture(t)
	mentor := identity.Context{UID: "uid-m", Role: identity.RoleMentor, TenantPath: testTenant}

	_, err := f.users.CreateUser(context.Background(), mentor, &dto.CreateUserRequest{
		Name: "A B", Email: "ab@example.edu", UserType: "mentee",
	})
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
}

func TestBulkCreateUsers_ReportsPerItem(t *testing.T) {
	f := newFixture(t)

	var req dto.BulkCreateUsersRequest
	for i := 1; i <= 10; i++ {
		req.Users = append(req.Users, dto.CreateUserRequest{
			Name: fmt.Sprintf("Student %d", i), Email: fmt.Sprintf("student%d@example.edu", i), UserType: "mentee",
		})
	}
	req.Users = append(req.Users,
		dto.CreateUserRequest{Name: "Dup One", Email: "student1@example.edu", UserType: "mentee"},
		dto.CreateUserRequest{Name: "Dup Two", Email: "STUDENT2@example.edu", UserType: "mentee"},
	)

	report, err := f.users.BulkCreateUsers(context.Background(), coordinator, &req)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Total)
	assert.Equal(t, 10, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 12)
	assert.Equal(t, "Student_1", report.Results[0].ID)
	assert.False(t, report.Results[10].Success)
	assert.Equal(t, 10, report.Results[10].Index)
	assert.Equal(t, apperr.MessageOf(ErrEmailTaken), report.Results[11].Error)
}

func TestBulkCreateUsers_Limits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.BulkCreateUsers(ctx, coordinator, &dto.BulkCreateUsersRequest{})
	assert.ErrorIs(t, err, ErrBulkEmpty)

	big := dto.BulkCreateUsersRequest{Users: make([]dto.CreateUserRequest, MaxBulkItems+1)}
	_, err = f.users.BulkCreateUsers(ctx, coordinator, &big)
	assert.ErrorIs(t, err, ErrBulkLimit)
}

func TestAssignMentor_MovesMentee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mentorA := f.createUser(t, "Ann Mentor", "ann@example.edu", "mentor")
	mentorB := f.createUser(t, "Bob Mentor", "bob@example.edu", "mentor")
	mentee := f.createUser(t, "Cal Mentee", "cal@example.edu", "mentee")

	m, err := f.users.AssignMentor(ctx, coordinator, &dto.AssignMentorRequest{MentorID: mentorA.ID, MenteeID: mentee.ID})
	require.NoError(t, err)
	assert.Equal(t, "uid-coord", m.AssignedBy)

	_, err = f.users.AssignMentor(ctx, coordinator, &dto.AssignMentorRequest{MentorID: mentorA.ID, MenteeID: mentee.ID})
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	_, err = f.users.AssignMentor(ctx, coordinator, &dto.AssignMentorRequest{MentorID: mentorB.ID, MenteeID: mentee.ID})
	require.NoError(t, err)

	a, err := f.users.ResolveUser(ctx, testTenant, mentorA.ID)
	require.NoError(t, err)
	b, err := f.users.ResolveUser(ctx, testTenant, mentorB.ID)
	require.NoError(t, err)
	c, err := f.users.ResolveUser(ctx, testTenant, mentee.ID)
	require.NoError(t, err)

	assert.Empty(t, a.Mentee)
	assert.Equal(t, []string{mentee.ID}, []string(b.Mentee))
	require.NotNil(t, c.Mentor)
	assert.Equal(t, mentorB.ID, *c.Mentor)

	_, err = f.users.AssignMentor(ctx, coordinator, &dto.AssignMentorRequest{MentorID: mentee.ID, MenteeID: mentorA.ID})
	assert.ErrorIs(t, err, ErrNotAMentor)
}

func TestBulkAssignMentors_ReportsPerItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.createUser(t, "Ann Mentor", "ann@example.edu", "mentor")
	bob := f.createUser(t, "Bob Mentor", "bob@example.edu", "mentor")
	cal := f.createUser(t, "Cal Mentee", "cal@example.edu", "mentee")
	dan := f.createUser(t, "Dan Mentee", "dan@example.edu", "mentee")

	report, err := f.users.BulkAssignMentors(ctx, coordinator, &dto.BulkAssignMentorsRequest{
		Assignments: []dto.AssignMentorRequest{
			{MentorID: ann.ID, MenteeID: cal.ID},
			{MentorID: ann.ID, MenteeID: "Nobody_Here"},
			{MentorID: dan.ID, MenteeID: cal.ID},
			{MentorID: bob.ID, MenteeID: dan.ID},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 4)
	assert.True(t, report.Results[0].Success)
	assert.NotEmpty(t, report.Results[0].ID)
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, apperr.MessageOf(ErrUserNotFound), report.Results[1].Error)
	assert.False(t, report.Results[2].Success)
	assert.Equal(t, apperr.MessageOf(ErrNotAMentor), report.Results[2].Error)
	assert.True(t, report.Results[3].Success)

	for _, pair := range [][2]string{{ann.ID, cal.ID}, {bob.ID, dan.ID}} {
		mentor, err := f.users.ResolveUser(ctx, testTenant, pair[0])
		require.NoError(t, err)
		mentee, err := f.users.ResolveUser(ctx, testTenant, pair[1])
		require.NoError(t, err)
		assert.Equal(t, []string{pair[1]}, []string(mentor.Mentee))
		require.NotNil(t, mentee.Mentor)
		assert.Equal(t, pair[0], *mentee.Mentor)
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Mentorship{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	_, err = f.users.BulkAssignMentors(ctx, identity.Context{UID: "uid-x", Role: identity.RoleMentor, TenantPath: testTenant},
		&dto.BulkAssignMentorsRequest{Assignments: []dto.AssignMentorRequest{{MentorID: ann.ID, MenteeID: dan.ID}}})
	assert.ErrorIs(t, err, identity.ErrPermission)
}

func TestUpdateUser_OwnerCannotChangeType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "Dee Student", "dee@example.edu", "mentee")
	self := identity.Context{UID: "uid-dee", DirectoryID: u.ID, Role: identity.RoleMentee, TenantPath: testTenant}

	mentor := "mentor"
	_, err := f.users.UpdateUser(ctx, self, u.ID, &dto.UpdateUserRequest{UserType: &mentor})
	assert.ErrorIs(t, err, ErrUserTypeChange)

	dept := "Physics"
	updated, err := f.users.UpdateUser(ctx, self, u.ID, &dto.UpdateUserRequest{Department: &dept})
	require.NoError(t, err)
	assert.Equal(t, "Physics", updated.Department)

	_, err = f.users.UpdateUser(ctx, self, u.ID, &dto.UpdateUserRequest{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	other := f.createUser(t, "Ola Student", "ola@example.edu", "mentee")
	stranger := identity.Context{UID: "uid-ola", DirectoryID: other.ID, Role: identity.RoleMentee, TenantPath: testTenant}
	_, err = f.users.UpdateUser(ctx, stranger, u.ID, &dto.UpdateUserRequest{Department: &dept})
	assert.ErrorIs(t, err, identity.ErrPermission)

	// A caller whose directory id is unresolved still owns the record
	// linked to their provider uid.
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("provider_uid", "uid-dee").Error)
	byUID := identity.Context{UID: "uid-dee", Role: identity.RoleMentee, TenantPath: testTenant}
	major := "Chemistry"
	updated, err = f.users.UpdateUser(ctx, byUID, u.ID, &dto.UpdateUserRequest{Department: &major})
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", updated.Department)
}

func TestDeleteUser_KeepsIDReserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "Eve Gone", "eve@example.edu", "mentee")

	require.NoError(t, f.users.DeleteUser(ctx, coordinator, u.ID))
	_, err := f.users.ResolveUser(ctx, testTenant, u.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	again := f.createUser(t, "Eve Gone", "eve.new@example.edu", "mentee")
	assert.Equal(t, "Eve_Gone_2", again.ID)
}

func TestRegisterLoginRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.createUser(t, "Fay Mentee", "fay@example.edu", "mentee")

	_, err := f.auth.Register(ctx, &dto.RegisterRequest{Email: "nobody@example.edu", Password: "password1", Name: "Nobody Here"})
	assert.ErrorIs(t, err, ErrNameNotRegistered)

	valid, err := f.auth.ValidateName(ctx, &dto.ValidateNameRequest{Name: "fay mentee"})
	require.NoError(t, err)
	assert.True(t, valid.Valid)

	resp, err := f.auth.Register(ctx, &dto.RegisterRequest{Email: "Fay@example.edu", Password: "password1", Name: "Fay Mentee"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, resp.Account.DirectoryID)
	assert.Equal(t, "mentee", resp.Account.Claims.Role)
	assert.Equal(t, testTenant, resp.Account.Claims.UniversityPath)
	assert.NotEmpty(t, resp.AccessToken)

	linked, err := f.users.ResolveUser(ctx, testTenant, resp.Account.UID.String())
	require.NoError(t, err)
	assert.Equal(t, record.ID, linked.ID)

	valid, err = f.auth.ValidateName(ctx, &dto.ValidateNameRequest{Name: "Fay Mentee"})
	require.NoError(t, err)
	assert.False(t, valid.Valid, "claimed records cannot be registered again")

	_, err = f.auth.Login(ctx, &dto.LoginRequest{Email: "fay@example.edu", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := f.auth.Login(ctx, &dto.LoginRequest{Email: "FAY@example.edu", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, login.Account.DirectoryID)

	rotated, err := f.auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	_, err = f.auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh tokens are single use")

	self := identity.Context{UID: resp.Account.UID.String(), Role: identity.RoleMentee, TenantPath: testTenant}
	require.NoError(t, f.auth.RevokeRefreshTokens(ctx, self, &dto.RevokeTokensRequest{UID: self.UID}))
	_, err = f.auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	after, err := f.auth.TokensValidAfter(ctx, self.UID)
	require.NoError(t, err)
	assert.False(t, after.IsZero())
}

func TestSetCustomClaims_SuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "Gus Mentor", "gus@example.edu", "mentor")
	resp, err := f.auth.Register(ctx, &dto.RegisterRequest{Email: "gus@example.edu", Password: "password1", Name: "Gus Mentor"})
	require.NoError(t, err)

	req := &dto.SetClaimsRequest{UID: resp.Account.UID.String(), Role: "coordinator", UniversityPath: testTenant}
	assert.ErrorIs(t, f.auth.SetCustomClaims(ctx, coordinator, req), identity.ErrPermission)

	admin := identity.Context{UID: "uid-admin", Role: identity.RoleSuperAdmin, TenantPath: testTenant}
	require.NoError(t, f.auth.SetCustomClaims(ctx, admin, req))

	var account models.IdentityAccount
	require.NoError(t, f.db.First(&account, "id = ?", resp.Account.UID).Error)
	assert.Equal(t, "coordinator", account.Role)

	req.UniversityPath = "unknown_place"
	assert.ErrorIs(t, f.auth.SetCustomClaims(ctx, admin, req), ErrUnknownUniversity)
}

func TestAcknowledgment_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ack := NewAcknowledgmentService(f.users, f.auth)
	f.createUser(t, "Hal Mentee", "hal@example.edu", "mentee")
	resp, err := f.auth.Register(ctx, &dto.RegisterRequest{Email: "hal@example.edu", Password: "password1", Name: "Hal Mentee"})
	require.NoError(t, err)
	ic := identity.Context{UID: resp.Account.UID.String(), Email: "hal@example.edu", Role: identity.RoleMentee, TenantPath: testTenant}

	status, err := ack.Check(ctx, ic)
	require.NoError(t, err)
	assert.True(t, status.NeedsAcknowledgment)
	assert.Equal(t, models.AckNo, status.Status)

	_, err = ack.Submit(ctx, ic, &dto.SubmitAcknowledgmentRequest{FullName: " H "})
	assert.ErrorIs(t, err, ErrInvalidFullName)

	result, err := ack.Submit(ctx, ic, &dto.SubmitAcknowledgmentRequest{FullName: "Hal Mentee"})
	require.NoError(t, err)
	assert.True(t, result.ClaimsSet)

	status, err = ack.Check(ctx, ic)
	require.NoError(t, err)
	assert.False(t, status.NeedsAcknowledgment)
	assert.Equal(t, models.AckYes, status.Status)

	mentor := identity.Context{UID: "uid-x", Role: identity.RoleMentor, TenantPath: testTenant}
	status, err = ack.Check(ctx, mentor)
	require.NoError(t, err)
	assert.False(t, status.NeedsAcknowledgment)
}

func TestAcknowledgment_ClaimsFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ack := NewAcknowledgmentService(f.users, f.auth)
	f.createUser(t, "Ida Mentee", "ida@example.edu", "mentee")

	// No identity account behind this uid, so claims cannot be written.
	ic := identity.Context{UID: "7d1c1f9e-9a4b-4c55-8d1f-2f3b4c5d6e7f", Email: "ida@example.edu", Role: identity.RoleMentee, TenantPath: testTenant}
	result, err := ack.Submit(ctx, ic, &dto.SubmitAcknowledgmentRequest{FullName: "Ida Mentee"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.ClaimsSet)
}

func TestUniversity_InitializeAndSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewUniversityService(f.db, f.registry)
	admin := identity.Context{UID: "uid-admin", Role: identity.RoleSuperAdmin, TenantPath: testTenant}
	req := &dto.InitializeUniversityRequest{State: "Texas", City: "Austin", Campus: "UT Austin", Name: "University of Texas"}

	_, err := svc.InitializeUniversity(ctx, coordinator, req)
	assert.ErrorIs(t, err, identity.ErrPermission)

	resp, err := svc.InitializeUniversity(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, "texas_austin_ut_austin", resp.UniversityPath)
	assert.Len(t, resp.Settings, 4)
	assert.True(t, f.registry.Exists("texas_austin_ut_austin"))

	_, err = svc.InitializeUniversity(ctx, admin, req)
	assert.ErrorIs(t, err, ErrUniversityExists)

	texas := identity.Context{UID: "uid-coord", Role: identity.RoleCoordinator, TenantPath: resp.UniversityPath}
	settings, err := svc.GetSettings(ctx, resp.UniversityPath)
	require.NoError(t, err)
	assert.Equal(t, "University of Texas", settings["university_name"])
	assert.Equal(t, true, settings["registration_open"])

	_, err = svc.SetSetting(ctx, texas, "max_mentees", &dto.SetSettingRequest{Value: "many", Type: "int"})
	assert.ErrorIs(t, err, ErrBadSettingValue)
	_, err = svc.SetSetting(ctx, texas, "max_mentees", &dto.SetSettingRequest{Value: "5", Type: "int"})
	require.NoError(t, err)
	_, err = svc.SetSetting(ctx, texas, "registration_open", &dto.SetSettingRequest{Value: "false", Type: "bool"})
	require.NoError(t, err)

	settings, err = svc.GetSettings(ctx, resp.UniversityPath)
	require.NoError(t, err)
	assert.Equal(t, 5, settings["max_mentees"])
	assert.Equal(t, false, settings["registration_open"])

	other, err := svc.GetSettings(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, svc.DeleteSetting(ctx, texas, "max_mentees"))
	assert.ErrorIs(t, svc.DeleteSetting(ctx, texas, "max_mentees"), ErrSettingNotFound)
}

func TestAcademicYear(t *testing.T) {
	assert.Equal(t, "2025-2026", academicYear(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-2025", academicYear(time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC)))
}
