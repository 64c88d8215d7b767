package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxBulkItems caps bulkCreateUsers and bulkAssignMentors.
const MaxBulkItems = 100

const idAllocationAttempts = 3

var (
	ErrUserNotFound    = apperr.New(apperr.NotFound, "User not found")
	ErrEmailTaken      = apperr.New(apperr.AlreadyExists, "A user with this email already exists")
	ErrBulkLimit       = apperr.Newf(apperr.InvalidArgument, "Bulk operations are limited to %d items", MaxBulkItems)
	ErrBulkEmpty       = apperr.New(apperr.InvalidArgument, "At least one item is required")
	ErrNothingToUpdate = apperr.New(apperr.InvalidArgument, "No fields to update")
	ErrUserTypeChange  = apperr.New(apperr.PermissionDenied, "Only coordinators may change userType")
	ErrNotAMentor      = apperr.New(apperr.InvalidArgument, "mentorId does not name a mentor")
	ErrNotAMentee      = apperr.New(apperr.InvalidArgument, "menteeId does not name a mentee")
	ErrAlreadyAssigned = apperr.New(apperr.AlreadyExists, "Mentee is already assigned to this mentor")
)

type UserService struct {
	store *store.Store
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{store: store.New(db)}
}

func usersIn(st *store.Store, tenantPath string) *store.Collection {
	return st.Collection(tenantPath, models.CollectionUsers)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ownerID is the id under which the caller can own u: the provider uid when
// it is the caller's, the directory id otherwise.
func ownerID(ic identity.Context, u *models.User) string {
	if u.ProviderUID != nil && *u.ProviderUID != "" && *u.ProviderUID == ic.UID {
		return ic.UID
	}
	return u.ID
}

// isOwner reports whether the caller is the user behind the record.
func isOwner(ic identity.Context, u *models.User) bool {
	return ic.IsSelf(ownerID(ic, u))
}

func (s *UserService) CreateUser(ctx context.Context, ic identity.Context, req *dto.CreateUserRequest) (*models.User, error) {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	return s.createUser(ctx, ic.TenantPath, req)
}

func (s *UserService) createUser(ctx context.Context, tenantPath string, req *dto.CreateUserRequest) (*models.User, error) {
	col := usersIn(s.store, tenantPath)
	email := normalizeEmail(req.Email)

	ack := req.AcknowledgmentSigned
	if ack == "" {
		ack = models.AckNotApplicable
		if req.UserType == string(identity.RoleMentee) {
			ack = models.AckNo
		}
	}

	for attempt := 0; attempt < idAllocationAttempts; attempt++ {
		taken, err := emailTaken(ctx, col, email, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}

		id, err := col.UniqueID(ctx, req.Name)
		if err != nil {
			return nil, err
		}

		user := &models.User{
			Doc:                  store.Doc{ID: id},
			Name:                 strings.TrimSpace(req.Name),
			Email:                email,
			UserType:             req.UserType,
			StudentID:            req.StudentID,
			Department:           req.Department,
			YearMajor:            req.YearMajor,
			Mentee:               datatypes.JSONSlice[string]{},
			AcknowledgmentSigned: ack,
		}
		err = col.Create(ctx, user)
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost the id to a concurrent create; probe again.
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.Info("user created", "tenant_path", tenantPath, "user_id", id, "user_type", req.UserType)
		return user, nil
	}
	return nil, fmt.Errorf("failed to allocate a directory id for %q", req.Name)
}

func emailTaken(ctx context.Context, col *store.Collection, email, exceptID string) (bool, error) {
	scopes := []store.Scope{store.Where("LOWER(email) = ?", email)}
	if exceptID != "" {
		scopes = append(scopes, store.Where("id <> ?", exceptID))
	}
	n, err := col.Count(ctx, &models.User{}, scopes...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *UserService) UpdateUser(ctx context.Context, ic identity.Context, id string, req *dto.UpdateUserRequest) (*models.User, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	col := usersIn(s.store, ic.TenantPath)
	user, err := resolveUser(ctx, col, id)
	if err != nil {
		return nil, err
	}
	if err := identity.RequireSelfOrRole(ic, ownerID(ic, user), identity.AdminRoles...); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != user.Email {
			taken, err := emailTaken(ctx, col, email, user.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrEmailTaken
			}
		}
		fields["email"] = email
	}
	if req.UserType != nil && *req.UserType != user.UserType {
		if !ic.IsAdmin() {
			return nil, ErrUserTypeChange
		}
		fields["user_type"] = *req.UserType
	}
	if req.StudentID != nil {
		fields["student_id"] = *req.StudentID
	}
	if req.Department != nil {
		fields["department"] = *req.Department
	}
	if req.YearMajor != nil {
		fields["year_major"] = *req.YearMajor
	}
	if req.AcknowledgmentSigned != nil {
		fields["acknowledgment_signed"] = *req.AcknowledgmentSigned
	}
	if len(fields) == 0 {
		return nil, ErrNothingToUpdate
	}

	if err := col.Update(ctx, &models.User{}, user.ID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var updated models.User
	if err := col.Get(ctx, user.ID, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteUser soft-deletes the record; its id stays reserved.
func (s *UserService) DeleteUser(ctx context.Context, ic identity.Context, id string) error {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return err
	}
	col := usersIn(s.store, ic.TenantPath)
	user, err := resolveUser(ctx, col, id)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, &models.User{}, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	slog.Info("user deleted", "tenant_path", ic.TenantPath, "user_id", user.ID, "action", "delete_user")
	return nil
}

// GetUser returns a record visible to the caller: their own, their mentor's
// or mentee's, or any record for coordinators.
func (s *UserService) GetUser(ctx context.Context, ic identity.Context, id string) (*models.User, error) {
	user, err := s.ResolveUser(ctx, ic.TenantPath, id)
	if err != nil {
		return nil, err
	}
	if isOwner(ic, user) || ic.IsAdmin() {
		return user, nil
	}
	if ic.DirectoryID != "" {
		if user.Mentor != nil && *user.Mentor == ic.DirectoryID {
			return user, nil
		}
		for _, m := range user.Mentee {
			if m == ic.DirectoryID {
				return user, nil
			}
		}
	}
	return nil, identity.ErrPermission
}

func (s *UserService) ListUsers(ctx context.Context, ic identity.Context, req *dto.ListUsersRequest) ([]models.User, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	scopes := []store.Scope{store.OrderBy("name", false)}
	switch {
	case ic.IsAdmin():
	case ic.Role == identity.RoleMentor:
		if ic.DirectoryID == "" {
			return []models.User{}, nil
		}
		scopes = append(scopes, store.Where("mentor = ?", ic.DirectoryID))
	default:
		return nil, identity.ErrPermission
	}
	if req.UserType != "" {
		scopes = append(scopes, store.Where("user_type = ?", req.UserType))
	}

	var result []models.User
	if err := usersIn(s.store, ic.TenantPath).Query(ctx, &result, scopes...); err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveUser looks a user up by directory id, then by provider uid.
func (s *UserService) ResolveUser(ctx context.Context, tenantPath, id string) (*models.User, error) {
	return resolveUser(ctx, usersIn(s.store, tenantPath), id)
}

func resolveUser(ctx context.Context, col *store.Collection, id string, scopes ...store.Scope) (*models.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := col.Get(ctx, id, &user, scopes...)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var found []models.User
	scopes = append(scopes, store.Where("provider_uid = ?", id), store.Limit(1))
	if err := col.Query(ctx, &found, scopes...); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrUserNotFound
	}
	return &found[0], nil
}

// FindByIdentity finds the record linked to an identity account, by
// provider uid first and email second.
func (s *UserService) FindByIdentity(ctx context.Context, tenantPath, uid, email string) (*models.User, error) {
	col := usersIn(s.store, tenantPath)

	var found []models.User
	if uid != "" {
		if err := col.Query(ctx, &found, store.Where("provider_uid = ?", uid), store.Limit(1)); err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	if email = normalizeEmail(email); email != "" {
		if err := col.Query(ctx, &found, store.Where("LOWER(email) = ?", email), store.Limit(1)); err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, ErrUserNotFound
}

// DirectoryIDFor returns the caller's directory id, or "" when they have no
// record in the tenant.
func (s *UserService) DirectoryIDFor(ctx context.Context, tenantPath, uid, email string) (string, error) {
	user, err := s.FindByIdentity(ctx, tenantPath, uid, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ValidateNameForRegistration reports whether name matches a directory record
// that has not been claimed by an identity account yet.
func (s *UserService) ValidateNameForRegistration(ctx context.Context, tenantPath, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	n, err := usersIn(s.store, tenantPath).Count(ctx, &models.User{},
		store.Where("LOWER(name) = LOWER(?)", name),
		store.Where("provider_uid IS NULL"),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LinkIdentity stamps the provider uid (when missing) and last login on a
// directory record.
func (s *UserService) LinkIdentity(ctx context.Context, tenantPath string, user *models.User, uid string) error {
	now := time.Now()
	fields := map[string]interface{}{"last_login": now}
	if user.ProviderUID == nil || *user.ProviderUID == "" {
		fields["provider_uid"] = uid
	}
	if err := usersIn(s.store, tenantPath).Update(ctx, &models.User{}, user.ID, fields); err != nil {
		return err
	}
	user.LastLogin = &now
	if _, ok := fields["provider_uid"]; ok {
		user.ProviderUID = &uid
	}
	return nil
}

func (s *UserService) AssignMentor(ctx context.Context, ic identity.Context, req *dto.AssignMentorRequest) (*models.Mentorship, error) {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	return s.assignMentor(ctx, ic, req)
}

func (s *UserService) assignMentor(ctx context.Context, ic identity.Context, req *dto.AssignMentorRequest) (*models.Mentorship, error) {
	var mentorship *models.Mentorship
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		col := usersIn(tx, ic.TenantPath)

		mentor, err := resolveUser(ctx, col, req.MentorID, store.ForUpdate())
		if err != nil {
			return err
		}
		mentee, err := resolveUser(ctx, col, req.MenteeID, store.ForUpdate())
		if err != nil {
			return err
		}
		if mentor.UserType != string(identity.RoleMentor) {
			return ErrNotAMentor
		}
		if mentee.UserType != string(identity.RoleMentee) {
			return ErrNotAMentee
		}
		if mentee.Mentor != nil && *mentee.Mentor == mentor.ID && containsID(mentor.Mentee, mentee.ID) {
			return ErrAlreadyAssigned
		}

		// A mentee has one mentor; detach from the previous one.
		if mentee.Mentor != nil && *mentee.Mentor != "" && *mentee.Mentor != mentor.ID {
			prev, err := resolveUser(ctx, col, *mentee.Mentor, store.ForUpdate())
			switch {
			case errors.Is(err, ErrUserNotFound):
			case err != nil:
				return err
			default:
				if err := col.Update(ctx, &models.User{}, prev.ID, map[string]interface{}{
					"mentee": removeID(prev.Mentee, mentee.ID),
				}); err != nil {
					return err
				}
			}
		}

		if err := col.Update(ctx, &models.User{}, mentee.ID, map[string]interface{}{"mentor": mentor.ID}); err != nil {
			return err
		}
		if !containsID(mentor.Mentee, mentee.ID) {
			list := append(datatypes.JSONSlice[string]{}, mentor.Mentee...)
			if err := col.Update(ctx, &models.User{}, mentor.ID, map[string]interface{}{
				"mentee": append(list, mentee.ID),
			}); err != nil {
				return err
			}
		}

		assignedBy := ic.DirectoryID
		if assignedBy == "" {
			assignedBy = ic.UID
		}
		mentorship = &models.Mentorship{
			Doc:        store.Doc{ID: uuid.NewString()},
			MentorID:   mentor.ID,
			MenteeID:   mentee.ID,
			AssignedBy: assignedBy,
		}
		return tx.Collection(ic.TenantPath, models.CollectionMentorships).Create(ctx, mentorship)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("mentor assigned", "tenant_path", ic.TenantPath, "mentor_id", mentorship.MentorID,
		"mentee_id", mentorship.MenteeID, "action", "assign_mentor")
	return mentorship, nil
}

func (s *UserService) BulkCreateUsers(ctx context.Context, ic identity.Context, req *dto.BulkCreateUsersRequest) (*dto.BulkReport, error) {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return nil, err
	}
	if err := checkBulkSize(len(req.Users)); err != nil {
		return nil, err
	}

	report := &dto.BulkReport{Total: len(req.Users), Results: make([]dto.BulkItemResult, 0, len(req.Users))}
	for i := range req.Users {
		item := &req.Users[i]
		user, err := func() (*models.User, error) {
			if err := dto.Validate(item); err != nil {
				return nil, err
			}
			return s.createUser(ctx, ic.TenantPath, item)
		}()
		if err != nil {
			recordItem(report, i, "", err, ic.TenantPath)
			continue
		}
		recordItem(report, i, user.ID, nil, ic.TenantPath)
	}

	slog.Info("bulk user create finished", "tenant_path", ic.TenantPath,
		"total", report.Total, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

func (s *UserService) BulkAssignMentors(ctx context.Context, ic identity.Context, req *dto.BulkAssignMentorsRequest) (*dto.BulkReport, error) {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return nil, err
	}
	if err := checkBulkSize(len(req.Assignments)); err != nil {
		return nil, err
	}

	report := &dto.BulkReport{Total: len(req.Assignments), Results: make([]dto.BulkItemResult, 0, len(req.Assignments))}
	for i := range req.Assignments {
		item := &req.Assignments[i]
		m, err := func() (*models.Mentorship, error) {
			if err := dto.Validate(item); err != nil {
				return nil, err
			}
			return s.assignMentor(ctx, ic, item)
		}()
		if err != nil {
			recordItem(report, i, "", err, ic.TenantPath)
			continue
		}
		recordItem(report, i, m.ID, nil, ic.TenantPath)
	}
	return report, nil
}

func checkBulkSize(n int) error {
	if n == 0 {
		return ErrBulkEmpty
	}
	if n > MaxBulkItems {
		return ErrBulkLimit
	}
	return nil
}

// recordItem appends one outcome to a bulk report. Internal failures are
// logged since their message is masked in the report.
func recordItem(report *dto.BulkReport, index int, id string, err error, tenantPath string) {
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			slog.Error("bulk item failed", "tenant_path", tenantPath, "index", index, "error", err.Error())
		}
		report.Failed++
		report.Results = append(report.Results, dto.BulkItemResult{Index: index, Error: apperr.MessageOf(err)})
		return
	}
	report.Succeeded++
	report.Results = append(report.Results, dto.BulkItemResult{Index: index, Success: true, ID: id})
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(list []string, id string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
