package announcements

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrAnnouncementNotFound = apperr.New(apperr.NotFound, "Announcement not found")
	ErrTitleRequired        = apperr.New(apperr.InvalidArgument, "Title is required")
	ErrContentRequired      = apperr.New(apperr.InvalidArgument, "Content is required")
	ErrTitleTooLong         = apperr.Newf(apperr.InvalidArgument, "Title too long (max %d characters)", MaxTitleLength)
	ErrContentTooLong       = apperr.Newf(apperr.InvalidArgument, "Content too long (max %d characters)", MaxContentLength)
	ErrNotOwner             = apperr.New(apperr.PermissionDenied, "You can only modify your own announcements")
	ErrNothingToUpdate      = apperr.New(apperr.InvalidArgument, "No fields to update")
)

var authorRoles = []identity.Role{identity.RoleMentor, identity.RoleCoordinator, identity.RoleSuperAdmin}

type AnnouncementService struct {
	store *store.Store
}

func NewAnnouncementService(db *gorm.DB) *AnnouncementService {
	return &AnnouncementService{store: store.New(db)}
}

func (s *AnnouncementService) collection(tenantPath string) *store.Collection {
	return s.store.Collection(tenantPath, CollectionAnnouncements)
}

// NormalizeAudience folds the plural aliases onto mentor and mentee.
func NormalizeAudience(audience string) string {
	switch a := strings.ToLower(strings.TrimSpace(audience)); a {
	case "mentors":
		return AudienceMentor
	case "mentees":
		return AudienceMentee
	default:
		return a
	}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func (s *AnnouncementService) CreateAnnouncement(ctx context.Context, ic identity.Context, req *CreateAnnouncementRequest) (*Announcement, error) {
	if err := identity.RequireRole(ic, authorRoles...); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}
	content, err := cleanContent(req.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	a := &Announcement{
		Doc:            store.Doc{ID: uuid.New().String()},
		Title:          title,
		Content:        content,
		Priority:       req.Priority,
		TargetAudience: NormalizeAudience(req.TargetAudience),
		Time:           req.Time,
		CreatedBy:      ic.UID,
		CreatedAt:      now,
	}
	if a.Time == "" {
		a.Time = now.UTC().Format(time.RFC3339)
	}

	if err := s.collection(ic.TenantPath).Create(ctx, a); err != nil {
		return nil, err
	}

	slog.Info("announcement created", "tenant_path", ic.TenantPath, "announcement_id", a.ID,
		"user_id", ic.UID, "action", "create_announcement")
	return a, nil
}

// load fetches an announcement the caller may modify: mentors only their
// own, coordinators any.
func (s *AnnouncementService) load(ctx context.Context, ic identity.Context, id string) (*Announcement, error) {
	if err := identity.RequireRole(ic, authorRoles...); err != nil {
		return nil, err
	}

	var a Announcement
	if err := s.collection(ic.TenantPath).Get(ctx, id, &a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, err
	}
	if !ic.IsAdmin() && a.CreatedBy != ic.UID {
		return nil, ErrNotOwner
	}
	return &a, nil
}

func (s *AnnouncementService) UpdateAnnouncement(ctx context.Context, ic identity.Context, id string, req *UpdateAnnouncementRequest) (*Announcement, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	a, err := s.load(ctx, ic, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if a.Title, err = cleanTitle(*req.Title); err != nil {
			return nil, err
		}
		updates["title"] = a.Title
	}
	if req.Content != nil {
		if a.Content, err = cleanContent(*req.Content); err != nil {
			return nil, err
		}
		updates["content"] = a.Content
	}
	if req.Priority != nil {
		a.Priority = *req.Priority
		updates["priority"] = a.Priority
	}
	if req.TargetAudience != nil {
		a.TargetAudience = NormalizeAudience(*req.TargetAudience)
		updates["target_audience"] = a.TargetAudience
	}
	if req.Time != nil {
		a.Time = *req.Time
		updates["time"] = a.Time
	}
	if len(updates) == 0 {
		return nil, ErrNothingToUpdate
	}

	now := time.Now()
	a.UpdatedAt = &now
	a.UpdatedBy = ic.UID
	updates["updated_at"] = now
	updates["updated_by"] = ic.UID

	if err := s.collection(ic.TenantPath).Update(ctx, &Announcement{}, id, updates); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnnouncementService) DeleteAnnouncement(ctx context.Context, ic identity.Context, id string) error {
	if _, err := s.load(ctx, ic, id); err != nil {
		return err
	}
	if err := s.collection(ic.TenantPath).Delete(ctx, &Announcement{}, id); err != nil {
		return err
	}

	slog.Info("announcement deleted", "tenant_path", ic.TenantPath, "announcement_id", id,
		"user_id", ic.UID, "action", "delete_announcement")
	return nil
}

// ListAnnouncements returns announcements addressed to the caller's audience,
// newest first. Coordinators see every audience.
func (s *AnnouncementService) ListAnnouncements(ctx context.Context, ic identity.Context, limit int) ([]Announcement, error) {
	if ic.UID == "" {
		return nil, identity.ErrUnauthenticated
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var scopes []store.Scope
	if !ic.IsAdmin() {
		audiences := []string{AudienceBoth}
		if ic.Role == identity.RoleMentor || ic.Role == identity.RoleMentee {
			audiences = append(audiences, string(ic.Role))
		}
		scopes = append(scopes, store.Where("target_audience IN ?", audiences))
	}
	scopes = append(scopes, store.OrderBy("created_at", true), store.Limit(limit))

	result := []Announcement{}
	if err := s.collection(ic.TenantPath).Query(ctx, &result, scopes...); err != nil {
		return nil, err
	}
	return result, nil
}
