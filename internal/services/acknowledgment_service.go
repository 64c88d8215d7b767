package services

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
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/google/uuid"
)

var ErrInvalidFullName = apperr.New(apperr.InvalidArgument, "Valid full name is required")

// ClaimsSetter writes custom claims for an account.
type ClaimsSetter interface {
	SetClaims(ctx context.Context, uid uuid.UUID, claims dto.Claims) error
}

type AcknowledgmentService struct {
	users  *UserService
	claims ClaimsSetter
}

func NewAcknowledgmentService(users *UserService, claims ClaimsSetter) *AcknowledgmentService {
	return &AcknowledgmentService{users: users, claims: claims}
}

func (s *AcknowledgmentService) Check(ctx context.Context, ic identity.Context) (*dto.AcknowledgmentStatus, error) {
	if ic.UID == "" {
		return nil, identity.ErrUnauthenticated
	}
	if ic.Role != identity.RoleMentee {
		return &dto.AcknowledgmentStatus{NeedsAcknowledgment: false}, nil
	}

	user, err := s.users.FindByIdentity(ctx, ic.TenantPath, ic.UID, ic.Email)
	if errors.Is(err, ErrUserNotFound) {
		return &dto.AcknowledgmentStatus{NeedsAcknowledgment: true}, nil
	}
	if err != nil {
		return nil, err
	}

	signed := user.AcknowledgmentSigned
	if signed == "" {
		signed = models.AckNo
	}
	return &dto.AcknowledgmentStatus{NeedsAcknowledgment: signed != models.AckYes, Status: signed}, nil
}

// Submit records the signed acknowledgment, then grants mentee claims. A
// claims failure is reported in the result rather than returned.
func (s *AcknowledgmentService) Submit(ctx context.Context, ic identity.Context, req *dto.SubmitAcknowledgmentRequest) (*dto.AcknowledgmentResult, error) {
	if ic.UID == "" {
		return nil, identity.ErrUnauthenticated
	}
	fullName := strings.TrimSpace(req.FullName)
	if utf8.RuneCountInString(fullName) < 3 {
		return nil, ErrInvalidFullName
	}

	user, err := s.users.FindByIdentity(ctx, ic.TenantPath, ic.UID, ic.Email)
	if err != nil {
		return nil, err
	}

	if err := usersIn(s.users.store, ic.TenantPath).Update(ctx, &models.User{}, user.ID, map[string]interface{}{
		"acknowledgment_signed":    models.AckYes,
		"acknowledgment_date":      time.Now(),
		"acknowledgment_full_name": fullName,
	}); err != nil {
		return nil, err
	}

	result := &dto.AcknowledgmentResult{Success: true}
	claims := dto.Claims{Role: string(identity.RoleMentee), UniversityPath: ic.TenantPath}
	if err := s.setClaims(ctx, ic.UID, claims); err != nil {
		slog.Warn("acknowledgment saved but claims not set",
			"tenant_path", ic.TenantPath, "user_id", user.ID, "error", err)
		result.Message = "Acknowledgment submitted successfully (claims may need refresh)"
		return result, nil
	}

	result.ClaimsSet = true
	result.Message = "Acknowledgment submitted and access granted successfully"
	return result, nil
}

func (s *AcknowledgmentService) setClaims(ctx context.Context, uid string, claims dto.Claims) error {
	id, err := uuid.Parse(uid)
	if err != nil {
		return err
	}
	return s.claims.SetClaims(ctx, id, claims)
}
