package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAccountExists      = apperr.New(apperr.AlreadyExists, "Email already registered")
	ErrInvalidCredentials = apperr.New(apperr.Unauthenticated, "Invalid email or password")
	ErrInvalidToken       = apperr.New(apperr.Unauthenticated, "Invalid or expired refresh token")
	ErrAccountNotFound    = apperr.New(apperr.NotFound, "Account not found")
	ErrNameNotRegistered  = apperr.New(apperr.PermissionDenied, "Name is not registered in the mentorship program")
	ErrNoDirectoryRecord  = apperr.New(apperr.NotFound,
		"User account not found in the database. Please contact your coordinator to be added to the mentorship program")
	ErrUnknownUniversity = apperr.New(apperr.InvalidArgument, "Unknown university")
)

// AuthService is the identity provider: accounts, tokens and the custom
// claims {role, university_path} stamped into access tokens.
type AuthService struct {
	db       *gorm.DB
	cfg      *config.Config
	users    *UserService
	registry *tenant.Registry
}

func NewAuthService(db *gorm.DB, cfg *config.Config, users *UserService, registry *tenant.Registry) *AuthService {
	return &AuthService{db: db, cfg: cfg, users: users, registry: registry}
}

func (s *AuthService) tenantOrDefault(path string) (string, error) {
	if path == "" {
		return s.cfg.DefaultTenantPath, nil
	}
	if s.registry != nil && !s.registry.Exists(path) {
		return "", ErrUnknownUniversity
	}
	return path, nil
}

// Register creates an account for a pre-registered directory record, sets
// its claims from the record and links the record to the account.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	tenantPath, err := s.tenantOrDefault(req.UniversityPath)
	if err != nil {
		return nil, err
	}

	valid, err := s.users.ValidateNameForRegistration(ctx, tenantPath, req.Name)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrNameNotRegistered
	}

	email := normalizeEmail(req.Email)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.IdentityAccount{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check account email: %w", err)
	}
	if count > 0 {
		return nil, ErrAccountExists
	}

	record, err := s.users.FindByIdentity(ctx, tenantPath, "", email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrNoDirectoryRecord
	}
	if err != nil {
		return nil, err
	}
	if record.ProviderUID != nil && *record.ProviderUID != "" {
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.IdentityAccount{
		ID:             uuid.New(),
		Email:          email,
		Password:       string(hash),
		Role:           record.UserType,
		UniversityPath: tenantPath,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.users.LinkIdentity(ctx, tenantPath, record, account.ID.String()); err != nil {
		return nil, err
	}

	slog.Info("account registered", "tenant_path", tenantPath, "user_id", record.ID,
		"role", account.Role, "action", "register")
	return s.generateTokenPair(ctx, &account, record.ID)
}

// Login checks credentials and re-syncs claims from the directory record.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	var account models.IdentityAccount
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&account).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	directoryID, err := s.syncClaims(ctx, &account)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, &account, directoryID)
}

// syncClaims refreshes the account's claims from its directory record and
// stamps last_login. super_admin claims are never rewritten.
func (s *AuthService) syncClaims(ctx context.Context, account *models.IdentityAccount) (string, error) {
	if identity.Role(account.Role) == identity.RoleSuperAdmin {
		return "", nil
	}

	tenantPath := account.UniversityPath
	if tenantPath == "" {
		tenantPath = s.cfg.DefaultTenantPath
	}

	record, err := s.users.FindByIdentity(ctx, tenantPath, account.ID.String(), account.Email)
	if errors.Is(err, ErrUserNotFound) {
		slog.Warn("no directory record for account, keeping existing claims",
			"tenant_path", tenantPath, "user_id", account.ID.String())
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if record.UserType != account.Role || tenantPath != account.UniversityPath {
		if err := s.SetClaims(ctx, account.ID, dto.Claims{Role: record.UserType, UniversityPath: tenantPath}); err != nil {
			return "", err
		}
		account.Role = record.UserType
		account.UniversityPath = tenantPath
	}
	if err := s.users.LinkIdentity(ctx, tenantPath, record, account.ID.String()); err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = ?", hashToken(req.RefreshToken), false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	if err := db.Model(&stored).Update("revoked", true).Error; err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var account models.IdentityAccount
	if err := db.First(&account, "id = ?", stored.AccountID).Error; err != nil {
		return nil, ErrAccountNotFound
	}

	directoryID, err := s.users.DirectoryIDFor(ctx, account.UniversityPath, account.ID.String(), account.Email)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, &account, directoryID)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	if err := dto.Validate(req); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(req.RefreshToken)).
		Update("revoked", true).Error
}

// SetCustomClaims overwrites another account's claims. super_admin only.
func (s *AuthService) SetCustomClaims(ctx context.Context, ic identity.Context, req *dto.SetClaimsRequest) error {
	if err := identity.RequireRole(ic, identity.RoleSuperAdmin); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	if s.registry != nil && !s.registry.Exists(req.UniversityPath) {
		return ErrUnknownUniversity
	}
	uid, err := uuid.Parse(req.UID)
	if err != nil {
		return apperr.New(apperr.InvalidArgument, "uid must be a valid account id")
	}
	if err := s.SetClaims(ctx, uid, dto.Claims{Role: req.Role, UniversityPath: req.UniversityPath}); err != nil {
		return err
	}
	slog.Info("custom claims set", "user_id", req.UID, "role", req.Role,
		"tenant_path", req.UniversityPath, "action", "set_claims")
	return nil
}

// SetClaims writes claims for uid. They take effect on the next issued token.
func (s *AuthService) SetClaims(ctx context.Context, uid uuid.UUID, claims dto.Claims) error {
	result := s.db.WithContext(ctx).Model(&models.IdentityAccount{}).Where("id = ?", uid).Updates(map[string]interface{}{
		"role":            claims.Role,
		"university_path": claims.UniversityPath,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to set claims: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RevokeRefreshTokens ends every session of the account. Access tokens
// issued before now are rejected by the identity middleware.
func (s *AuthService) RevokeRefreshTokens(ctx context.Context, ic identity.Context, req *dto.RevokeTokensRequest) error {
	if err := dto.Validate(req); err != nil {
		return err
	}
	if ic.UID != req.UID {
		if err := identity.RequireRole(ic, identity.RoleSuperAdmin); err != nil {
			return err
		}
	}
	uid, err := uuid.Parse(req.UID)
	if err != nil {
		return apperr.New(apperr.InvalidArgument, "uid must be a valid account id")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.IdentityAccount{}).Where("id = ?", uid).
			Update("tokens_valid_after", time.Now().Truncate(time.Second))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return tx.Model(&models.RefreshToken{}).Where("account_id = ?", uid).Update("revoked", true).Error
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	slog.Info("refresh tokens revoked", "user_id", req.UID, "action", "revoke_tokens")
	return nil
}

// TokensValidAfter returns the revocation cutoff for uid. Unknown accounts
// report ErrAccountNotFound.
func (s *AuthService) TokensValidAfter(ctx context.Context, uid string) (time.Time, error) {
	id, err := uuid.Parse(uid)
	if err != nil {
		return time.Time{}, ErrAccountNotFound
	}
	var account models.IdentityAccount
	if err := s.db.WithContext(ctx).Select("tokens_valid_after").First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrAccountNotFound
		}
		return time.Time{}, fmt.Errorf("failed to load account: %w", err)
	}
	return account.TokensValidAfter, nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, account *models.IdentityAccount, directoryID string) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(account)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, account)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account: dto.AccountResponse{
			UID:         account.ID,
			Email:       account.Email,
			Claims:      dto.Claims{Role: account.Role, UniversityPath: account.UniversityPath},
			DirectoryID: directoryID,
		},
	}, nil
}

func (s *AuthService) generateAccessToken(account *models.IdentityAccount) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   account.ID.String(),
		"email": account.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}
	if account.Role != "" {
		claims["role"] = account.Role
	}
	if account.UniversityPath != "" {
		claims["university_path"] = account.UniversityPath
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, account *models.IdentityAccount) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	record := models.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

// ValidateName reports whether name matches an unclaimed directory record
// of the requested university. Called before an account exists.
func (s *AuthService) ValidateName(ctx context.Context, req *dto.ValidateNameRequest) (*dto.ValidateNameResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	tenantPath, err := s.tenantOrDefault(req.UniversityPath)
	if err != nil {
		return nil, err
	}
	valid, err := s.users.ValidateNameForRegistration(ctx, tenantPath, req.Name)
	if err != nil {
		return nil, err
	}
	return &dto.ValidateNameResponse{Valid: valid}, nil
}
