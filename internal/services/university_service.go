package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUniversityExists = apperr.New(apperr.AlreadyExists, "University already initialized")
	ErrSettingNotFound  = apperr.New(apperr.NotFound, "Setting not found")
	ErrBadSettingValue  = apperr.New(apperr.InvalidArgument, "Setting value does not match its type")
)

type UniversityService struct {
	db       *gorm.DB
	registry *tenant.Registry
}

func NewUniversityService(db *gorm.DB, registry *tenant.Registry) *UniversityService {
	return &UniversityService{db: db, registry: registry}
}

// academicYear names the year running from August, e.g. "2025-2026".
func academicYear(now time.Time) string {
	start := now.Year()
	if now.Month() < time.August {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

func defaultSettings(tenantPath, name string, now time.Time) []models.TenantSetting {
	return []models.TenantSetting{
		{TenantPath: tenantPath, Key: "university_name", Value: name, Type: "string"},
		{TenantPath: tenantPath, Key: "academic_year", Value: academicYear(now), Type: "string"},
		{TenantPath: tenantPath, Key: "mentorship_program_active", Value: "true", Type: "bool"},
		{TenantPath: tenantPath, Key: "registration_open", Value: "true", Type: "bool"},
	}
}

// InitializeUniversity registers a new tenant with its default settings.
func (s *UniversityService) InitializeUniversity(ctx context.Context, ic identity.Context, req *dto.InitializeUniversityRequest) (*dto.InitializeUniversityResponse, error) {
	if err := identity.RequireRole(ic, identity.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	path := tenant.Path(strings.TrimSpace(req.State), strings.TrimSpace(req.City), strings.TrimSpace(req.Campus))
	uni := models.University{
		ID:        path,
		Name:      strings.TrimSpace(req.Name),
		State:     req.State,
		City:      req.City,
		Campus:    req.Campus,
		CreatedBy: ic.UID,
	}
	settings := defaultSettings(path, uni.Name, time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&uni).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUniversityExists
			}
			return err
		}
		return tx.Create(&settings).Error
	})
	if err != nil {
		if errors.Is(err, ErrUniversityExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to initialize university %s: %w", path, err)
	}

	s.registry.Register(toRegistryEntry(&uni))
	slog.Info("university initialized", "tenant_path", path, "user_id", ic.UID, "action", "initialize_university")

	keys := make([]string, len(settings))
	for i, st := range settings {
		keys[i] = st.Key
	}
	return &dto.InitializeUniversityResponse{UniversityPath: path, Settings: keys}, nil
}

func toRegistryEntry(u *models.University) *tenant.University {
	return &tenant.University{Path: u.ID, Name: u.Name, State: u.State, City: u.City, Campus: u.Campus}
}

// LoadRegistry merges universities stored in the database into the registry.
func (s *UniversityService) LoadRegistry(ctx context.Context) (int, error) {
	var unis []models.University
	if err := s.db.WithContext(ctx).Find(&unis).Error; err != nil {
		return 0, fmt.Errorf("failed to load universities: %w", err)
	}
	for i := range unis {
		s.registry.Register(toRegistryEntry(&unis[i]))
	}
	return len(unis), nil
}

func (s *UniversityService) ListUniversities() []*tenant.University {
	return s.registry.All()
}

// GetSettings returns the tenant's settings decoded by type.
func (s *UniversityService) GetSettings(ctx context.Context, tenantPath string) (map[string]interface{}, error) {
	var rows []models.TenantSetting
	if err := s.db.WithContext(ctx).Scopes(tenant.ForTenant(tenantPath)).Order("key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	result := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		v, err := decodeSetting(row.Type, row.Value)
		if err != nil {
			slog.Warn("undecodable setting, returning raw value",
				"tenant_path", tenantPath, "key", row.Key, "error", err)
			v = row.Value
		}
		result[row.Key] = v
	}
	return result, nil
}

func decodeSetting(typ, raw string) (interface{}, error) {
	switch typ {
	case "bool":
		return strconv.ParseBool(raw)
	case "int":
		return strconv.Atoi(raw)
	case "json":
		var v interface{}
		err := json.Unmarshal([]byte(raw), &v)
		return v, err
	default:
		return raw, nil
	}
}

// SetSetting upserts one key for the caller's tenant.
func (s *UniversityService) SetSetting(ctx context.Context, ic identity.Context, key string, req *dto.SetSettingRequest) (*models.TenantSetting, error) {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperr.New(apperr.InvalidArgument, "key is required")
	}
	if req.Type == "" {
		req.Type = "string"
	}
	if _, err := decodeSetting(req.Type, req.Value); err != nil {
		return nil, ErrBadSettingValue
	}

	var setting models.TenantSetting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(tenant.ForTenant(ic.TenantPath)).Where("key = ?", key).First(&setting).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			setting = models.TenantSetting{
				ID:         uuid.New(),
				TenantPath: ic.TenantPath,
				Key:        key,
				Value:      req.Value,
				Type:       req.Type,
			}
			return tx.Create(&setting).Error
		case err != nil:
			return err
		}
		setting.Value = req.Value
		setting.Type = req.Type
		return tx.Save(&setting).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return &setting, nil
}

func (s *UniversityService) DeleteSetting(ctx context.Context, ic identity.Context, key string) error {
	if err := identity.RequireRole(ic, identity.AdminRoles...); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Scopes(tenant.ForTenant(ic.TenantPath)).Where("key = ?", key).Delete(&models.TenantSetting{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}
