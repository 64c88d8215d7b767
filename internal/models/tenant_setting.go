package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantSetting stores per-university configuration values.
type TenantSetting struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantPath string    `gorm:"size:150;not null;uniqueIndex:idx_tenant_settings_key,priority:1" json:"tenant_path"`
	Key        string    `gorm:"size:100;not null;uniqueIndex:idx_tenant_settings_key,priority:2" json:"key"`
	Value      string    `gorm:"type:text;not null" json:"value"`
	Type       string    `gorm:"size:20;default:'string'" json:"type"` // string, bool, int, json
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *TenantSetting) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
