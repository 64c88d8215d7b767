package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityAccount is a sign-in identity. Role and UniversityPath are the
// custom claims stamped into every access token.
type IdentityAccount struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password         string    `gorm:"not null" json:"-"`
	Role             string    `gorm:"size:20" json:"role"`
	UniversityPath   string    `gorm:"size:150" json:"university_path"`
	TokensValidAfter time.Time `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
