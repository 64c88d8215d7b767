package models

import (
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const CollectionUsers = "users"

// Acknowledgment states gating mentee access.
const (
	AckYes           = "yes"
	AckNo            = "no"
	AckNotApplicable = "not_applicable"
)

// User is a directory record. Its id is the human-readable directory id;
// ProviderUID links it to an identity account.
type User struct {
	store.Doc
	Name                   string                      `gorm:"size:255;not null;index" json:"name"`
	Email                  string                      `gorm:"size:255;not null;index" json:"email"`
	UserType               string                      `gorm:"size:20;not null;index" json:"userType"`
	ProviderUID            *string                     `gorm:"size:128;index" json:"provider_uid,omitempty"`
	StudentID              string                      `gorm:"size:64" json:"student_id,omitempty"`
	Department             string                      `gorm:"size:255" json:"department,omitempty"`
	YearMajor              string                      `gorm:"size:255" json:"year_major,omitempty"`
	Mentor                 *string                     `gorm:"size:255;index" json:"mentor,omitempty"`
	Mentee                 datatypes.JSONSlice[string] `json:"mentee"`
	AcknowledgmentSigned   string                      `gorm:"size:20;default:'not_applicable'" json:"acknowledgment_signed"`
	AcknowledgmentDate     *time.Time                  `json:"acknowledgment_date,omitempty"`
	AcknowledgmentFullName string                      `gorm:"size:255" json:"acknowledgment_full_name,omitempty"`
	LastLogin              *time.Time                  `json:"last_login,omitempty"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
	DeletedAt              gorm.DeletedAt              `gorm:"index" json:"-"`
}

func (User) TableName() string { return CollectionUsers }
