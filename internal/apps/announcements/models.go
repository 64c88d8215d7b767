package announcements

import (
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
)

const CollectionAnnouncements = "announcements"

const (
	MaxTitleLength   = 200
	MaxContentLength = 2000
	DefaultLimit     = 20
	MaxLimit         = 100
)

const (
	AudienceMentor = "mentor"
	AudienceMentee = "mentee"
	AudienceBoth   = "both"
)

type Announcement struct {
	store.Doc
	Title          string     `gorm:"size:800;not null" json:"title"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	Priority       string     `gorm:"size:10;not null;default:'none'" json:"priority"`
	TargetAudience string     `gorm:"size:10;not null;index" json:"target_audience"`
	Time           string     `gorm:"size:64" json:"time"`
	CreatedBy      string     `gorm:"size:128;not null;index" json:"created_by"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedBy      string     `gorm:"size:128" json:"updated_by,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

func (Announcement) TableName() string { return CollectionAnnouncements }

// --- DTOs ---

type CreateAnnouncementRequest struct {
	Title          string `json:"title" validate:"required"`
	Content        string `json:"content" validate:"required"`
	Priority       string `json:"priority" validate:"required,oneof=high medium low none"`
	TargetAudience string `json:"target_audience" validate:"required,oneof=mentor mentee both mentors mentees"`
	Time           string `json:"time"`
}

type UpdateAnnouncementRequest struct {
	Title          *string `json:"title"`
	Content        *string `json:"content"`
	Priority       *string `json:"priority" validate:"omitempty,oneof=high medium low none"`
	TargetAudience *string `json:"target_audience" validate:"omitempty,oneof=mentor mentee both mentors mentees"`
	Time           *string `json:"time"`
}

type ListAnnouncementsQuery struct {
	Limit int `query:"limit" json:"limit"`
}
