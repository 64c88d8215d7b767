package models

import (
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
)

const CollectionMentorships = "mentorships"

type Mentorship struct {
	store.Doc
	MentorID        string    `gorm:"size:255;not null;index" json:"mentor_id"`
	MenteeID        string    `gorm:"size:255;not null;index" json:"mentee_id"`
	AssignedBy      string    `gorm:"size:255" json:"assigned_by"`
	OverallProgress float64   `gorm:"default:0" json:"overall_progress"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Mentorship) TableName() string { return CollectionMentorships }
