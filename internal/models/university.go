package models

import "time"

// University is a registered tenant. ID is the tenant path.
type University struct {
	ID        string    `gorm:"primaryKey;size:150" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	State     string    `gorm:"size:100" json:"state"`
	City      string    `gorm:"size:100" json:"city"`
	Campus    string    `gorm:"size:100" json:"campus"`
	CreatedBy string    `gorm:"size:128" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
