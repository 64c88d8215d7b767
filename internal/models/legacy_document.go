package models

import (
	"time"

	"gorm.io/datatypes"
)

const CollectionLegacyDocuments = "legacy_documents"

// Legacy per-user sub-namespaces, kept only until migration completes.
const (
	LegacyMeetings          = "meetings"
	LegacyAvailability      = "availability"
	LegacyRequestedMeetings = "requestedMeetings"
)

// LegacyDocument is a document from the per-user layout
// users/{UserID}/{Subcollection}/{ID}.
type LegacyDocument struct {
	TenantPath    string         `gorm:"primaryKey;size:150" json:"-"`
	UserID        string         `gorm:"primaryKey;size:255" json:"user_id"`
	Subcollection string         `gorm:"primaryKey;size:50" json:"subcollection"`
	ID            string         `gorm:"primaryKey;size:255" json:"id"`
	Data          datatypes.JSON `json:"data"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (LegacyDocument) TableName() string { return CollectionLegacyDocuments }

func (d *LegacyDocument) Path() string {
	return "users/" + d.UserID + "/" + d.Subcollection + "/" + d.ID
}
