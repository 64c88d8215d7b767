package scheduling

import (
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"gorm.io/datatypes"
)

const (
	CollectionAvailability = "availability"
	CollectionMeetings     = "meetings"
)

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Slot is one bookable window inside an AvailabilityDay.
type Slot struct {
	SlotStart    string     `json:"slot_start"`
	SlotEnd      string     `json:"slot_end"`
	IsBooked     bool       `json:"is_booked"`
	BookedBy     *string    `json:"booked_by"`
	BookedByUID  *string    `json:"booked_by_uid"`
	BookedByName *string    `json:"booked_by_name"`
	MeetingID    *string    `json:"meeting_id"`
	BookedAt     *time.Time `json:"booked_at"`
}

func (s *Slot) clearBooking() {
	s.IsBooked = false
	s.BookedBy = nil
	s.BookedByUID = nil
	s.BookedByName = nil
	s.MeetingID = nil
	s.BookedAt = nil
}

// AvailabilityDay holds a mentor's slots for one day; its id is
// {mentorDocId}_{day}.
type AvailabilityDay struct {
	store.Doc
	MentorID  string                    `gorm:"size:255;not null;index:idx_availability_mentor_day,priority:1" json:"mentor_id"`
	MentorUID string                    `gorm:"size:128" json:"mentor_uid"`
	Day       string                    `gorm:"size:10;not null;index:idx_availability_mentor_day,priority:2" json:"day"`
	Slots     datatypes.JSONSlice[Slot] `json:"slots"`
	Synced    bool                      `gorm:"default:true" json:"synced"`
	Version   int                       `gorm:"not null;default:0" json:"version"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

func (AvailabilityDay) TableName() string { return CollectionAvailability }

func (d *AvailabilityDay) hasBookedSlots() bool {
	for _, s := range d.Slots {
		if s.IsBooked {
			return true
		}
	}
	return false
}

type Meeting struct {
	store.Doc
	MentorDocID        string                      `gorm:"size:255;not null;index" json:"mentor_doc_id"`
	MenteeDocID        string                      `gorm:"size:255;not null;index" json:"mentee_doc_id"`
	MentorUID          string                      `gorm:"size:128;index" json:"mentor_uid"`
	MenteeUID          string                      `gorm:"size:128;index" json:"mentee_uid"`
	MentorName         string                      `gorm:"size:255" json:"mentor_name"`
	MenteeName         string                      `gorm:"size:255" json:"mentee_name"`
	StartTime          time.Time                   `gorm:"not null;index" json:"start_time"`
	EndTime            *time.Time                  `json:"end_time"`
	Topic              string                      `gorm:"type:text" json:"topic"`
	Location           string                      `gorm:"size:255" json:"location"`
	Status             string                      `gorm:"size:20;not null;index" json:"status"`
	AvailabilityID     *string                     `gorm:"size:300;index" json:"availability_id"`
	CreatedBy          string                      `gorm:"size:128" json:"created_by"`
	CreatedAt          time.Time                   `json:"created_at"`
	RequestedBy        *string                     `gorm:"size:255" json:"requested_by,omitempty"`
	RequestedAt        *time.Time                  `json:"requested_at,omitempty"`
	AcceptedBy         *string                     `gorm:"size:128" json:"accepted_by,omitempty"`
	AcceptedAt         *time.Time                  `json:"accepted_at,omitempty"`
	RejectedBy         *string                     `gorm:"size:128" json:"rejected_by,omitempty"`
	RejectedAt         *time.Time                  `json:"rejected_at,omitempty"`
	RejectionReason    *string                     `gorm:"type:text" json:"rejection_reason,omitempty"`
	CancelledBy        *string                     `gorm:"size:128" json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time                  `json:"cancelled_at,omitempty"`
	CancellationReason *string                     `gorm:"type:text" json:"cancellation_reason,omitempty"`
	UpdatedBy          string                      `gorm:"size:128" json:"updated_by,omitempty"`
	UpdatedAt          time.Time                   `json:"updated_at"`
	HiddenBy           datatypes.JSONSlice[string] `json:"hidden_by"`
	MigratedFrom       *string                     `gorm:"size:300" json:"migrated_from,omitempty"`
}

func (Meeting) TableName() string { return CollectionMeetings }

func (m *Meeting) isTerminal() bool {
	return m.Status == StatusRejected || m.Status == StatusCancelled
}

func (m *Meeting) hiddenFor(uid string) bool {
	for _, h := range m.HiddenBy {
		if h == uid {
			return true
		}
	}
	return false
}

// --- DTOs ---

type SlotInput struct {
	SlotStart string `json:"slot_start" validate:"required"`
	SlotEnd   string `json:"slot_end"`
}

type SetAvailabilityRequest struct {
	MentorID string      `json:"mentor_id" validate:"required"`
	Day      string      `json:"day" validate:"required,datetime=2006-01-02"`
	Slots    []SlotInput `json:"slots" validate:"required,min=1,dive"`
}

type AvailabilityQuery struct {
	MentorID  string `query:"mentor_id" json:"mentor_id" validate:"required"`
	StartDate string `query:"start_date" json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type CreateMeetingRequest struct {
	MentorID       string     `json:"mentor_id" validate:"required"`
	MenteeID       string     `json:"mentee_id" validate:"required"`
	StartTime      time.Time  `json:"start_time" validate:"required"`
	EndTime        *time.Time `json:"end_time"`
	Topic          string     `json:"topic" validate:"max=500"`
	Location       string     `json:"location" validate:"max=255"`
	AvailabilityID string     `json:"availability_id"`
}

type RequestMeetingRequest struct {
	MentorID       string `json:"mentor_id" validate:"required"`
	MenteeID       string `json:"mentee_id" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"start_time" validate:"required"`
	EndTime        string `json:"end_time"`
	Topic          string `json:"topic" validate:"required,max=500"`
	Location       string `json:"location" validate:"max=255"`
	AvailabilityID string `json:"availability_id"`
}

type StatusChangeRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type UpdateMeetingRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Topic     *string    `json:"topic" validate:"omitempty,max=500"`
	Location  *string    `json:"location" validate:"omitempty,max=255"`
}

type ListMeetingsQuery struct {
	UserID        string `query:"user_id" json:"user_id"`
	Status        string `query:"status" json:"status" validate:"omitempty,oneof=pending accepted rejected cancelled"`
	IncludeHidden bool   `query:"include_hidden" json:"include_hidden"`
}
