package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrMeetingNotFound  = apperr.New(apperr.NotFound, "Meeting not found")
	ErrMeetingExists    = apperr.New(apperr.AlreadyExists, "A meeting for this mentor, mentee and start time already exists")
	ErrPartyNotFound    = apperr.New(apperr.NotFound, "Mentor or mentee not found")
	ErrNotParticipant   = apperr.New(apperr.PermissionDenied, "Can only act on meetings you are part of")
	ErrOnlyMentorAccept = apperr.New(apperr.PermissionDenied, "Only the mentor can accept this meeting")
	ErrRequestForSelf   = apperr.New(apperr.PermissionDenied, "Can only request meetings for yourself")
	ErrMeetingClosed    = apperr.New(apperr.FailedPrecondition, "Meeting is rejected or cancelled")
	ErrInvalidTimeRange = apperr.New(apperr.InvalidArgument, "end_time must be after start_time")
	ErrMeetingHoldsSlot = apperr.New(apperr.FailedPrecondition, "Cannot move a meeting booked into an availability slot; cancel it and book again")
)

type MeetingService struct {
	store *store.Store
	users UserResolver
}

func NewMeetingService(db *gorm.DB, users UserResolver) *MeetingService {
	return &MeetingService{store: store.New(db), users: users}
}

func meetingsIn(st *store.Store, tenantPath string) *store.Collection {
	return st.Collection(tenantPath, CollectionMeetings)
}

func isMentorOf(ic identity.Context, m *Meeting) bool {
	return ic.IsSelf(m.MentorDocID) || (m.MentorUID != "" && ic.UID == m.MentorUID)
}

func isMenteeOf(ic identity.Context, m *Meeting) bool {
	return ic.IsSelf(m.MenteeDocID) || (m.MenteeUID != "" && ic.UID == m.MenteeUID)
}

func canActOn(ic identity.Context, m *Meeting) bool {
	return ic.IsAdmin() || isMentorOf(ic, m) || isMenteeOf(ic, m)
}

func isUser(ic identity.Context, u *models.User) bool {
	return ic.IsSelf(u.ID) || (u.ProviderUID != nil && ic.UID == *u.ProviderUID)
}

func (s *MeetingService) resolveParties(ctx context.Context, tenantPath, mentorID, menteeID string) (*models.User, *models.User, error) {
	mentor, err := s.users.ResolveUser(ctx, tenantPath, mentorID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, nil, ErrPartyNotFound
		}
		return nil, nil, err
	}
	mentee, err := s.users.ResolveUser(ctx, tenantPath, menteeID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, nil, ErrPartyNotFound
		}
		return nil, nil, err
	}
	return mentor, mentee, nil
}

func newMeeting(mentor, mentee *models.User, start time.Time, end *time.Time, topic, location, availabilityID, createdBy string) *Meeting {
	return &Meeting{
		Doc:            store.Doc{ID: MeetingID(mentor.ID, mentee.ID, start)},
		MentorDocID:    mentor.ID,
		MenteeDocID:    mentee.ID,
		MentorUID:      providerUID(mentor),
		MenteeUID:      providerUID(mentee),
		MentorName:     mentor.Name,
		MenteeName:     mentee.Name,
		StartTime:      start,
		EndTime:        end,
		Topic:          strings.TrimSpace(topic),
		Location:       strings.TrimSpace(location),
		Status:         StatusPending,
		AvailabilityID: strPtr(availabilityID),
		CreatedBy:      createdBy,
		UpdatedBy:      createdBy,
		HiddenBy:       datatypes.JSONSlice[string]{},
	}
}

func (m *Meeting) booking() booking {
	return booking{
		MentorDocID: m.MentorDocID,
		MenteeDocID: m.MenteeDocID,
		MenteeUID:   m.MenteeUID,
		MenteeName:  m.MenteeName,
		MeetingID:   m.ID,
	}
}

// CreateMeeting writes a pending meeting and, when a slot is referenced,
// books it in the same transaction.
func (s *MeetingService) CreateMeeting(ctx context.Context, ic identity.Context, req *CreateMeetingRequest) (*Meeting, error) {
	if err := identity.RequireRole(ic, identity.RoleMentor, identity.RoleMentee, identity.RoleCoordinator, identity.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if req.EndTime != nil && !req.EndTime.After(req.StartTime) {
		return nil, ErrInvalidTimeRange
	}

	mentor, mentee, err := s.resolveParties(ctx, ic.TenantPath, req.MentorID, req.MenteeID)
	if err != nil {
		return nil, err
	}
	if !ic.IsAdmin() && !isUser(ic, mentor) && !isUser(ic, mentee) {
		return nil, ErrNotParticipant
	}

	m := newMeeting(mentor, mentee, req.StartTime, req.EndTime, req.Topic, req.Location, req.AvailabilityID, ic.UID)
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := meetingsIn(tx, ic.TenantPath).Create(ctx, m); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrMeetingExists
			}
			return err
		}
		if m.AvailabilityID == nil {
			return nil
		}
		return bookSlot(ctx, tx, ic.TenantPath, *m.AvailabilityID, m.booking())
	})
	if err != nil {
		return nil, err
	}

	slog.Info("meeting created", "tenant_path", ic.TenantPath, "meeting_id", m.ID,
		"user_id", ic.UID, "action", "create_meeting")
	return m, nil
}

// RequestMeeting writes a pending meeting without booking its slot; the slot
// is booked when the mentor accepts.
func (s *MeetingService) RequestMeeting(ctx context.Context, ic identity.Context, req *RequestMeetingRequest) (*Meeting, error) {
	if ic.UID == "" {
		return nil, identity.ErrUnauthenticated
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	start, err := combineDateTime(req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if req.EndTime != "" {
		e, err := combineDateTime(req.Date, req.EndTime)
		if err != nil {
			return nil, err
		}
		if !e.After(start) {
			return nil, ErrInvalidTimeRange
		}
		end = &e
	}

	mentor, mentee, err := s.resolveParties(ctx, ic.TenantPath, req.MentorID, req.MenteeID)
	if err != nil {
		return nil, err
	}
	if ic.Role == identity.RoleMentee && !isUser(ic, mentee) {
		return nil, ErrRequestForSelf
	}
	if !ic.IsAdmin() && !isUser(ic, mentor) && !isUser(ic, mentee) {
		return nil, ErrNotParticipant
	}

	if req.AvailabilityID != "" {
		if err := s.checkSlotFree(ctx, ic.TenantPath, req.AvailabilityID, mentor.ID); err != nil {
			return nil, err
		}
	}

	m := newMeeting(mentor, mentee, start, end, req.Topic, req.Location, req.AvailabilityID, ic.UID)
	now := time.Now()
	m.RequestedBy = &mentee.ID
	m.RequestedAt = &now

	if err := meetingsIn(s.store, ic.TenantPath).Create(ctx, m); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrMeetingExists
		}
		return nil, err
	}

	slog.Info("meeting requested", "tenant_path", ic.TenantPath, "meeting_id", m.ID,
		"user_id", ic.UID, "action", "request_meeting")
	return m, nil
}

func (s *MeetingService) checkSlotFree(ctx context.Context, tenantPath, ref, mentorDocID string) error {
	r, err := parseSlotRef(ref)
	if err != nil {
		return err
	}
	var day AvailabilityDay
	if err := availabilityIn(s.store, tenantPath).Get(ctx, r.DayID, &day); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSlotNotFound
		}
		return err
	}
	i := r.find(day.Slots)
	if i < 0 {
		return ErrSlotNotFound
	}
	if day.Slots[i].IsBooked {
		return ErrSlotBooked
	}
	if day.MentorID != mentorDocID {
		return ErrSlotWrongMentor
	}
	return nil
}

// mutate loads the meeting under a row lock, applies fn and saves it, all in
// one transaction.
func (s *MeetingService) mutate(ctx context.Context, tenantPath, id string, fn func(tx *store.Store, m *Meeting) error) (*Meeting, error) {
	var m Meeting
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		col := meetingsIn(tx, tenantPath)
		if err := col.Get(ctx, id, &m, store.ForUpdate()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMeetingNotFound
			}
			return err
		}
		if err := fn(tx, &m); err != nil {
			return err
		}
		return col.Save(ctx, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MeetingService) AcceptMeeting(ctx context.Context, ic identity.Context, id string) (*Meeting, error) {
	return s.mutate(ctx, ic.TenantPath, id, func(tx *store.Store, m *Meeting) error {
		if !ic.IsAdmin() && !isMentorOf(ic, m) {
			if isMenteeOf(ic, m) {
				return ErrOnlyMentorAccept
			}
			return ErrNotParticipant
		}
		if m.Status != StatusPending {
			return apperr.Newf(apperr.FailedPrecondition, "Cannot accept meeting with status: %s", m.Status)
		}
		if m.AvailabilityID != nil {
			if err := bookSlot(ctx, tx, ic.TenantPath, *m.AvailabilityID, m.booking()); err != nil {
				return err
			}
		}

		now := time.Now()
		m.Status = StatusAccepted
		m.AcceptedBy = &ic.UID
		m.AcceptedAt = &now
		m.UpdatedBy = ic.UID
		return nil
	})
}

func (s *MeetingService) RejectMeeting(ctx context.Context, ic identity.Context, id, reason string) (*Meeting, error) {
	return s.mutate(ctx, ic.TenantPath, id, func(tx *store.Store, m *Meeting) error {
		if !canActOn(ic, m) {
			return ErrNotParticipant
		}
		if m.Status != StatusPending {
			return apperr.Newf(apperr.FailedPrecondition, "Cannot reject meeting with status: %s", m.Status)
		}
		if m.AvailabilityID != nil {
			if err := releaseSlot(ctx, tx, ic.TenantPath, *m.AvailabilityID, m.ID); err != nil {
				return err
			}
		}

		now := time.Now()
		m.Status = StatusRejected
		m.RejectedBy = &ic.UID
		m.RejectedAt = &now
		m.RejectionReason = strPtr(strings.TrimSpace(reason))
		m.UpdatedBy = ic.UID
		return nil
	})
}

func (s *MeetingService) CancelMeeting(ctx context.Context, ic identity.Context, id, reason string) (*Meeting, error) {
	return s.mutate(ctx, ic.TenantPath, id, func(tx *store.Store, m *Meeting) error {
		if !canActOn(ic, m) {
			return ErrNotParticipant
		}
		if m.isTerminal() {
			return apperr.Newf(apperr.FailedPrecondition, "Cannot cancel meeting with status: %s", m.Status)
		}
		if m.AvailabilityID != nil {
			if err := releaseSlot(ctx, tx, ic.TenantPath, *m.AvailabilityID, m.ID); err != nil {
				return err
			}
		}

		now := time.Now()
		m.Status = StatusCancelled
		m.CancelledBy = &ic.UID
		m.CancelledAt = &now
		m.CancellationReason = strPtr(strings.TrimSpace(reason))
		m.UpdatedBy = ic.UID
		return nil
	})
}

func (s *MeetingService) HideMeeting(ctx context.Context, ic identity.Context, id string) (*Meeting, error) {
	return s.mutate(ctx, ic.TenantPath, id, func(_ *store.Store, m *Meeting) error {
		if !canActOn(ic, m) {
			return ErrNotParticipant
		}
		if !m.hiddenFor(ic.UID) {
			m.HiddenBy = append(m.HiddenBy, ic.UID)
		}
		return nil
	})
}

func (s *MeetingService) UnhideMeeting(ctx context.Context, ic identity.Context, id string) (*Meeting, error) {
	return s.mutate(ctx, ic.TenantPath, id, func(_ *store.Store, m *Meeting) error {
		if !canActOn(ic, m) {
			return ErrNotParticipant
		}
		kept := make(datatypes.JSONSlice[string], 0, len(m.HiddenBy))
		for _, h := range m.HiddenBy {
			if h != ic.UID {
				kept = append(kept, h)
			}
		}
		m.HiddenBy = kept
		return nil
	})
}

// UpdateMeeting edits time, topic or location. Status only moves through
// accept, reject and cancel. A meeting tied to a slot keeps its start time.
func (s *MeetingService) UpdateMeeting(ctx context.Context, ic identity.Context, id string, req *UpdateMeetingRequest) (*Meeting, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if req.StartTime == nil && req.EndTime == nil && req.Topic == nil && req.Location == nil {
		return nil, apperr.New(apperr.InvalidArgument, "No fields to update")
	}

	return s.mutate(ctx, ic.TenantPath, id, func(_ *store.Store, m *Meeting) error {
		if !canActOn(ic, m) {
			return ErrNotParticipant
		}
		if m.isTerminal() {
			return ErrMeetingClosed
		}
		if req.StartTime != nil && !req.StartTime.Equal(m.StartTime) {
			if m.AvailabilityID != nil {
				return ErrMeetingHoldsSlot
			}
			m.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			end := *req.EndTime
			m.EndTime = &end
		}
		if m.EndTime != nil && !m.EndTime.After(m.StartTime) {
			return ErrInvalidTimeRange
		}
		if req.Topic != nil {
			m.Topic = strings.TrimSpace(*req.Topic)
		}
		if req.Location != nil {
			m.Location = strings.TrimSpace(*req.Location)
		}
		m.UpdatedBy = ic.UID
		return nil
	})
}

func (s *MeetingService) GetMeeting(ctx context.Context, ic identity.Context, id string) (*Meeting, error) {
	var m Meeting
	if err := meetingsIn(s.store, ic.TenantPath).Get(ctx, id, &m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, err
	}
	if !canActOn(ic, &m) {
		return nil, ErrNotParticipant
	}
	return &m, nil
}

// ListMeetings returns the caller's meetings (or user_id's, for coordinators)
// ordered by start time. Meetings the caller hid are skipped unless asked for.
func (s *MeetingService) ListMeetings(ctx context.Context, ic identity.Context, q *ListMeetingsQuery) ([]Meeting, error) {
	if ic.UID == "" {
		return nil, identity.ErrUnauthenticated
	}
	if err := dto.Validate(q); err != nil {
		return nil, err
	}

	docID, uid := ic.DirectoryID, ic.UID
	if q.UserID != "" && !ic.IsSelf(q.UserID) {
		if !ic.IsAdmin() {
			return nil, identity.ErrPermission
		}
		u, err := s.users.ResolveUser(ctx, ic.TenantPath, q.UserID)
		if err != nil {
			return nil, err
		}
		docID, uid = u.ID, providerUID(u)
	}

	var conds []string
	var args []interface{}
	if docID != "" {
		conds = append(conds, "mentor_doc_id = ?", "mentee_doc_id = ?")
		args = append(args, docID, docID)
	}
	if uid != "" {
		conds = append(conds, "mentor_uid = ?", "mentee_uid = ?")
		args = append(args, uid, uid)
	}
	if len(conds) == 0 {
		return []Meeting{}, nil
	}

	scopes := []store.Scope{store.Where(fmt.Sprintf("(%s)", strings.Join(conds, " OR ")), args...)}
	if q.Status != "" {
		scopes = append(scopes, store.Where("status = ?", q.Status))
	}
	scopes = append(scopes, store.OrderBy("start_time", false))

	var found []Meeting
	if err := meetingsIn(s.store, ic.TenantPath).Query(ctx, &found, scopes...); err != nil {
		return nil, err
	}

	result := make([]Meeting, 0, len(found))
	for _, m := range found {
		if !q.IncludeHidden && m.hiddenFor(ic.UID) {
			continue
		}
		result = append(result, m)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}
