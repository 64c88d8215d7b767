package scheduling

import (
	"context"
	"errors"
	"log/slog"
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
	ErrBookedSlots      = apperr.New(apperr.FailedPrecondition, "Cannot override availability with booked slots. Please cancel bookings first.")
	ErrSlotNotFound     = apperr.New(apperr.NotFound, "Availability slot not found")
	ErrSlotBooked       = apperr.New(apperr.FailedPrecondition, "This slot is already booked")
	ErrSlotWrongMentor  = apperr.New(apperr.InvalidArgument, "Availability slot does not belong to the specified mentor")
	ErrNotAMentor       = apperr.New(apperr.InvalidArgument, "mentor_id does not name a mentor")
	ErrOwnAvailability  = apperr.New(apperr.PermissionDenied, "Can only manage your own availability")
	ErrConcurrentUpdate = apperr.New(apperr.FailedPrecondition, "Availability changed concurrently, retry")
)

// UserResolver finds directory records by directory id or provider uid.
type UserResolver interface {
	ResolveUser(ctx context.Context, tenantPath, id string) (*models.User, error)
}

type AvailabilityService struct {
	store *store.Store
	users UserResolver
}

func NewAvailabilityService(db *gorm.DB, users UserResolver) *AvailabilityService {
	return &AvailabilityService{store: store.New(db), users: users}
}

func availabilityIn(st *store.Store, tenantPath string) *store.Collection {
	return st.Collection(tenantPath, CollectionAvailability)
}

func providerUID(u *models.User) string {
	if u.ProviderUID == nil {
		return ""
	}
	return *u.ProviderUID
}

// ownsDay reports whether the caller is the mentor the day belongs to.
func ownsDay(ic identity.Context, day *AvailabilityDay) bool {
	return ic.IsSelf(day.MentorID) || (day.MentorUID != "" && ic.UID == day.MentorUID)
}

// SetAvailability replaces a mentor's slots for one day. A day holding any
// booked slot is left untouched.
func (s *AvailabilityService) SetAvailability(ctx context.Context, ic identity.Context, req *SetAvailabilityRequest) (*AvailabilityDay, error) {
	if err := identity.RequireRole(ic, identity.RoleMentor, identity.RoleCoordinator, identity.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	mentor, err := s.users.ResolveUser(ctx, ic.TenantPath, req.MentorID)
	if err != nil {
		return nil, err
	}
	if mentor.UserType != string(identity.RoleMentor) {
		return nil, ErrNotAMentor
	}
	if ic.Role == identity.RoleMentor && !ic.IsSelf(mentor.ID) && ic.UID != providerUID(mentor) {
		return nil, ErrOwnAvailability
	}

	slots, err := normalizeSlots(req.Slots)
	if err != nil {
		return nil, err
	}

	dayID := DayID(mentor.ID, req.Day)
	var day AvailabilityDay
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		col := availabilityIn(tx, ic.TenantPath)

		err := col.Get(ctx, dayID, &day, store.ForUpdate())
		switch {
		case errors.Is(err, store.ErrNotFound):
			day = AvailabilityDay{
				Doc:       store.Doc{ID: dayID},
				MentorID:  mentor.ID,
				MentorUID: providerUID(mentor),
				Day:       req.Day,
				Slots:     datatypes.JSONSlice[Slot](slots),
				Synced:    true,
				Version:   1,
			}
			if err := col.Create(ctx, &day); err != nil {
				if errors.Is(err, store.ErrAlreadyExists) {
					return ErrConcurrentUpdate
				}
				return err
			}
			return nil
		case err != nil:
			return err
		}

		if day.hasBookedSlots() {
			return ErrBookedSlots
		}
		day.MentorUID = providerUID(mentor)
		day.Slots = datatypes.JSONSlice[Slot](slots)
		day.Synced = true
		day.Version++
		return col.Save(ctx, &day)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("availability set", "tenant_path", ic.TenantPath, "day_id", dayID,
		"slots", len(slots), "version", day.Version, "action", "set_availability")
	return &day, nil
}

// GetAvailability lists a mentor's days within the optional date range.
func (s *AvailabilityService) GetAvailability(ctx context.Context, ic identity.Context, q *AvailabilityQuery) ([]AvailabilityDay, error) {
	if ic.UID == "" {
		return nil, identity.ErrUnauthenticated
	}
	if err := dto.Validate(q); err != nil {
		return nil, err
	}

	mentor, err := s.users.ResolveUser(ctx, ic.TenantPath, q.MentorID)
	if err != nil {
		return nil, err
	}

	scopes := []store.Scope{store.Where("mentor_id = ?", mentor.ID)}
	if q.StartDate != "" {
		scopes = append(scopes, store.Where("day >= ?", q.StartDate))
	}
	if q.EndDate != "" {
		scopes = append(scopes, store.Where("day <= ?", q.EndDate))
	}
	scopes = append(scopes, store.OrderBy("day", false))

	days := []AvailabilityDay{}
	if err := availabilityIn(s.store, ic.TenantPath).Query(ctx, &days, scopes...); err != nil {
		return nil, err
	}
	return days, nil
}

// GetAvailableSlots is GetAvailability narrowed to unbooked slots; days with
// none are dropped.
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, ic identity.Context, q *AvailabilityQuery) ([]AvailabilityDay, error) {
	days, err := s.GetAvailability(ctx, ic, q)
	if err != nil {
		return nil, err
	}

	open := make([]AvailabilityDay, 0, len(days))
	for _, d := range days {
		free := make(datatypes.JSONSlice[Slot], 0, len(d.Slots))
		for _, slot := range d.Slots {
			if !slot.IsBooked {
				free = append(free, slot)
			}
		}
		if len(free) == 0 {
			continue
		}
		d.Slots = free
		open = append(open, d)
	}
	return open, nil
}

// RemoveAvailabilitySlot deletes one unbooked slot, and the day once empty.
func (s *AvailabilityService) RemoveAvailabilitySlot(ctx context.Context, ic identity.Context, ref string) error {
	if ic.UID == "" {
		return identity.ErrUnauthenticated
	}
	r, err := parseSlotRef(ref)
	if err != nil {
		return err
	}

	return s.store.Transaction(ctx, func(tx *store.Store) error {
		col := availabilityIn(tx, ic.TenantPath)

		var day AvailabilityDay
		if err := col.Get(ctx, r.DayID, &day, store.ForUpdate()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSlotNotFound
			}
			return err
		}
		if !ic.IsAdmin() && !ownsDay(ic, &day) {
			return ErrOwnAvailability
		}

		i := r.find(day.Slots)
		if i < 0 {
			return ErrSlotNotFound
		}
		if day.Slots[i].IsBooked {
			return apperr.New(apperr.FailedPrecondition, "Cannot remove booked availability slot")
		}

		remaining := make(datatypes.JSONSlice[Slot], 0, len(day.Slots)-1)
		remaining = append(remaining, day.Slots[:i]...)
		remaining = append(remaining, day.Slots[i+1:]...)

		if len(remaining) == 0 {
			return col.Delete(ctx, &AvailabilityDay{}, day.ID)
		}
		day.Slots = remaining
		day.Version++
		return col.Save(ctx, &day)
	})
}

// booking is what a slot records about the meeting holding it.
type booking struct {
	MentorDocID string
	MenteeDocID string
	MenteeUID   string
	MenteeName  string
	MeetingID   string
}

// bookSlot marks the referenced slot as held by b.MeetingID. It must run in
// the caller's transaction.
func bookSlot(ctx context.Context, tx *store.Store, tenantPath, ref string, b booking) error {
	r, err := parseSlotRef(ref)
	if err != nil {
		return err
	}
	col := availabilityIn(tx, tenantPath)

	var day AvailabilityDay
	if err := col.Get(ctx, r.DayID, &day, store.ForUpdate()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSlotNotFound
		}
		return err
	}
	if day.MentorID != b.MentorDocID {
		return ErrSlotWrongMentor
	}
	i := r.find(day.Slots)
	if i < 0 {
		return ErrSlotNotFound
	}

	slot := &day.Slots[i]
	if slot.IsBooked {
		if slot.MeetingID != nil && *slot.MeetingID == b.MeetingID {
			return nil
		}
		return ErrSlotBooked
	}

	now := time.Now()
	slot.IsBooked = true
	slot.BookedBy = strPtr(b.MenteeDocID)
	slot.BookedByUID = strPtr(b.MenteeUID)
	slot.BookedByName = strPtr(b.MenteeName)
	slot.MeetingID = strPtr(b.MeetingID)
	slot.BookedAt = &now
	day.Version++
	return col.Save(ctx, &day)
}

// releaseSlot frees the referenced slot if it is still held by meetingID. A
// vanished day or slot is logged and skipped.
func releaseSlot(ctx context.Context, tx *store.Store, tenantPath, ref, meetingID string) error {
	r, err := parseSlotRef(ref)
	if err != nil {
		slog.Warn("meeting carries an unparseable slot reference", "tenant_path", tenantPath,
			"meeting_id", meetingID, "availability_id", ref)
		return nil
	}
	col := availabilityIn(tx, tenantPath)

	var day AvailabilityDay
	if err := col.Get(ctx, r.DayID, &day, store.ForUpdate()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("slot day vanished, nothing to release", "tenant_path", tenantPath,
				"meeting_id", meetingID, "availability_id", ref)
			return nil
		}
		return err
	}

	i := r.find(day.Slots)
	if i < 0 {
		slog.Warn("slot vanished, nothing to release", "tenant_path", tenantPath,
			"meeting_id", meetingID, "availability_id", ref)
		return nil
	}
	slot := &day.Slots[i]
	if !slot.IsBooked || slot.MeetingID == nil || *slot.MeetingID != meetingID {
		return nil
	}

	slot.clearBooking()
	day.Version++
	return col.Save(ctx, &day)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
