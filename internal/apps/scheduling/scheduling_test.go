package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "california_merced_uc_merced"

type fakeUsers map[string]*models.User

func (f fakeUsers) ResolveUser(_ context.Context, _ string, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	for _, u := range f {
		if u.ProviderUID != nil && *u.ProviderUID == id {
			return u, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "User not found")
}

func (f fakeUsers) add(id, uid, userType string) identity.Context {
	f[id] = &models.User{Name: id, UserType: userType, ProviderUID: &uid}
	f[id].ID = id
	return identity.Context{UID: uid, Role: identity.Role(userType), TenantPath: testTenant, DirectoryID: id}
}

type fixture struct {
	availability *AvailabilityService
	meetings     *MeetingService
	users        fakeUsers
	mentor       identity.Context
	mentee       identity.Context
	admin        identity.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t, &AvailabilityDay{}, &Meeting{})
	users := fakeUsers{}
	f := &fixture{
		availability: NewAvailabilityService(db, users),
		meetings:     NewMeetingService(db, users),
		users:        users,
		mentor:       users.add("jane_doe", "uid-mentor", "mentor"),
		mentee:       users.add("john_roe", "uid-mentee", "mentee"),
	}
	f.admin = identity.Context{UID: "uid-coord", Role: identity.RoleCoordinator, TenantPath: testTenant}
	return f
}

func (f *fixture) openDay(t *testing.T, day string, starts ...string) *AvailabilityDay {
	t.Helper()
	req := &SetAvailabilityRequest{MentorID: "jane_doe", Day: day}
	for _, s := range starts {
		req.Slots = append(req.Slots, SlotInput{SlotStart: s})
	}
	d, err := f.availability.SetAvailability(context.Background(), f.mentor, req)
	require.NoError(t, err)
	return d
}

func TestParseSlotRef(t *testing.T) {
	r, err := parseSlotRef("jane_doe_2025-03-10__1400")
	require.NoError(t, err)
	assert.Equal(t, "jane_doe_2025-03-10", r.DayID)
	assert.Equal(t, "14:00", r.Start)

	r, err = parseSlotRef("jane_doe_2025-03-10_slot_2")
	require.NoError(t, err)
	assert.Equal(t, "jane_doe_2025-03-10", r.DayID)
	assert.Equal(t, 2, r.Index)

	_, err = parseSlotRef("garbage")
	assert.ErrorIs(t, err, ErrInvalidSlotRef)
}

func TestNormalizeSlots(t *testing.T) {
	slots, err := normalizeSlots([]SlotInput{{SlotStart: "15:00"}, {SlotStart: "09:30", SlotEnd: "10:00"}, {SlotStart: "23:30"}})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "09:30", slots[0].SlotStart)
	assert.Equal(t, "16:00", slots[1].SlotEnd)
	assert.Equal(t, "23:59", slots[2].SlotEnd)

	_, err = normalizeSlots([]SlotInput{{SlotStart: "10:00"}, {SlotStart: "10:30"}})
	assert.ErrorIs(t, err, ErrOverlappingSlot)

	_, err = normalizeSlots([]SlotInput{{SlotStart: "10:00", SlotEnd: "09:00"}})
	assert.ErrorIs(t, err, ErrInvalidSlotTime)
}

func TestSetAvailability_VersionsAndBookedGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := f.openDay(t, "2025-03-10", "14:00")
	assert.Equal(t, 1, day.Version)
	assert.Equal(t, "jane_doe_2025-03-10", day.ID)

	day = f.openDay(t, "2025-03-10", "14:00", "16:00")
	assert.Equal(t, 2, day.Version)
	assert.Len(t, day.Slots, 2)

	_, err := f.meetings.CreateMeeting(ctx, f.mentee, &CreateMeetingRequest{
		MentorID:       "jane_doe",
		MenteeID:       "john_roe",
		StartTime:      time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		AvailabilityID: SlotRef(day.ID, "14:00"),
	})
	require.NoError(t, err)

	_, err = f.availability.SetAvailability(ctx, f.mentor, &SetAvailabilityRequest{
		MentorID: "jane_doe", Day: "2025-03-10", Slots: []SlotInput{{SlotStart: "09:00"}},
	})
	assert.ErrorIs(t, err, ErrBookedSlots)
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))

	open, err := f.availability.GetAvailableSlots(ctx, f.mentee, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Len(t, open[0].Slots, 1)
	assert.Equal(t, "16:00", open[0].Slots[0].SlotStart)
}

func TestSetAvailability_OtherMentorDenied(t *testing.T) {
	f := newFixture(t)
	other := f.users.add("max_poe", "uid-other", "mentor")

	_, err := f.availability.SetAvailability(context.Background(), other, &SetAvailabilityRequest{
		MentorID: "jane_doe", Day: "2025-03-10", Slots: []SlotInput{{SlotStart: "09:00"}},
	})
	assert.ErrorIs(t, err, ErrOwnAvailability)
}

func TestRemoveAvailabilitySlot_DeletesEmptyDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.openDay(t, "2025-03-11", "10:00")

	require.NoError(t, f.availability.RemoveAvailabilitySlot(ctx, f.mentor, SlotRef(day.ID, "10:00")))

	days, err := f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestCreateThenReject_ReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.openDay(t, "2025-03-10", "14:00")
	ref := SlotRef(day.ID, "14:00")

	m, err := f.meetings.CreateMeeting(ctx, f.mentee, &CreateMeetingRequest{
		MentorID:       "jane_doe",
		MenteeID:       "john_roe",
		StartTime:      time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		Topic:          "Course planning",
		AvailabilityID: ref,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, "jane_doe__john_roe__1741615200", m.ID)

	days, err := f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	slot := days[0].Slots[0]
	require.True(t, slot.IsBooked)
	assert.Equal(t, m.ID, *slot.MeetingID)
	assert.Equal(t, "john_roe", *slot.BookedBy)

	rejected, err := f.meetings.RejectMeeting(ctx, f.mentor, m.ID, "conflict")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "conflict", *rejected.RejectionReason)

	days, err = f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	assert.False(t, days[0].Slots[0].IsBooked)
	assert.Nil(t, days[0].Slots[0].MeetingID)
}

func TestCancelAccepted_ReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.openDay(t, "2025-03-10", "14:00", "15:00")

	m, err := f.meetings.CreateMeeting(ctx, f.mentee, &CreateMeetingRequest{
		MentorID:       "jane_doe",
		MenteeID:       "john_roe",
		StartTime:      time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		AvailabilityID: SlotRef(day.ID, "14:00"),
	})
	require.NoError(t, err)
	_, err = f.meetings.AcceptMeeting(ctx, f.mentor, m.ID)
	require.NoError(t, err)

	cancelled, err := f.meetings.CancelMeeting(ctx, f.mentee, m.ID, "exam")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "uid-mentee", *cancelled.CancelledBy)

	days, err := f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	require.Len(t, days[0].Slots, 2)
	slot := days[0].Slots[0]
	assert.False(t, slot.IsBooked)
	assert.Nil(t, slot.MeetingID)
	assert.Nil(t, slot.BookedBy)

	_, err = f.availability.SetAvailability(ctx, f.mentor, &SetAvailabilityRequest{
		MentorID: "jane_doe", Day: "2025-03-10", Slots: []SlotInput{{SlotStart: "09:00"}},
	})
	assert.NoError(t, err)
}

func TestRemoveAvailabilitySlot_BookedIsFailedPrecondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.openDay(t, "2025-03-10", "14:00", "16:00")
	ref := SlotRef(day.ID, "14:00")

	_, err := f.meetings.CreateMeeting(ctx, f.mentee, &CreateMeetingRequest{
		MentorID:       "jane_doe",
		MenteeID:       "john_roe",
		StartTime:      time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		AvailabilityID: ref,
	})
	require.NoError(t, err)

	before, err := f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)

	err = f.availability.RemoveAvailabilitySlot(ctx, f.mentor, ref)
	require.Error(t, err)
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))

	after, err := f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Version, after[0].Version)
	assert.Equal(t, before[0].Slots, after[0].Slots)
}

func TestUpdateMeeting_SlotMeetingKeepsStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.openDay(t, "2025-03-10", "14:00")
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	booked, err := f.meetings.CreateMeeting(ctx, f.mentee, &CreateMeetingRequest{
		MentorID: "jane_doe", MenteeID: "john_roe", StartTime: start, AvailabilityID: SlotRef(day.ID, "14:00"),
	})
	require.NoError(t, err)

	moved := start.Add(2 * time.Hour)
	_, err = f.meetings.UpdateMeeting(ctx, f.mentor, booked.ID, &UpdateMeetingRequest{StartTime: &moved})
	assert.ErrorIs(t, err, ErrMeetingHoldsSlot)

	topic := "Course planning"
	same := start
	updated, err := f.meetings.UpdateMeeting(ctx, f.mentor, booked.ID, &UpdateMeetingRequest{StartTime: &same, Topic: &topic})
	require.NoError(t, err)
	assert.Equal(t, topic, updated.Topic)

	free, err := f.meetings.CreateMeeting(ctx, f.mentor, &CreateMeetingRequest{
		MentorID: "jane_doe", MenteeID: "john_roe", StartTime: start.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	updated, err = f.meetings.UpdateMeeting(ctx, f.mentor, free.ID, &UpdateMeetingRequest{StartTime: &moved})
	require.NoError(t, err)
	assert.True(t, moved.Equal(updated.StartTime))
}

func TestCreateMeeting_DuplicateIsAlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &CreateMeetingRequest{
		MentorID:  "jane_doe",
		MenteeID:  "john_roe",
		StartTime: time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
	}

	_, err := f.meetings.CreateMeeting(ctx, f.mentee, req)
	require.NoError(t, err)
	_, err = f.meetings.CreateMeeting(ctx, f.mentor, req)
	assert.ErrorIs(t, err, ErrMeetingExists)
	assert.Equal(t, apperr.AlreadyExists, apperr.KindOf(err))
}

func TestCreateMeeting_NoDoubleBooking(t *testing.T) {
	f := newFixture(t)
	day := f.openDay(t, "2025-03-10", "14:00")
	ref := SlotRef(day.ID, "14:00")

	const n = 5
	mentees := make([]identity.Context, n)
	for i := range mentees {
		id := string(rune('a'+i)) + "_student"
		mentees[i] = f.users.add(id, "uid-"+id, "mentee")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range mentees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.meetings.CreateMeeting(context.Background(), mentees[i], &CreateMeetingRequest{
				MentorID:       "jane_doe",
				MenteeID:       mentees[i].DirectoryID,
				StartTime:      time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
				AvailabilityID: ref,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotBooked)
	}
	assert.Equal(t, 1, succeeded)

	var meetings []Meeting
	require.NoError(t, meetingsIn(f.meetings.store, testTenant).Query(context.Background(), &meetings))
	assert.Len(t, meetings, 1)
}

func TestMeetingStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.meetings.CreateMeeting(ctx, f.mentor, &CreateMeetingRequest{
		MentorID:  "jane_doe",
		MenteeID:  "john_roe",
		StartTime: time.Date(2025, 4, 1, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = f.meetings.AcceptMeeting(ctx, f.mentee, m.ID)
	assert.ErrorIs(t, err, ErrOnlyMentorAccept)

	accepted, err := f.meetings.AcceptMeeting(ctx, f.mentor, m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Equal(t, "uid-mentor", *accepted.AcceptedBy)

	_, err = f.meetings.AcceptMeeting(ctx, f.mentor, m.ID)
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	_, err = f.meetings.RejectMeeting(ctx, f.mentor, m.ID, "")
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))

	cancelled, err := f.meetings.CancelMeeting(ctx, f.mentee, m.ID, "sick")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.meetings.CancelMeeting(ctx, f.admin, m.ID, "")
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))

	topic := "new topic"
	_, err = f.meetings.UpdateMeeting(ctx, f.mentor, m.ID, &UpdateMeetingRequest{Topic: &topic})
	assert.ErrorIs(t, err, ErrMeetingClosed)
}

func TestRequestMeeting_BooksOnAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.openDay(t, "2025-03-10", "14:00")
	ref := SlotRef(day.ID, "14:00")

	m, err := f.meetings.RequestMeeting(ctx, f.mentee, &RequestMeetingRequest{
		MentorID:       "jane_doe",
		MenteeID:       "john_roe",
		Date:           "2025-03-10",
		StartTime:      "14:00",
		EndTime:        "15:00",
		Topic:          "Thesis",
		AvailabilityID: ref,
	})
	require.NoError(t, err)
	assert.Equal(t, "john_roe", *m.RequestedBy)
	assert.Equal(t, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC), m.EndTime.UTC())

	days, err := f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	assert.False(t, days[0].Slots[0].IsBooked)

	_, err = f.meetings.AcceptMeeting(ctx, f.mentor, m.ID)
	require.NoError(t, err)

	days, err = f.availability.GetAvailability(ctx, f.mentor, &AvailabilityQuery{MentorID: "jane_doe"})
	require.NoError(t, err)
	assert.True(t, days[0].Slots[0].IsBooked)
}

func TestRequestMeeting_MenteeOnlyForSelf(t *testing.T) {
	f := newFixture(t)
	f.users.add("ann_lee", "uid-ann", "mentee")

	_, err := f.meetings.RequestMeeting(context.Background(), f.mentee, &RequestMeetingRequest{
		MentorID:  "jane_doe",
		MenteeID:  "ann_lee",
		Date:      "2025-03-10",
		StartTime: "14:00",
		Topic:     "Thesis",
	})
	assert.ErrorIs(t, err, ErrRequestForSelf)
}

func TestListMeetings_HiddenAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late, err := f.meetings.CreateMeeting(ctx, f.mentor, &CreateMeetingRequest{
		MentorID: "jane_doe", MenteeID: "john_roe", StartTime: time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	early, err := f.meetings.CreateMeeting(ctx, f.mentor, &CreateMeetingRequest{
		MentorID: "jane_doe", MenteeID: "john_roe", StartTime: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	list, err := f.meetings.ListMeetings(ctx, f.mentee, &ListMeetingsQuery{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, early.ID, list[0].ID)

	_, err = f.meetings.HideMeeting(ctx, f.mentee, late.ID)
	require.NoError(t, err)

	list, err = f.meetings.ListMeetings(ctx, f.mentee, &ListMeetingsQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.meetings.ListMeetings(ctx, f.mentor, &ListMeetingsQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.meetings.UnhideMeeting(ctx, f.mentee, late.ID)
	require.NoError(t, err)
	list, err = f.meetings.ListMeetings(ctx, f.mentee, &ListMeetingsQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.meetings.ListMeetings(ctx, f.mentee, &ListMeetingsQuery{UserID: "jane_doe"})
	assert.ErrorIs(t, err, identity.ErrPermission)
}
