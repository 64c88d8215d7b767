package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/scheduling"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrTenantRequired = apperr.New(apperr.InvalidArgument, "university_path is required")

var legacySubcollections = []string{
	models.LegacyMeetings,
	models.LegacyAvailability,
	models.LegacyRequestedMeetings,
}

type MigrationService struct {
	store *store.Store
}

func NewMigrationService(db *gorm.DB) *MigrationService {
	return &MigrationService{store: store.New(db)}
}

// run carries the per-tenant state of one migration pass. Meetings and days
// are planned first so booked slots can be linked to their meetings before
// anything is written.
type run struct {
	stats  *MigrationStats
	byUID  map[string]*models.User
	tenant string

	meetings []*plannedMeeting
	byTarget map[string]*plannedMeeting
	// byLegacyID indexes planned meetings by the id of every legacy copy.
	byLegacyID map[string][]*plannedMeeting
	// bySlot indexes planned meetings by mentor, mentee uid and start.
	bySlot map[string]*plannedMeeting
	days   []*plannedDay
}

type plannedMeeting struct {
	meeting   *scheduling.Meeting
	label     string
	path      string
	requested bool
	linkedBy  string
}

type plannedDay struct {
	day  *scheduling.AvailabilityDay
	path string
	// legacyMeetingIDs is aligned with day.Slots.
	legacyMeetingIDs []string
}

func (r *run) fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.stats.Errors = append(r.stats.Errors, msg)
	slog.Warn("migration item failed", "tenant_path", r.tenant, "error", msg, "action", "migrate")
}

func slotKey(mentorDocID, menteeUID string, start time.Time) string {
	return mentorDocID + "|" + menteeUID + "|" + start.UTC().Format("2006-01-02 15:04")
}

// MigrateMeetingsAndAvailability re-emits every user's legacy meetings,
// availability and meeting requests as top-level documents. Booked slots are
// re-pointed at the migrated meeting ids and those meetings get the matching
// slot reference. Documents already present at their target id are skipped,
// so the job can be re-run.
func (s *MigrationService) MigrateMeetingsAndAvailability(ctx context.Context, tenantPath string, dryRun bool) (*MigrationStats, error) {
	if tenantPath == "" {
		return nil, ErrTenantRequired
	}

	stats := &MigrationStats{TenantPath: tenantPath, DryRun: dryRun, Errors: []string{}, StartTime: time.Now()}
	var users []models.User
	if err := s.store.Collection(tenantPath, models.CollectionUsers).Query(ctx, &users, store.OrderBy("id", false)); err != nil {
		return nil, err
	}

	r := &run{
		stats:      stats,
		byUID:      make(map[string]*models.User, len(users)),
		tenant:     tenantPath,
		byTarget:   map[string]*plannedMeeting{},
		byLegacyID: map[string][]*plannedMeeting{},
		bySlot:     map[string]*plannedMeeting{},
	}
	for i := range users {
		if uid := users[i].ProviderUID; uid != nil && *uid != "" {
			r.byUID[*uid] = &users[i]
		}
	}

	for i := range users {
		u := &users[i]
		if u.ProviderUID == nil || *u.ProviderUID == "" {
			r.fail("User %s missing provider uid", u.ID)
			continue
		}

		docs, err := s.legacyDocs(ctx, tenantPath, u.ID)
		if err != nil {
			r.fail("Error processing user %s: %v", u.ID, err)
			continue
		}
		for j := range docs {
			doc := &docs[j]
			switch doc.Subcollection {
			case models.LegacyMeetings:
				r.planMeeting(u, doc, false)
			case models.LegacyRequestedMeetings:
				r.planMeeting(u, doc, true)
			case models.LegacyAvailability:
				r.planAvailability(u, doc)
			}
		}
	}

	// Days go first: a meeting only keeps its slot reference when the day
	// holding that slot is written by this run.
	for _, pd := range r.days {
		s.writeDay(ctx, r, pd)
	}
	for _, pm := range r.meetings {
		s.writeMeeting(ctx, r, pm)
	}

	stats.EndTime = time.Now()
	slog.Info("meeting migration finished", "tenant_path", tenantPath, "dry_run", dryRun,
		"meetings", stats.Meetings, "availability", stats.Availability,
		"requested_meetings", stats.RequestedMeetings, "skipped", stats.Skipped,
		"errors", len(stats.Errors), "latency_ms", stats.EndTime.Sub(stats.StartTime).Milliseconds())
	return stats, nil
}

func (s *MigrationService) legacyDocs(ctx context.Context, tenantPath, userID string) ([]models.LegacyDocument, error) {
	var docs []models.LegacyDocument
	err := s.store.DB().WithContext(ctx).
		Scopes(tenant.ForTenant(tenantPath)).
		Where("user_id = ? AND subcollection IN ?", userID, legacySubcollections).
		Order("subcollection, id").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load legacy documents for %s: %w", userID, err)
	}
	return docs, nil
}

// write creates doc unless its id is taken. It reports whether the document
// was (or in dry-run mode would be) written.
func (s *MigrationService) write(ctx context.Context, r *run, collection, id string, doc store.Document) (bool, error) {
	col := s.store.Collection(r.tenant, collection)
	if r.stats.DryRun {
		exists, err := col.Exists(ctx, id)
		if err != nil {
			return false, err
		}
		return !exists, nil
	}

	err := col.Create(ctx, doc)
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	return err == nil, err
}

func (r *run) planMeeting(owner *models.User, doc *models.LegacyDocument, requested bool) {
	label := "Meeting"
	if requested {
		label = "Requested meeting"
	}

	var legacy legacyMeeting
	if err := json.Unmarshal(doc.Data, &legacy); err != nil {
		r.fail("%s %s: %v", label, doc.Path(), err)
		return
	}
	if legacy.StartTime.IsZero() {
		r.fail("%s %s: missing start_time", label, doc.Path())
		return
	}

	ownerUID := *owner.ProviderUID
	isMentor := legacy.MentorID == ownerUID
	otherUID := legacy.MentorID
	if isMentor {
		otherUID = legacy.MenteeID
	}
	other, ok := r.byUID[otherUID]
	if !ok {
		r.fail("%s %s: other user %s not found", label, doc.Path(), otherUID)
		return
	}

	mentor, mentee := other, owner
	if isMentor {
		mentor, mentee = owner, other
	}

	id := scheduling.MeetingID(mentor.ID, mentee.ID, legacy.StartTime.Time)
	if pm, ok := r.byTarget[id]; ok {
		// The other party's copy of a meeting already planned.
		r.byLegacyID[doc.ID] = append(r.byLegacyID[doc.ID], pm)
		r.stats.Skipped++
		return
	}

	status := legacy.Status
	switch {
	case requested:
		status = scheduling.StatusPending
	case status != scheduling.StatusAccepted && status != scheduling.StatusRejected && status != scheduling.StatusCancelled:
		status = scheduling.StatusPending
	}

	path := doc.Path()
	m := &scheduling.Meeting{
		Doc:          store.Doc{ID: id},
		MentorDocID:  mentor.ID,
		MenteeDocID:  mentee.ID,
		MentorUID:    *mentor.ProviderUID,
		MenteeUID:    *mentee.ProviderUID,
		MentorName:   mentor.Name,
		MenteeName:   mentee.Name,
		StartTime:    legacy.StartTime.Time,
		EndTime:      legacy.EndTime.ptr(),
		Topic:        legacy.Topic,
		Location:     legacy.Location,
		Status:       status,
		CreatedBy:    legacy.CreatedBy,
		HiddenBy:     datatypes.JSONSlice[string]{},
		MigratedFrom: &path,
	}
	if requested {
		m.RequestedBy = &mentee.ID
		m.RequestedAt = legacy.StartTime.ptr()
	}

	pm := &plannedMeeting{meeting: m, label: label, path: path, requested: requested}
	r.meetings = append(r.meetings, pm)
	r.byTarget[id] = pm
	r.byLegacyID[doc.ID] = append(r.byLegacyID[doc.ID], pm)
	r.bySlot[slotKey(mentor.ID, *mentee.ProviderUID, legacy.StartTime.Time)] = pm
}

func (r *run) planAvailability(owner *models.User, doc *models.LegacyDocument) {
	var legacy legacyAvailability
	if err := json.Unmarshal(doc.Data, &legacy); err != nil {
		r.fail("Availability %s: %v", doc.Path(), err)
		return
	}
	if _, err := time.Parse("2006-01-02", legacy.Day); err != nil {
		r.fail("Availability %s: invalid day %q", doc.Path(), legacy.Day)
		return
	}

	type entry struct {
		slot     scheduling.Slot
		legacyID string
	}
	entries := make([]entry, 0, len(legacy.Slots))
	for _, ls := range legacy.Slots {
		e := entry{slot: scheduling.Slot{SlotStart: ls.SlotStart, SlotEnd: ls.SlotEnd, IsBooked: ls.IsBooked}}
		if e.slot.SlotEnd == "" {
			end, err := scheduling.DefaultSlotEnd(ls.SlotStart)
			if err != nil {
				r.fail("Availability %s: slot %q: %v", doc.Path(), ls.SlotStart, err)
				return
			}
			e.slot.SlotEnd = end
		}
		if ls.IsBooked {
			if booker, ok := r.byUID[ls.MenteeID]; ok {
				e.slot.BookedBy = &booker.ID
				e.slot.BookedByName = &booker.Name
			}
			if ls.MenteeID != "" {
				uid := ls.MenteeID
				e.slot.BookedByUID = &uid
			}
			e.legacyID = ls.MeetingID
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].slot.SlotStart < entries[j].slot.SlotStart })

	pd := &plannedDay{
		day: &scheduling.AvailabilityDay{
			Doc:       store.Doc{ID: scheduling.DayID(owner.ID, legacy.Day)},
			MentorID:  owner.ID,
			MentorUID: *owner.ProviderUID,
			Day:       legacy.Day,
			Slots:     make(datatypes.JSONSlice[scheduling.Slot], 0, len(entries)),
			Synced:    true,
			Version:   1,
		},
		path:             doc.Path(),
		legacyMeetingIDs: make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		pd.day.Slots = append(pd.day.Slots, e.slot)
		pd.legacyMeetingIDs = append(pd.legacyMeetingIDs, e.legacyID)
	}
	r.days = append(r.days, pd)
}

// match finds the live planned meeting a booked legacy slot belongs to: the
// meeting whose legacy id the slot names, else the one for the same mentor,
// mentee and start.
func (r *run) match(day *scheduling.AvailabilityDay, slot *scheduling.Slot, legacyID string) *plannedMeeting {
	live := func(pm *plannedMeeting) bool {
		if pm.linkedBy != "" || pm.meeting.MentorDocID != day.MentorID {
			return false
		}
		return pm.meeting.Status == scheduling.StatusPending || pm.meeting.Status == scheduling.StatusAccepted
	}

	if legacyID != "" {
		for _, pm := range r.byLegacyID[legacyID] {
			if live(pm) {
				return pm
			}
		}
	}
	if slot.BookedByUID == nil {
		return nil
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", day.Day+" "+slot.SlotStart, time.UTC)
	if err != nil {
		return nil
	}
	if pm, ok := r.bySlot[slotKey(day.MentorID, *slot.BookedByUID, start)]; ok && live(pm) {
		return pm
	}
	return nil
}

// link points each booked slot of pd at its migrated meeting and the meeting
// back at the slot. A booked slot with no live meeting is freed and reported.
func (r *run) link(pd *plannedDay) {
	for i := range pd.day.Slots {
		slot := &pd.day.Slots[i]
		if !slot.IsBooked {
			continue
		}
		pm := r.match(pd.day, slot, pd.legacyMeetingIDs[i])
		if pm == nil {
			r.fail("Availability %s: booked slot %s has no matching meeting, released", pd.path, slot.SlotStart)
			*slot = scheduling.Slot{SlotStart: slot.SlotStart, SlotEnd: slot.SlotEnd}
			continue
		}

		ref := scheduling.SlotRef(pd.day.ID, slot.SlotStart)
		m := pm.meeting
		pm.linkedBy = pd.day.ID
		m.AvailabilityID = &ref
		slot.MeetingID = &m.ID
		slot.BookedBy = &m.MenteeDocID
		slot.BookedByUID = &m.MenteeUID
		slot.BookedByName = &m.MenteeName
	}
}

func (r *run) unlink(dayID string) {
	for _, pm := range r.meetings {
		if pm.linkedBy == dayID {
			pm.linkedBy = ""
			pm.meeting.AvailabilityID = nil
		}
	}
}

func (s *MigrationService) writeDay(ctx context.Context, r *run, pd *plannedDay) {
	// An existing day is left alone, booked slots included.
	exists, err := s.store.Collection(r.tenant, scheduling.CollectionAvailability).Exists(ctx, pd.day.ID)
	switch {
	case err != nil:
		r.fail("Availability %s: %v", pd.path, err)
		return
	case exists:
		r.stats.Skipped++
		return
	}

	r.link(pd)
	written, err := s.write(ctx, r, scheduling.CollectionAvailability, pd.day.ID, pd.day)
	switch {
	case err != nil:
		r.unlink(pd.day.ID)
		r.fail("Availability %s: %v", pd.path, err)
	case !written:
		r.unlink(pd.day.ID)
		r.stats.Skipped++
	default:
		r.stats.Availability++
	}
}

func (s *MigrationService) writeMeeting(ctx context.Context, r *run, pm *plannedMeeting) {
	written, err := s.write(ctx, r, scheduling.CollectionMeetings, pm.meeting.ID, pm.meeting)
	switch {
	case err != nil:
		r.fail("%s %s: %v", pm.label, pm.path, err)
	case !written:
		r.stats.Skipped++
	case pm.requested:
		r.stats.RequestedMeetings++
	default:
		r.stats.Meetings++
	}
}

// CleanupLegacySubcollections deletes the tenant's legacy per-user meeting
// and availability documents. In dry-run mode it only counts them.
func (s *MigrationService) CleanupLegacySubcollections(ctx context.Context, tenantPath string, dryRun bool) (*CleanupStats, error) {
	if tenantPath == "" {
		return nil, ErrTenantRequired
	}

	stats := &CleanupStats{TenantPath: tenantPath, DryRun: dryRun}
	q := s.store.DB().WithContext(ctx).
		Model(&models.LegacyDocument{}).
		Scopes(tenant.ForTenant(tenantPath)).
		Where("subcollection IN ?", legacySubcollections)

	if dryRun {
		if err := q.Count(&stats.Deleted).Error; err != nil {
			return nil, fmt.Errorf("failed to count legacy documents: %w", err)
		}
		return stats, nil
	}

	result := q.Delete(&models.LegacyDocument{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to delete legacy documents: %w", result.Error)
	}
	stats.Deleted = result.RowsAffected

	slog.Info("legacy documents deleted", "tenant_path", tenantPath, "deleted", stats.Deleted, "action", "cleanup_legacy")
	return stats, nil
}
