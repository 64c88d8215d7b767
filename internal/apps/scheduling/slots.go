package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
)

const (
	slotSep       = "__"
	legacySlotSep = "_slot_"
	minutesPerDay = 24 * 60
)

var (
	ErrInvalidSlotRef  = apperr.New(apperr.InvalidArgument, "Invalid availability id")
	ErrInvalidSlotTime = apperr.New(apperr.InvalidArgument, "Slot times must be HH:MM with end after start")
	ErrOverlappingSlot = apperr.New(apperr.InvalidArgument, "Slots must not overlap")
)

// DayID names a mentor's availability document for one day.
func DayID(mentorDocID, day string) string {
	return mentorDocID + "_" + day
}

// SlotRef names one slot: {dayId}__{HHMM}.
func SlotRef(dayID, slotStart string) string {
	return dayID + slotSep + strings.Replace(slotStart, ":", "", 1)
}

// MeetingID is deterministic in (mentor, mentee, start) so concurrent creates
// for the same triple collide.
func MeetingID(mentorDocID, menteeDocID string, start time.Time) string {
	return fmt.Sprintf("%s%s%s%s%d", mentorDocID, slotSep, menteeDocID, slotSep, start.Unix())
}

type slotRef struct {
	DayID string
	Start string
	// Index is set for the legacy {dayId}_slot_{n} form, -1 otherwise.
	Index int
}

func parseSlotRef(ref string) (slotRef, error) {
	if i := strings.LastIndex(ref, slotSep); i > 0 {
		hhmm := ref[i+len(slotSep):]
		if len(hhmm) == 4 {
			start := hhmm[:2] + ":" + hhmm[2:]
			if _, err := clockMinutes(start); err == nil {
				return slotRef{DayID: ref[:i], Start: start, Index: -1}, nil
			}
		}
	}
	if i := strings.LastIndex(ref, legacySlotSep); i > 0 {
		n, err := strconv.Atoi(ref[i+len(legacySlotSep):])
		if err == nil && n >= 0 {
			return slotRef{DayID: ref[:i], Index: n}, nil
		}
	}
	return slotRef{}, ErrInvalidSlotRef
}

// find returns the position of the referenced slot, or -1.
func (r slotRef) find(slots []Slot) int {
	if r.Index >= 0 {
		if r.Index < len(slots) {
			return r.Index
		}
		return -1
	}
	for i := range slots {
		if slots[i].SlotStart == r.Start {
			return i
		}
	}
	return -1
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, ErrInvalidSlotTime
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DefaultSlotEnd is start plus one hour, capped at 23:59.
func DefaultSlotEnd(start string) (string, error) {
	m, err := clockMinutes(start)
	if err != nil {
		return "", err
	}
	return formatClock(defaultEnd(m)), nil
}

func defaultEnd(start int) int {
	if start+60 >= minutesPerDay {
		return minutesPerDay - 1
	}
	return start + 60
}

// normalizeSlots validates the requested windows, fills a default one hour
// end, and returns them sorted by start.
func normalizeSlots(in []SlotInput) ([]Slot, error) {
	type window struct{ start, end int }
	windows := make([]window, 0, len(in))

	for _, s := range in {
		start, err := clockMinutes(strings.TrimSpace(s.SlotStart))
		if err != nil {
			return nil, err
		}
		var end int
		if strings.TrimSpace(s.SlotEnd) == "" {
			end = defaultEnd(start)
		} else if end, err = clockMinutes(strings.TrimSpace(s.SlotEnd)); err != nil {
			return nil, err
		}
		if end <= start {
			return nil, ErrInvalidSlotTime
		}
		windows = append(windows, window{start, end})
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	slots := make([]Slot, len(windows))
	for i, w := range windows {
		if i > 0 && w.start < windows[i-1].end {
			return nil, ErrOverlappingSlot
		}
		slots[i] = Slot{SlotStart: formatClock(w.start), SlotEnd: formatClock(w.end)}
	}
	return slots, nil
}

// combineDateTime interprets "YYYY-MM-DD" and "HH:MM" in UTC.
func combineDateTime(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, apperr.Newf(apperr.InvalidArgument, "Invalid date/time %q %q", date, clock)
	}
	return t, nil
}
