package migration

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MigrationStats reports one migrateMeetingsAndAvailability run. In dry-run
// mode the counters describe what would be written.
type MigrationStats struct {
	TenantPath        string    `json:"tenant_path"`
	DryRun            bool      `json:"dry_run"`
	Meetings          int       `json:"meetings"`
	Availability      int       `json:"availability"`
	RequestedMeetings int       `json:"requested_meetings"`
	Skipped           int       `json:"skipped"`
	Errors            []string  `json:"errors"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
}

type CleanupStats struct {
	TenantPath string `json:"tenant_path"`
	DryRun     bool   `json:"dry_run"`
	Deleted    int64  `json:"deleted"`
}

type RunRequest struct {
	UniversityPath string `json:"university_path"`
	// DryRun defaults to true when omitted.
	DryRun *bool `json:"dry_run"`
}

func (r *RunRequest) dryRun() bool {
	return r.DryRun == nil || *r.DryRun
}

// legacyTime accepts the timestamp shapes found in legacy payloads: RFC3339
// strings, epoch seconds, or {"_seconds": n}.
type legacyTime struct {
	time.Time
}

func (t *legacyTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil
	}
	if strings.HasPrefix(raw, "{") {
		var ts struct {
			Seconds int64 `json:"_seconds"`
		}
		if err := json.Unmarshal(data, &ts); err != nil {
			return err
		}
		t.Time = time.Unix(ts.Seconds, 0).UTC()
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	t.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

func (t *legacyTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// legacyMeeting is a meeting or meeting request stored under a user. Parties
// are named by provider uid.
type legacyMeeting struct {
	MentorID  string      `json:"mentor_id"`
	MenteeID  string      `json:"mentee_id"`
	StartTime legacyTime  `json:"start_time"`
	EndTime   *legacyTime `json:"end_time"`
	Topic     string      `json:"topic"`
	Location  string      `json:"location"`
	Status    string      `json:"status"`
	CreatedBy string      `json:"created_by"`
}

type legacySlot struct {
	SlotStart string `json:"slot_start"`
	SlotEnd   string `json:"slot_end"`
	IsBooked  bool   `json:"is_booked"`
	MenteeID  string `json:"mentee_id"`
	MeetingID string `json:"meeting_id"`
}

type legacyAvailability struct {
	Day   string       `json:"day"`
	Slots []legacySlot `json:"slots"`
}
