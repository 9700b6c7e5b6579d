package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Rule is a weekly recurring availability window: the builder is bookable on
// Weekday between StartMinute and EndMinute of their local day. Recurring
// false keeps the row but the engine never expands it.
type Rule struct {
	ID          string
	BuilderID   string
	Weekday     int // 0=Sunday .. 6=Saturday
	StartMinute int
	EndMinute   int
	Recurring   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Rule) StartClock() string { return FormatClock(r.StartMinute) }
func (r Rule) EndClock() string   { return FormatClock(r.EndMinute) }

// Slot is one explicit bookable interval inside an exception day, in UTC.
type Slot struct {
	ID     string
	Start  time.Time
	End    time.Time
	Booked bool
}

// Exception overrides the recurring rules for one calendar date. Available
// false blocks the whole date; available true replaces the rules with Slots.
type Exception struct {
	ID        string
	BuilderID string
	Date      time.Time // civil date, UTC-midnight carrier
	Available bool
	Slots     []Slot
	CreatedAt time.Time
}

// Profile parameterizes window resolution for one builder.
type Profile struct {
	BuilderID         string
	Timezone          string
	MinimumNoticeMins int
	BufferMins        int
	MaxAdvanceDays    int
	AcceptingBookings bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Window is a resolved bookable interval. Derived, never persisted.
type Window struct {
	BuilderID string
	Date      string
	Start     time.Time
	End       time.Time
}

// NewRule validates raw rule input and returns the rule value (ID and
// timestamps are assigned by storage).
func NewRule(builderID string, weekday int, startClock, endClock string, recurring bool) (Rule, error) {
	builderID = strings.TrimSpace(builderID)
	if builderID == "" {
		return Rule{}, invalid("builder_id", "is required", nil)
	}
	if weekday < 0 || weekday > 6 {
		return Rule{}, invalid("day_of_week", "must be between 0 and 6", nil)
	}
	start, err := ParseClock(startClock)
	if err != nil {
		return Rule{}, invalid("start_time", "must be a 24-hour HH:MM time", err)
	}
	end, err := ParseClock(endClock)
	if err != nil {
		return Rule{}, invalid("end_time", "must be a 24-hour HH:MM time", err)
	}
	if start >= end {
		return Rule{}, invalid("end_time", "must be after start_time", nil)
	}
	return Rule{
		BuilderID:   builderID,
		Weekday:     weekday,
		StartMinute: start,
		EndMinute:   end,
		Recurring:   recurring,
	}, nil
}

// SlotInput is a raw exception slot as received on the wire: RFC3339 UTC
// timestamps.
type SlotInput struct {
	StartAt string
	EndAt   string
}

// NewException validates raw exception input. Slots are only kept when the
// date is marked available; on a blocked date they carry no meaning and are
// dropped.
func NewException(builderID string, date string, available bool, slots []SlotInput) (Exception, error) {
	builderID = strings.TrimSpace(builderID)
	if builderID == "" {
		return Exception{}, invalid("builder_id", "is required", nil)
	}
	day, err := ParseDate(date)
	if err != nil {
		return Exception{}, invalid("date", "must be a YYYY-MM-DD calendar date", err)
	}

	exc := Exception{
		BuilderID: builderID,
		Date:      day,
		Available: available,
	}
	if !available {
		return exc, nil
	}
	if len(slots) == 0 {
		return Exception{}, invalid("slots", "at least one slot is required when the date is available", nil)
	}
	exc.Slots = make([]Slot, 0, len(slots))
	for i, in := range slots {
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(in.StartAt))
		if err != nil {
			return Exception{}, invalid("slots", slotField(i, "start_at must be an RFC3339 timestamp"), err)
		}
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(in.EndAt))
		if err != nil {
			return Exception{}, invalid("slots", slotField(i, "end_at must be an RFC3339 timestamp"), err)
		}
		if !end.After(start) {
			return Exception{}, invalid("slots", slotField(i, "start_at must be before end_at"), nil)
		}
		exc.Slots = append(exc.Slots, Slot{Start: start.UTC(), End: end.UTC()})
	}
	return exc, nil
}

func slotField(i int, reason string) string {
	return fmt.Sprintf("slot %d: %s", i+1, reason)
}

// ProfilePatch is a partial profile update; nil fields keep current values.
type ProfilePatch struct {
	Timezone          *string
	MinimumNoticeMins *int
	BufferMins        *int
	MaxAdvanceDays    *int
	AcceptingBookings *bool
}

// Apply merges a patch onto the profile, validating every touched field.
func (p Profile) Apply(patch ProfilePatch) (Profile, error) {
	merged := p
	if patch.Timezone != nil {
		tz := strings.TrimSpace(*patch.Timezone)
		if _, err := LoadZone(tz); err != nil {
			return Profile{}, invalid("timezone", "must be a known IANA timezone", err)
		}
		merged.Timezone = tz
	}
	if patch.MinimumNoticeMins != nil {
		if *patch.MinimumNoticeMins < 0 {
			return Profile{}, invalid("minimum_notice_minutes", "must not be negative", nil)
		}
		merged.MinimumNoticeMins = *patch.MinimumNoticeMins
	}
	if patch.BufferMins != nil {
		if *patch.BufferMins < 0 {
			return Profile{}, invalid("buffer_minutes", "must not be negative", nil)
		}
		merged.BufferMins = *patch.BufferMins
	}
	if patch.MaxAdvanceDays != nil {
		if *patch.MaxAdvanceDays < 0 {
			return Profile{}, invalid("max_advance_days", "must not be negative", nil)
		}
		merged.MaxAdvanceDays = *patch.MaxAdvanceDays
	}
	if patch.AcceptingBookings != nil {
		merged.AcceptingBookings = *patch.AcceptingBookings
	}
	return merged, nil
}

// DefaultProfile is the profile bootstrapped at builder onboarding.
func DefaultProfile(builderID string) Profile {
	return Profile{
		BuilderID:         builderID,
		Timezone:          "UTC",
		MinimumNoticeMins: 120,
		BufferMins:        0,
		MaxAdvanceDays:    30,
		AcceptingBookings: true,
	}
}
