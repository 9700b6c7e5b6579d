package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestNewRule(t *testing.T) {
	rule, err := NewRule("b-1", 1, "09:00", "17:00", true)
	if err != nil {
		t.Fatalf("NewRule failed: %v", err)
	}
	if rule.Weekday != 1 || rule.StartMinute != 540 || rule.EndMinute != 1020 || !rule.Recurring {
		t.Fatalf("unexpected rule: %+v", rule)
	}
	if rule.StartClock() != "09:00" || rule.EndClock() != "17:00" {
		t.Fatalf("clock render = %s-%s", rule.StartClock(), rule.EndClock())
	}
}

func TestNewRuleRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		weekday int
		start   string
		end     string
		field   string
	}{
		{"inverted times", 1, "17:00", "09:00", "end_time"},
		{"equal times", 1, "09:00", "09:00", "end_time"},
		{"weekday too high", 7, "09:00", "17:00", "day_of_week"},
		{"weekday negative", -1, "09:00", "17:00", "day_of_week"},
		{"bad start clock", 1, "9am", "17:00", "start_time"},
		{"bad end clock", 1, "09:00", "25:00", "end_time"},
	}
	for _, c := range cases {
		_, err := NewRule("b-1", c.weekday, c.start, c.end, true)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: error = %v, want *ValidationError", c.name, err)
		}
		if ve.Field != c.field {
			t.Fatalf("%s: field = %q, want %q", c.name, ve.Field, c.field)
		}
	}
	if _, err := NewRule("  ", 1, "09:00", "17:00", true); !IsValidation(err) {
		t.Fatalf("blank builder id: error = %v, want validation", err)
	}
}

func TestNewException(t *testing.T) {
	exc, err := NewException("b-1", "2026-01-27", true, []SlotInput{
		{StartAt: "2026-01-27T10:00:00Z", EndAt: "2026-01-27T10:30:00Z"},
		{StartAt: "2026-01-27T14:00:00+01:00", EndAt: "2026-01-27T14:30:00+01:00"},
	})
	if err != nil {
		t.Fatalf("NewException failed: %v", err)
	}
	if FormatDate(exc.Date) != "2026-01-27" || !exc.Available || len(exc.Slots) != 2 {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	// Offsets are normalized to UTC at the boundary.
	want := time.Date(2026, 1, 27, 13, 0, 0, 0, time.UTC)
	if !exc.Slots[1].Start.Equal(want) {
		t.Fatalf("slot start = %s, want %s", exc.Slots[1].Start.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestNewExceptionRequiresSlotsWhenAvailable(t *testing.T) {
	_, err := NewException("b-1", "2026-01-27", true, nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "slots" {
		t.Fatalf("error = %v, want slots validation error", err)
	}
}

func TestNewExceptionRejectsInvertedSlot(t *testing.T) {
	_, err := NewException("b-1", "2026-01-27", true, []SlotInput{
		{StartAt: "2026-01-27T10:30:00Z", EndAt: "2026-01-27T10:00:00Z"},
	})
	if !IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestNewExceptionBlockedDateDropsSlots(t *testing.T) {
	exc, err := NewException("b-1", "2026-01-27", false, []SlotInput{
		{StartAt: "2026-01-27T10:00:00Z", EndAt: "2026-01-27T10:30:00Z"},
	})
	if err != nil {
		t.Fatalf("NewException failed: %v", err)
	}
	if exc.Available || len(exc.Slots) != 0 {
		t.Fatalf("blocked date should carry no slots: %+v", exc)
	}
}

func TestNewExceptionRejectsBadDate(t *testing.T) {
	_, err := NewException("b-1", "Jan 27", false, nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "date" {
		t.Fatalf("error = %v, want date validation error", err)
	}
	var ite *InvalidTimeError
	if !errors.As(err, &ite) {
		t.Fatalf("validation error should wrap *InvalidTimeError, got %v", err)
	}
}

func TestProfileApply(t *testing.T) {
	base := DefaultProfile("b-1")
	tz := "Europe/Berlin"
	notice := 30
	profile, err := base.Apply(ProfilePatch{Timezone: &tz, MinimumNoticeMins: &notice})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if profile.Timezone != "Europe/Berlin" || profile.MinimumNoticeMins != 30 {
		t.Fatalf("patch not applied: %+v", profile)
	}
	// Untouched fields keep their values.
	if profile.MaxAdvanceDays != base.MaxAdvanceDays || profile.AcceptingBookings != base.AcceptingBookings {
		t.Fatalf("unpatched fields changed: %+v", profile)
	}
}

func TestProfileApplyRejectsNegatives(t *testing.T) {
	base := DefaultProfile("b-1")
	for _, patch := range []ProfilePatch{
		{MinimumNoticeMins: intPtr(-1)},
		{BufferMins: intPtr(-5)},
		{MaxAdvanceDays: intPtr(-30)},
	} {
		if _, err := base.Apply(patch); !IsValidation(err) {
			t.Fatalf("patch %+v: error = %v, want validation", patch, err)
		}
	}
}

func TestProfileApplyRejectsUnknownZone(t *testing.T) {
	base := DefaultProfile("b-1")
	tz := "Mars/Olympus"
	_, err := base.Apply(ProfilePatch{Timezone: &tz})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "timezone" {
		t.Fatalf("error = %v, want timezone validation error", err)
	}
	var ite *InvalidTimeError
	if !errors.As(err, &ite) {
		t.Fatalf("validation error should wrap *InvalidTimeError, got %v", err)
	}
}

func intPtr(v int) *int { return &v }
