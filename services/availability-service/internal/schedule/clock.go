package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the civil date format used across the availability API.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// ParseClock converts a 24-hour "HH:MM" string to minutes from midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, &InvalidTimeError{Value: s, Reason: "expected HH:MM"}
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, &InvalidTimeError{Value: s, Reason: "hour must be 00-23"}
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, &InvalidTimeError{Value: s, Reason: "minute must be 00-59"}
	}
	return hh*60 + mm, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDate parses a civil date. The result carries year/month/day at UTC
// midnight and is only a calendar position, never an instant.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, &InvalidTimeError{Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// CivilDate truncates an instant to the calendar date it falls on, in the
// instant's own location.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LoadZone resolves an IANA zone name.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &InvalidTimeError{Value: name, Reason: "timezone is empty"}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &InvalidTimeError{Value: name, Reason: "unknown IANA timezone", Cause: err}
	}
	return loc, nil
}

// InstantAt places a wall-clock minute of the given civil date in loc and
// returns the absolute UTC instant. Wall times erased by a DST transition
// normalize forward, the stdlib rule.
func InstantAt(date time.Time, minuteOfDay int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minuteOfDay/60, minuteOfDay%60, 0, 0, loc).UTC()
}

// CompareInstants is a total order over instants: -1, 0 or +1.
func CompareInstants(a, b time.Time) int {
	return a.Compare(b)
}
