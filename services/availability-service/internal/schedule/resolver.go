package schedule

import (
	"context"
	"log/slog"
	"time"
)

// ProfileSource loads a builder's scheduling profile. A missing profile is a
// *NotFoundError.
type ProfileSource interface {
	SchedulingProfile(ctx context.Context, builderID string) (Profile, error)
}

// RuleSource loads every recurring rule a builder has.
type RuleSource interface {
	RulesByBuilder(ctx context.Context, builderID string) ([]Rule, error)
}

// ExceptionSource loads exceptions whose date falls in [from, to], inclusive.
type ExceptionSource interface {
	ExceptionsInRange(ctx context.Context, builderID string, from, to time.Time) ([]Exception, error)
}

// Engine resolves rules, exceptions and the profile into concrete bookable
// windows. It holds no state between calls; identical inputs produce
// identical output.
type Engine struct {
	profiles   ProfileSource
	rules      RuleSource
	exceptions ExceptionSource
	logger     *slog.Logger
}

func NewEngine(profiles ProfileSource, rules RuleSource, exceptions ExceptionSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{profiles: profiles, rules: rules, exceptions: exceptions, logger: logger}
}

// Resolve computes the bookable windows for builderID between the civil
// dates from and to (inclusive, UTC-midnight carriers; zero values default to
// today and the advance-booking horizon). The effective range is clipped to
// [today, today+maxAdvanceDays] measured in the builder's zone at now.
//
// Any source error aborts the whole call; a resolution never returns a
// partial schedule. Individually corrupt rows are skipped and logged instead.
func (e *Engine) Resolve(ctx context.Context, builderID string, from, to time.Time, now time.Time) ([]Window, error) {
	profile, err := e.profiles.SchedulingProfile(ctx, builderID)
	if err != nil {
		return nil, err
	}
	if !profile.AcceptingBookings {
		return nil, nil
	}

	loc, err := LoadZone(profile.Timezone)
	zoneOK := err == nil
	if !zoneOK {
		// Without a zone, rule wall times cannot be placed on the timeline.
		// Exceptions carry absolute instants and still resolve; date math
		// degrades to UTC.
		e.logger.Warn("profile timezone unusable, resolving exceptions only",
			"builder_id", builderID, "timezone", profile.Timezone, "err", err)
		loc = time.UTC
	}

	today := CivilDate(now.In(loc))
	start := today
	if !from.IsZero() && from.After(today) {
		start = CivilDate(from)
	}
	horizon := today.AddDate(0, 0, profile.MaxAdvanceDays)
	end := horizon
	if !to.IsZero() && to.Before(horizon) {
		end = CivilDate(to)
	}
	if end.Before(start) {
		return nil, nil
	}

	exceptions, err := e.exceptions.ExceptionsInRange(ctx, builderID, start, end)
	if err != nil {
		return nil, err
	}
	rules, err := e.rules.RulesByBuilder(ctx, builderID)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]Exception, len(exceptions))
	for _, exc := range exceptions {
		byDate[FormatDate(exc.Date)] = exc
	}

	notBefore := now.Add(time.Duration(profile.MinimumNoticeMins) * time.Minute)

	var windows []Window
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := FormatDate(day)

		if exc, ok := byDate[date]; ok {
			if !exc.Available {
				continue
			}
			for _, slot := range exc.Slots {
				if slot.Booked {
					continue
				}
				if !slot.End.After(slot.Start) {
					e.logger.Warn("skipping corrupt exception slot",
						"builder_id", builderID, "exception_id", exc.ID, "slot_id", slot.ID)
					continue
				}
				if slot.Start.Before(notBefore) {
					continue
				}
				windows = append(windows, Window{
					BuilderID: builderID,
					Date:      date,
					Start:     slot.Start.UTC(),
					End:       slot.End.UTC(),
				})
			}
			continue
		}

		if !zoneOK {
			continue
		}
		weekday := int(day.Weekday())
		var spans []minuteSpan
		for _, rule := range rules {
			if !rule.Recurring || rule.Weekday != weekday {
				continue
			}
			if rule.StartMinute < 0 || rule.EndMinute > minutesPerDay || rule.StartMinute >= rule.EndMinute {
				e.logger.Warn("skipping corrupt availability rule",
					"builder_id", builderID, "rule_id", rule.ID,
					"start_minute", rule.StartMinute, "end_minute", rule.EndMinute)
				continue
			}
			spans = append(spans, minuteSpan{start: rule.StartMinute, end: rule.EndMinute})
		}
		for _, span := range mergeSpans(spans) {
			winStart := InstantAt(day, span.start, loc)
			winEnd := InstantAt(day, span.end, loc)
			if !winEnd.After(winStart) {
				continue
			}
			if winStart.Before(notBefore) {
				continue
			}
			windows = append(windows, Window{
				BuilderID: builderID,
				Date:      date,
				Start:     winStart,
				End:       winEnd,
			})
		}
	}

	sortWindows(windows)
	return windows, nil
}

type minuteSpan struct {
	start int
	end   int
}

// mergeSpans coalesces overlapping and adjacent spans so a day never presents
// fragmented windows. Input order does not matter; output is sorted.
func mergeSpans(spans []minuteSpan) []minuteSpan {
	if len(spans) <= 1 {
		return spans
	}
	// Small n; insertion sort keeps deps minimal.
	for i := 1; i < len(spans); i++ {
		j := i
		for j > 0 && (spans[j].start < spans[j-1].start ||
			(spans[j].start == spans[j-1].start && spans[j].end < spans[j-1].end)) {
			spans[j], spans[j-1] = spans[j-1], spans[j]
			j--
		}
	}
	merged := make([]minuteSpan, 0, len(spans))
	for _, cur := range spans {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.start > last.end {
			merged = append(merged, cur)
			continue
		}
		if cur.end > last.end {
			last.end = cur.end
		}
	}
	return merged
}

func sortWindows(windows []Window) {
	for i := 1; i < len(windows); i++ {
		j := i
		for j > 0 && windowLess(windows[j], windows[j-1]) {
			windows[j], windows[j-1] = windows[j-1], windows[j]
			j--
		}
	}
}

func windowLess(a, b Window) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if c := CompareInstants(a.Start, b.Start); c != 0 {
		return c < 0
	}
	return CompareInstants(a.End, b.End) < 0
}
