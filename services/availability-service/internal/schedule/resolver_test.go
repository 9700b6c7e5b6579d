package schedule

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

type fakeStore struct {
	profile    Profile
	profileErr error
	rules      []Rule
	rulesErr   error
	exceptions []Exception
	excErr     error
}

func (f *fakeStore) SchedulingProfile(_ context.Context, _ string) (Profile, error) {
	if f.profileErr != nil {
		return Profile{}, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeStore) RulesByBuilder(_ context.Context, _ string) ([]Rule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return f.rules, nil
}

func (f *fakeStore) ExceptionsInRange(_ context.Context, _ string, from, to time.Time) ([]Exception, error) {
	if f.excErr != nil {
		return nil, f.excErr
	}
	var out []Exception
	for _, exc := range f.exceptions {
		if exc.Date.Before(from) || exc.Date.After(to) {
			continue
		}
		out = append(out, exc)
	}
	return out, nil
}

func newTestEngine(f *fakeStore) *Engine {
	return NewEngine(f, f, f, slog.New(slog.DiscardHandler))
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("bad fixture date %q: %v", s, err)
	}
	return d
}

func nyProfile() Profile {
	return Profile{
		BuilderID:         "b-1",
		Timezone:          "America/New_York",
		MinimumNoticeMins: 60,
		MaxAdvanceDays:    30,
		AcceptingBookings: true,
	}
}

// Recurring Monday 09:00-17:00 in New York resolves to the correct UTC
// instants on both sides of a DST transition.
func TestResolveRecurringRuleAcrossDST(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
	}
	engine := newTestEngine(store)

	// Winter, Eastern is UTC-5.
	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-26"), date(t, "2026-01-26"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	wantStart := time.Date(2026, 1, 26, 14, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 26, 22, 0, 0, 0, time.UTC)
	if !windows[0].Start.Equal(wantStart) || !windows[0].End.Equal(wantEnd) {
		t.Fatalf("winter window = %s..%s, want %s..%s",
			windows[0].Start.Format(time.RFC3339), windows[0].End.Format(time.RFC3339),
			wantStart.Format(time.RFC3339), wantEnd.Format(time.RFC3339))
	}
	if windows[0].Date != "2026-01-26" || windows[0].BuilderID != "b-1" {
		t.Fatalf("unexpected window metadata: %+v", windows[0])
	}

	// Summer, Eastern is UTC-4.
	now = time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC)
	windows, err = engine.Resolve(context.Background(), "b-1", date(t, "2026-07-20"), date(t, "2026-07-20"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	wantStart = time.Date(2026, 7, 20, 13, 0, 0, 0, time.UTC)
	if !windows[0].Start.Equal(wantStart) {
		t.Fatalf("summer window start = %s, want %s",
			windows[0].Start.Format(time.RFC3339), wantStart.Format(time.RFC3339))
	}
}

// A day-off exception suppresses the recurring rule for its date only.
func TestResolveDayOffExceptionOverridesRule(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-26"), Available: false},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-26"), date(t, "2026-02-02"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window (the following Monday), got %d", len(windows))
	}
	if windows[0].Date != "2026-02-02" {
		t.Fatalf("window date = %s, want 2026-02-02", windows[0].Date)
	}
}

// Special-hours slots replace rule windows entirely for their date.
func TestResolveSpecialHoursReplaceRules(t *testing.T) {
	slotA := Slot{ID: "s-1", Start: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC)}
	slotB := Slot{ID: "s-2", Start: time.Date(2026, 1, 27, 14, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 14, 30, 0, 0, time.UTC)}
	store := &fakeStore{
		profile: nyProfile(),
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 2, StartMinute: 540, EndMinute: 1020, Recurring: true}},
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-27"), Available: true, Slots: []Slot{slotA, slotB}},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-27"), date(t, "2026-01-27"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected exactly the 2 exception slots, got %d windows", len(windows))
	}
	if !windows[0].Start.Equal(slotA.Start) || !windows[0].End.Equal(slotA.End) {
		t.Fatalf("first window = %+v, want slot %+v", windows[0], slotA)
	}
	if !windows[1].Start.Equal(slotB.Start) || !windows[1].End.Equal(slotB.End) {
		t.Fatalf("second window = %+v, want slot %+v", windows[1], slotB)
	}
}

// accepting_bookings=false silences everything.
func TestResolveNotAcceptingBookings(t *testing.T) {
	profile := nyProfile()
	profile.AcceptingBookings = false
	store := &fakeStore{
		profile: profile,
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-27"), Available: true, Slots: []Slot{
				{Start: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC)},
			}},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", time.Time{}, time.Time{}, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("expected no windows, got %d", len(windows))
	}
}

func TestResolveSkipsBookedSlots(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-27"), Available: true, Slots: []Slot{
				{ID: "s-1", Start: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC), Booked: true},
				{ID: "s-2", Start: time.Date(2026, 1, 27, 14, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 14, 30, 0, 0, time.UTC)},
			}},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-27"), date(t, "2026-01-27"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Start.Hour() != 14 {
		t.Fatalf("booked slot leaked into output: %+v", windows[0])
	}
}

func TestResolveRangeBeyondHorizonIsEmpty(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
	}
	engine := newTestEngine(store)

	// Today in New York is 2026-01-20; the horizon is 2026-02-19.
	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-02-20"), date(t, "2026-03-20"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("expected no windows beyond the horizon, got %d", len(windows))
	}
}

// A window starting exactly at now+minimumNotice is kept; one minute inside
// the notice period drops the whole window.
func TestResolveMinimumNoticeBoundary(t *testing.T) {
	profile := Profile{
		BuilderID:         "b-1",
		Timezone:          "UTC",
		MinimumNoticeMins: 60,
		MaxAdvanceDays:    7,
		AcceptingBookings: true,
	}
	store := &fakeStore{
		profile: profile,
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
	}
	engine := newTestEngine(store)
	day := date(t, "2026-01-26") // a Monday

	now := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", day, day, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("window starting exactly at now+notice should be kept, got %d windows", len(windows))
	}

	now = now.Add(time.Minute)
	windows, err = engine.Resolve(context.Background(), "b-1", day, day, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("window starting inside the notice period should be dropped, got %d windows", len(windows))
	}
}

// The horizon date itself is bookable; the day after is not.
func TestResolveAdvanceBoundary(t *testing.T) {
	profile := Profile{
		BuilderID:         "b-1",
		Timezone:          "UTC",
		MaxAdvanceDays:    7,
		AcceptingBookings: true,
	}
	store := &fakeStore{
		profile: profile,
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC) // Monday
	windows, err := engine.Resolve(context.Background(), "b-1", time.Time{}, time.Time{}, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// Today and today+7 are both Mondays; both fall inside the horizon.
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].Date != "2026-01-26" || windows[1].Date != "2026-02-02" {
		t.Fatalf("window dates = %s, %s", windows[0].Date, windows[1].Date)
	}
}

func TestResolveMergesOverlappingRules(t *testing.T) {
	profile := Profile{
		BuilderID:         "b-1",
		Timezone:          "UTC",
		MaxAdvanceDays:    7,
		AcceptingBookings: true,
	}
	store := &fakeStore{
		profile: profile,
		rules: []Rule{
			{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 720, Recurring: true},  // 09:00-12:00
			{ID: "r-2", BuilderID: "b-1", Weekday: 1, StartMinute: 660, EndMinute: 840, Recurring: true},  // 11:00-14:00
			{ID: "r-3", BuilderID: "b-1", Weekday: 1, StartMinute: 900, EndMinute: 960, Recurring: true},  // 15:00-16:00
		},
	}
	engine := newTestEngine(store)
	day := date(t, "2026-01-26")

	now := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", day, day, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 merged windows, got %d", len(windows))
	}
	if windows[0].Start.Hour() != 9 || windows[0].End.Hour() != 14 {
		t.Fatalf("first merged window = %s..%s", windows[0].Start.Format("15:04"), windows[0].End.Format("15:04"))
	}
	if windows[1].Start.Hour() != 15 || windows[1].End.Hour() != 16 {
		t.Fatalf("second window = %s..%s", windows[1].Start.Format("15:04"), windows[1].End.Format("15:04"))
	}
}

func TestResolveMergesAdjacentRules(t *testing.T) {
	profile := Profile{
		BuilderID:         "b-1",
		Timezone:          "UTC",
		MaxAdvanceDays:    7,
		AcceptingBookings: true,
	}
	store := &fakeStore{
		profile: profile,
		rules: []Rule{
			{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 720, Recurring: true}, // 09:00-12:00
			{ID: "r-2", BuilderID: "b-1", Weekday: 1, StartMinute: 720, EndMinute: 900, Recurring: true}, // 12:00-15:00
		},
	}
	engine := newTestEngine(store)
	day := date(t, "2026-01-26")

	windows, err := engine.Resolve(context.Background(), "b-1", day, day, time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 coalesced window, got %d", len(windows))
	}
	if windows[0].Start.Hour() != 9 || windows[0].End.Hour() != 15 {
		t.Fatalf("coalesced window = %s..%s", windows[0].Start.Format("15:04"), windows[0].End.Format("15:04"))
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules: []Rule{
			{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true},
			{ID: "r-2", BuilderID: "b-1", Weekday: 3, StartMinute: 600, EndMinute: 900, Recurring: true},
		},
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-27"), Available: true, Slots: []Slot{
				{Start: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC)},
			}},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	first, err := engine.Resolve(context.Background(), "b-1", time.Time{}, time.Time{}, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := engine.Resolve(context.Background(), "b-1", time.Time{}, time.Time{}, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced different output")
	}
}

// One corrupt row never blanks the rest of the range.
func TestResolveSkipsCorruptRows(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules: []Rule{
			{ID: "r-good", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true},
			{ID: "r-inverted", BuilderID: "b-1", Weekday: 1, StartMinute: 700, EndMinute: 600, Recurring: true},
			{ID: "r-overflow", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 2000, Recurring: true},
		},
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-27"), Available: true, Slots: []Slot{
				{ID: "s-bad", Start: time.Date(2026, 1, 27, 11, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)},
				{ID: "s-good", Start: time.Date(2026, 1, 27, 14, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 14, 30, 0, 0, time.UTC)},
			}},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-26"), date(t, "2026-01-27"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows (good rule + good slot), got %d", len(windows))
	}
	if windows[0].Date != "2026-01-26" || windows[1].Date != "2026-01-27" {
		t.Fatalf("window dates = %s, %s", windows[0].Date, windows[1].Date)
	}
}

// An unusable profile timezone degrades to exceptions-only output.
func TestResolveUnknownZoneResolvesExceptionsOnly(t *testing.T) {
	profile := nyProfile()
	profile.Timezone = "Mars/Olympus"
	store := &fakeStore{
		profile: profile,
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
		exceptions: []Exception{
			{ID: "e-1", BuilderID: "b-1", Date: date(t, "2026-01-27"), Available: true, Slots: []Slot{
				{Start: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC)},
			}},
		},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-26"), date(t, "2026-01-27"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 1 || windows[0].Date != "2026-01-27" {
		t.Fatalf("expected only the exception window, got %+v", windows)
	}
}

func TestResolveIgnoresInertRules(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: false}},
	}
	engine := newTestEngine(store)

	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-26"), date(t, "2026-01-26"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("non-recurring rule should not expand, got %d windows", len(windows))
	}
}

func TestResolveProfileNotFound(t *testing.T) {
	store := &fakeStore{profileErr: &NotFoundError{Resource: "scheduling profile", ID: "b-404"}}
	engine := newTestEngine(store)

	_, err := engine.Resolve(context.Background(), "b-404", time.Time{}, time.Time{}, time.Now())
	if !IsNotFound(err) {
		t.Fatalf("error = %v, want not-found", err)
	}
}

func TestResolveEmptyEffectiveRange(t *testing.T) {
	store := &fakeStore{
		profile: nyProfile(),
		rules:   []Rule{{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true}},
	}
	engine := newTestEngine(store)
	now := time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)

	// Inverted request range.
	windows, err := engine.Resolve(context.Background(), "b-1", date(t, "2026-01-28"), date(t, "2026-01-27"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("inverted range should be empty, got %d windows", len(windows))
	}

	// Entirely in the past.
	windows, err = engine.Resolve(context.Background(), "b-1", date(t, "2026-01-01"), date(t, "2026-01-10"), now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("past range should be empty, got %d windows", len(windows))
	}
}

func TestResolveSourceErrorAborts(t *testing.T) {
	store := &fakeStore{
		profile:  nyProfile(),
		rulesErr: context.DeadlineExceeded,
	}
	engine := newTestEngine(store)

	windows, err := engine.Resolve(context.Background(), "b-1", time.Time{}, time.Time{}, time.Now())
	if err == nil {
		t.Fatal("expected source error to abort resolution")
	}
	if windows != nil {
		t.Fatalf("partial results must not be returned, got %d windows", len(windows))
	}
}
