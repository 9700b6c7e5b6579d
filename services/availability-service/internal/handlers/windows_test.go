package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
)

type fakeProfiles struct {
	profile schedule.Profile
	err     error
}

func (f *fakeProfiles) SchedulingProfile(_ context.Context, builderID string) (schedule.Profile, error) {
	if f.err != nil {
		return schedule.Profile{}, f.err
	}
	return f.profile, nil
}

type fakeRules struct {
	rules []schedule.Rule
}

func (f *fakeRules) RulesByBuilder(context.Context, string) ([]schedule.Rule, error) {
	return f.rules, nil
}

type fakeExceptions struct {
	exceptions []schedule.Exception
}

func (f *fakeExceptions) ExceptionsInRange(context.Context, string, time.Time, time.Time) ([]schedule.Exception, error) {
	return f.exceptions, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newWindowsHandler(profiles *fakeProfiles, rules *fakeRules, exceptions *fakeExceptions, now time.Time) *WindowsHandler {
	logger := discardLogger()
	engine := schedule.NewEngine(profiles, rules, exceptions, logger)
	h := NewWindowsHandler(engine, profiles, logger)
	h.now = func() time.Time { return now }
	return h
}

func TestWindowsResolvesRules(t *testing.T) {
	profiles := &fakeProfiles{profile: schedule.Profile{
		BuilderID:         "b-1",
		Timezone:          "UTC",
		MinimumNoticeMins: 0,
		MaxAdvanceDays:    7,
		AcceptingBookings: true,
	}}
	rules := &fakeRules{rules: []schedule.Rule{
		{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 9 * 60, EndMinute: 17 * 60, Recurring: true},
	}}
	h := newWindowsHandler(profiles, rules, &fakeExceptions{}, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)) // a Monday

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/windows?builder_id=b-1&from=2026-03-02&to=2026-03-02", nil)
	rw := httptest.NewRecorder()
	h.Windows(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp struct {
		BuilderID string `json:"builder_id"`
		Timezone  string `json:"timezone"`
		Windows   []struct {
			Date    string `json:"date"`
			StartAt string `json:"start_at"`
			EndAt   string `json:"end_at"`
		} `json:"windows"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Timezone != "UTC" || resp.BuilderID != "b-1" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if len(resp.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(resp.Windows))
	}
	if resp.Windows[0].Date != "2026-03-02" || resp.Windows[0].StartAt != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected window: %+v", resp.Windows[0])
	}
}

func TestWindowsUnknownBuilderIs404(t *testing.T) {
	profiles := &fakeProfiles{err: &schedule.NotFoundError{Resource: "scheduling profile", ID: "nope"}}
	h := newWindowsHandler(profiles, &fakeRules{}, &fakeExceptions{}, time.Now().UTC())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/windows?builder_id=nope", nil)
	rw := httptest.NewRecorder()
	h.Windows(rw, req)

	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}

func TestWindowsMalformedDateIs422(t *testing.T) {
	profiles := &fakeProfiles{profile: schedule.Profile{BuilderID: "b-1", Timezone: "UTC", AcceptingBookings: true, MaxAdvanceDays: 7}}
	h := newWindowsHandler(profiles, &fakeRules{}, &fakeExceptions{}, time.Now().UTC())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/windows?builder_id=b-1&from=03-02-2026", nil)
	rw := httptest.NewRecorder()
	h.Windows(rw, req)

	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rw.Code)
	}
}

func TestWindowsMissingBuilderIs400(t *testing.T) {
	h := newWindowsHandler(&fakeProfiles{}, &fakeRules{}, &fakeExceptions{}, time.Now().UTC())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/windows", nil)
	rw := httptest.NewRecorder()
	h.Windows(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestWindowsExceptionBlocksDate(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	profiles := &fakeProfiles{profile: schedule.Profile{
		BuilderID:         "b-1",
		Timezone:          "UTC",
		MaxAdvanceDays:    7,
		AcceptingBookings: true,
	}}
	rules := &fakeRules{rules: []schedule.Rule{
		{ID: "r-1", BuilderID: "b-1", Weekday: 1, StartMinute: 540, EndMinute: 1020, Recurring: true},
	}}
	exceptions := &fakeExceptions{exceptions: []schedule.Exception{
		{ID: "e-1", BuilderID: "b-1", Date: day, Available: false},
	}}
	h := newWindowsHandler(profiles, rules, exceptions, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/windows?builder_id=b-1&from=2026-03-02&to=2026-03-02", nil)
	rw := httptest.NewRecorder()
	h.Windows(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp struct {
		Windows []any `json:"windows"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Windows) != 0 {
		t.Fatalf("expected no windows on a blocked date, got %d", len(resp.Windows))
	}
}
