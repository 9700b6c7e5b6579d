package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
)

func TestWriteDomainErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &schedule.ValidationError{Field: "start_time", Reason: "must be HH:MM"}, http.StatusUnprocessableEntity},
		{"not found", &schedule.NotFoundError{Resource: "rule", ID: "r1"}, http.StatusNotFound},
		{"forbidden", &schedule.ForbiddenError{Resource: "exception", ID: "e1"}, http.StatusForbidden},
		{"conflict", &schedule.ConflictError{Resource: "exception", Reason: "date already has an exception"}, http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("create: %w", &schedule.ConflictError{Resource: "rule", Reason: "plan limit reached"}), http.StatusConflict},
		{"unknown", errors.New("pool closed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rw := httptest.NewRecorder()
			writeDomainError(rw, tc.err)
			if rw.Code != tc.want {
				t.Fatalf("status = %d, want %d", rw.Code, tc.want)
			}
			if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("content type = %q", ct)
			}
		})
	}
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	rw := httptest.NewRecorder()
	writeDomainError(rw, errors.New("dial tcp 10.0.0.4:5432: connection refused"))
	if body := rw.Body.String(); body != "{\"error\":\"internal error\"}\n" {
		t.Fatalf("body = %q", body)
	}
}
