package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the schedule error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an internal error and is not echoed.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case schedule.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case schedule.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case schedule.IsForbidden(err):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case schedule.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
