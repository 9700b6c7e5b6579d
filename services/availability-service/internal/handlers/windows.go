package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
)

// WindowsHandler serves the public window resolution endpoint. No JWT: any
// client may look up a builder's bookable windows.
type WindowsHandler struct {
	engine   *schedule.Engine
	profiles schedule.ProfileSource
	logger   *slog.Logger
	now      func() time.Time
}

func NewWindowsHandler(engine *schedule.Engine, profiles schedule.ProfileSource, logger *slog.Logger) *WindowsHandler {
	return &WindowsHandler{
		engine:   engine,
		profiles: profiles,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *WindowsHandler) Windows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	builderID := strings.TrimSpace(r.URL.Query().Get("builder_id"))
	if builderID == "" {
		http.Error(w, "builder_id is required", http.StatusBadRequest)
		return
	}

	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			writeDomainError(w, &schedule.ValidationError{Field: "from", Reason: "must be a YYYY-MM-DD calendar date", Cause: err})
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			writeDomainError(w, &schedule.ValidationError{Field: "to", Reason: "must be a YYYY-MM-DD calendar date", Cause: err})
			return
		}
		to = parsed
	}

	ctx := r.Context()
	windows, err := h.engine.Resolve(ctx, builderID, from, to, h.now())
	if err != nil {
		if !schedule.IsNotFound(err) && !schedule.IsValidation(err) {
			h.logger.Error("window resolution failed", "builder_id", builderID, "err", err)
		}
		writeDomainError(w, err)
		return
	}

	timezone := ""
	if profile, err := h.profiles.SchedulingProfile(ctx, builderID); err == nil {
		timezone = profile.Timezone
	}

	out := make([]map[string]any, 0, len(windows))
	for _, win := range windows {
		out = append(out, map[string]any{
			"date":     win.Date,
			"start_at": win.Start.Format(time.RFC3339),
			"end_at":   win.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"builder_id": builderID,
		"timezone":   timezone,
		"windows":    out,
	})
}
