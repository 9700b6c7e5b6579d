package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/buildlance/buildlance/libs/db"
	"github.com/buildlance/buildlance/services/availability-service/internal/entitlements"
	"github.com/buildlance/buildlance/services/availability-service/internal/outbox"
	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/buildlance/buildlance/services/availability-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

// Handler owns the builder-facing rule, exception and profile endpoints.
// Every mutation writes its outbox event in the same transaction.
type Handler struct {
	pool   *db.Pool
	repo   *storage.Repository
	outbox *outbox.Repository
	logger *slog.Logger
}

func New(pool *db.Pool, repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, repo: repo, outbox: outboxRepo, logger: logger}
}

func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createRule(w, r)
	case http.MethodGet:
		h.listRules(w, r)
	case http.MethodDelete:
		h.deleteRule(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	builderID := BuilderID(r)

	var req struct {
		DayOfWeek int    `json:"day_of_week"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Recurring *bool  `json:"recurring"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	recurring := true
	if req.Recurring != nil {
		recurring = *req.Recurring
	}

	rule, err := schedule.NewRule(builderID, req.DayOfWeek, req.StartTime, req.EndTime, recurring)
	if err != nil {
		h.fail(w, err)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tier, err := h.repo.TierForBuilder(ctx, builderID)
	if err != nil {
		h.fail(w, err)
		return
	}
	limits := entitlements.LimitsForTier(tier)
	if rule.Recurring {
		count, err := h.repo.CountActiveRules(ctx, tx, builderID)
		if err != nil {
			h.fail(w, err)
			return
		}
		if count >= limits.MaxActiveRules {
			h.fail(w, &schedule.ConflictError{
				Resource: "availability rule",
				Reason:   "plan " + limits.Tier + " allows at most " + strconv.Itoa(limits.MaxActiveRules) + " active rules",
			})
			return
		}
	}

	created, err := h.repo.CreateRule(ctx, tx, rule)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.emitRuleEvent(ctx, tx, "availability.rule.created.v1", created); err != nil {
		h.fail(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ruleResponse(created))
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.RulesByBuilder(r.Context(), BuilderID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleResponse(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleted, err := h.repo.DeleteRule(ctx, tx, id, BuilderID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.emitRuleEvent(ctx, tx, "availability.rule.deleted.v1", deleted); err != nil {
		h.fail(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Exceptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createException(w, r)
	case http.MethodGet:
		h.listExceptions(w, r)
	case http.MethodDelete:
		h.deleteException(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createException(w http.ResponseWriter, r *http.Request) {
	builderID := BuilderID(r)

	var req struct {
		Date        string `json:"date"`
		IsAvailable bool   `json:"is_available"`
		Slots       []struct {
			StartAt string `json:"start_at"`
			EndAt   string `json:"end_at"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	slots := make([]schedule.SlotInput, 0, len(req.Slots))
	for _, s := range req.Slots {
		slots = append(slots, schedule.SlotInput{StartAt: s.StartAt, EndAt: s.EndAt})
	}

	exc, err := schedule.NewException(builderID, req.Date, req.IsAvailable, slots)
	if err != nil {
		h.fail(w, err)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tier, err := h.repo.TierForBuilder(ctx, builderID)
	if err != nil {
		h.fail(w, err)
		return
	}
	limits := entitlements.LimitsForTier(tier)
	today := schedule.CivilDate(time.Now().UTC())
	count, err := h.repo.CountFutureExceptions(ctx, tx, builderID, today)
	if err != nil {
		h.fail(w, err)
		return
	}
	if count >= limits.MaxFutureExceptions {
		h.fail(w, &schedule.ConflictError{
			Resource: "availability exception",
			Reason:   "plan " + limits.Tier + " allows at most " + strconv.Itoa(limits.MaxFutureExceptions) + " future exceptions",
		})
		return
	}

	created, err := h.repo.CreateException(ctx, tx, exc)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.emitExceptionEvent(ctx, tx, "availability.exception.created.v1", created); err != nil {
		h.fail(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, exceptionResponse(created))
}

func (h *Handler) listExceptions(w http.ResponseWriter, r *http.Request) {
	builderID := BuilderID(r)

	now := time.Now().UTC()
	from := schedule.CivilDate(now)
	to := from.AddDate(0, 0, 90)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			h.fail(w, &schedule.ValidationError{Field: "from", Reason: "must be a YYYY-MM-DD calendar date", Cause: err})
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			h.fail(w, &schedule.ValidationError{Field: "to", Reason: "must be a YYYY-MM-DD calendar date", Cause: err})
			return
		}
		to = parsed
	}

	exceptions, err := h.repo.ExceptionsInRange(r.Context(), builderID, from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(exceptions))
	for _, exc := range exceptions {
		out = append(out, exceptionResponse(exc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteException(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleted, err := h.repo.DeleteException(ctx, tx, id, BuilderID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.emitExceptionEvent(ctx, tx, "availability.exception.deleted.v1", deleted); err != nil {
		h.fail(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r)
	case http.MethodPatch:
		h.patchProfile(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.repo.SchedulingProfile(r.Context(), BuilderID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) patchProfile(w http.ResponseWriter, r *http.Request) {
	builderID := BuilderID(r)

	var req struct {
		Timezone          *string `json:"timezone"`
		MinimumNoticeMins *int    `json:"minimum_notice_minutes"`
		BufferMins        *int    `json:"buffer_minutes"`
		MaxAdvanceDays    *int    `json:"max_advance_days"`
		AcceptingBookings *bool   `json:"accepting_bookings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := h.repo.SchedulingProfileForUpdate(ctx, tx, builderID)
	if err != nil {
		h.fail(w, err)
		return
	}
	merged, err := current.Apply(schedule.ProfilePatch{
		Timezone:          req.Timezone,
		MinimumNoticeMins: req.MinimumNoticeMins,
		BufferMins:        req.BufferMins,
		MaxAdvanceDays:    req.MaxAdvanceDays,
		AcceptingBookings: req.AcceptingBookings,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	tier, err := h.repo.TierForBuilder(ctx, builderID)
	if err != nil {
		h.fail(w, err)
		return
	}
	limits := entitlements.LimitsForTier(tier)
	if merged.MaxAdvanceDays > limits.MaxAdvanceDays {
		h.fail(w, &schedule.ConflictError{
			Resource: "scheduling profile",
			Reason:   "plan " + limits.Tier + " allows at most " + strconv.Itoa(limits.MaxAdvanceDays) + " advance days",
		})
		return
	}

	saved, err := h.repo.SaveProfile(ctx, tx, merged)
	if err != nil {
		h.fail(w, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"builder_id":             saved.BuilderID,
		"timezone":               saved.Timezone,
		"minimum_notice_minutes": saved.MinimumNoticeMins,
		"buffer_minutes":         saved.BufferMins,
		"max_advance_days":       saved.MaxAdvanceDays,
		"accepting_bookings":     saved.AcceptingBookings,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "scheduling_profile",
		AggregateID:   saved.BuilderID,
		EventType:     "availability.profile.updated.v1",
		Payload:       payload,
	}); err != nil {
		h.fail(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse(saved))
}

// fail logs errors outside the domain taxonomy before answering; domain
// errors carry their own message and skip the log.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !schedule.IsValidation(err) && !schedule.IsNotFound(err) &&
		!schedule.IsForbidden(err) && !schedule.IsConflict(err) {
		h.logger.Error("availability request failed", "err", err)
	}
	writeDomainError(w, err)
}

func (h *Handler) emitRuleEvent(ctx context.Context, tx pgx.Tx, eventType string, rule schedule.Rule) error {
	payload, err := json.Marshal(map[string]any{
		"rule_id":     rule.ID,
		"builder_id":  rule.BuilderID,
		"day_of_week": rule.Weekday,
		"start_time":  rule.StartClock(),
		"end_time":    rule.EndClock(),
		"recurring":   rule.Recurring,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "availability_rule",
		AggregateID:   rule.BuilderID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func (h *Handler) emitExceptionEvent(ctx context.Context, tx pgx.Tx, eventType string, exc schedule.Exception) error {
	payload, err := json.Marshal(map[string]any{
		"exception_id": exc.ID,
		"builder_id":   exc.BuilderID,
		"date":         schedule.FormatDate(exc.Date),
		"is_available": exc.Available,
		"slot_count":   len(exc.Slots),
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "availability_exception",
		AggregateID:   exc.BuilderID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func ruleResponse(rule schedule.Rule) map[string]any {
	return map[string]any{
		"id":          rule.ID,
		"builder_id":  rule.BuilderID,
		"day_of_week": rule.Weekday,
		"start_time":  rule.StartClock(),
		"end_time":    rule.EndClock(),
		"recurring":   rule.Recurring,
		"created_at":  rule.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func exceptionResponse(exc schedule.Exception) map[string]any {
	slots := make([]map[string]any, 0, len(exc.Slots))
	for _, s := range exc.Slots {
		slots = append(slots, map[string]any{
			"id":       s.ID,
			"start_at": s.Start.UTC().Format(time.RFC3339),
			"end_at":   s.End.UTC().Format(time.RFC3339),
			"booked":   s.Booked,
		})
	}
	return map[string]any{
		"id":           exc.ID,
		"builder_id":   exc.BuilderID,
		"date":         schedule.FormatDate(exc.Date),
		"is_available": exc.Available,
		"slots":        slots,
		"created_at":   exc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func profileResponse(p schedule.Profile) map[string]any {
	return map[string]any{
		"builder_id":             p.BuilderID,
		"timezone":               p.Timezone,
		"minimum_notice_minutes": p.MinimumNoticeMins,
		"buffer_minutes":         p.BufferMins,
		"max_advance_days":       p.MaxAdvanceDays,
		"accepting_bookings":     p.AcceptingBookings,
	}
}
