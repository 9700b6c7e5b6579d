package storage

import (
	"context"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRule inserts a validated rule and returns it with its assigned id
// and timestamps, so callers never refetch after a write.
func (r *Repository) CreateRule(ctx context.Context, tx pgx.Tx, rule schedule.Rule) (schedule.Rule, error) {
	rule.ID = uuid.NewString()
	err := tx.QueryRow(ctx, `
		INSERT INTO availability_rules (id, builder_id, day_of_week, start_minute, end_minute, recurring)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, rule.ID, rule.BuilderID, rule.Weekday, rule.StartMinute, rule.EndMinute, rule.Recurring).
		Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return schedule.Rule{}, err
	}
	return rule, nil
}

// RulesByBuilder satisfies schedule.RuleSource. Stable order: weekday,
// then start minute.
func (r *Repository) RulesByBuilder(ctx context.Context, builderID string) ([]schedule.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, builder_id::text, day_of_week, start_minute, end_minute, recurring, created_at, updated_at
		FROM availability_rules
		WHERE builder_id = $1
		ORDER BY day_of_week ASC, start_minute ASC
	`, builderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Rule
	for rows.Next() {
		var rule schedule.Rule
		if err := rows.Scan(&rule.ID, &rule.BuilderID, &rule.Weekday, &rule.StartMinute,
			&rule.EndMinute, &rule.Recurring, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CountActiveRules counts recurring rules for the plan-limit check.
func (r *Repository) CountActiveRules(ctx context.Context, tx pgx.Tx, builderID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM availability_rules
		WHERE builder_id = $1 AND recurring
	`, builderID).Scan(&n)
	return n, err
}

// DeleteRule removes a rule after checking the requester owns it. Returns
// the deleted rule so the caller can describe it in the outbox event.
func (r *Repository) DeleteRule(ctx context.Context, tx pgx.Tx, ruleID, requesterID string) (schedule.Rule, error) {
	var rule schedule.Rule
	err := tx.QueryRow(ctx, `
		SELECT id::text, builder_id::text, day_of_week, start_minute, end_minute, recurring, created_at, updated_at
		FROM availability_rules
		WHERE id = $1
		FOR UPDATE
	`, ruleID).Scan(&rule.ID, &rule.BuilderID, &rule.Weekday, &rule.StartMinute,
		&rule.EndMinute, &rule.Recurring, &rule.CreatedAt, &rule.UpdatedAt)
	if isNoRows(err) {
		return schedule.Rule{}, &schedule.NotFoundError{Resource: "availability rule", ID: ruleID}
	}
	if err != nil {
		return schedule.Rule{}, err
	}
	if rule.BuilderID != requesterID {
		return schedule.Rule{}, &schedule.ForbiddenError{Resource: "availability rule", ID: ruleID}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE id = $1`, ruleID); err != nil {
		return schedule.Rule{}, err
	}
	return rule, nil
}
