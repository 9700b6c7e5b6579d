package storage

import (
	"context"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/jackc/pgx/v5"
)

// SchedulingProfile loads the builder's profile. Satisfies
// schedule.ProfileSource; a missing row is a *schedule.NotFoundError.
func (r *Repository) SchedulingProfile(ctx context.Context, builderID string) (schedule.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `
		SELECT builder_id::text, timezone, minimum_notice_minutes, buffer_minutes,
		       max_advance_days, accepting_bookings, created_at, updated_at
		FROM builder_scheduling_profiles
		WHERE builder_id = $1
	`, builderID), builderID)
}

// SchedulingProfileForUpdate locks the profile row for a partial update.
func (r *Repository) SchedulingProfileForUpdate(ctx context.Context, tx pgx.Tx, builderID string) (schedule.Profile, error) {
	return scanProfile(tx.QueryRow(ctx, `
		SELECT builder_id::text, timezone, minimum_notice_minutes, buffer_minutes,
		       max_advance_days, accepting_bookings, created_at, updated_at
		FROM builder_scheduling_profiles
		WHERE builder_id = $1
		FOR UPDATE
	`, builderID), builderID)
}

func scanProfile(row pgx.Row, builderID string) (schedule.Profile, error) {
	var p schedule.Profile
	err := row.Scan(&p.BuilderID, &p.Timezone, &p.MinimumNoticeMins, &p.BufferMins,
		&p.MaxAdvanceDays, &p.AcceptingBookings, &p.CreatedAt, &p.UpdatedAt)
	if isNoRows(err) {
		return schedule.Profile{}, &schedule.NotFoundError{Resource: "scheduling profile", ID: builderID}
	}
	if err != nil {
		return schedule.Profile{}, err
	}
	return p, nil
}

// GetOrCreateProfile bootstraps the default profile when missing. Used by
// the registration consumer so a new builder resolves immediately.
func (r *Repository) GetOrCreateProfile(ctx context.Context, builderID string) (schedule.Profile, error) {
	def := schedule.DefaultProfile(builderID)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO builder_scheduling_profiles
			(builder_id, timezone, minimum_notice_minutes, buffer_minutes, max_advance_days, accepting_bookings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (builder_id) DO NOTHING
	`, builderID, def.Timezone, def.MinimumNoticeMins, def.BufferMins, def.MaxAdvanceDays, def.AcceptingBookings)
	if err != nil {
		return schedule.Profile{}, err
	}
	return r.SchedulingProfile(ctx, builderID)
}

// SaveProfile writes the merged profile produced by schedule.Profile.Apply.
func (r *Repository) SaveProfile(ctx context.Context, tx pgx.Tx, p schedule.Profile) (schedule.Profile, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO builder_scheduling_profiles
			(builder_id, timezone, minimum_notice_minutes, buffer_minutes, max_advance_days, accepting_bookings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (builder_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			minimum_notice_minutes = EXCLUDED.minimum_notice_minutes,
			buffer_minutes = EXCLUDED.buffer_minutes,
			max_advance_days = EXCLUDED.max_advance_days,
			accepting_bookings = EXCLUDED.accepting_bookings,
			updated_at = now()
		RETURNING created_at, updated_at
	`, p.BuilderID, p.Timezone, p.MinimumNoticeMins, p.BufferMins, p.MaxAdvanceDays, p.AcceptingBookings).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return schedule.Profile{}, err
	}
	return p, nil
}
