package storage

import (
	"context"
	"time"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateException inserts the exception row and its slots in the caller's
// transaction. One exception per (builder, date): the unique index turns a
// second write into a *schedule.ConflictError.
func (r *Repository) CreateException(ctx context.Context, tx pgx.Tx, exc schedule.Exception) (schedule.Exception, error) {
	exc.ID = uuid.NewString()
	err := tx.QueryRow(ctx, `
		INSERT INTO availability_exceptions (id, builder_id, exception_date, is_available)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, exc.ID, exc.BuilderID, exc.Date, exc.Available).Scan(&exc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.Exception{}, &schedule.ConflictError{
				Resource: "availability exception",
				Reason:   "an exception already exists for " + schedule.FormatDate(exc.Date),
			}
		}
		return schedule.Exception{}, err
	}

	for i := range exc.Slots {
		exc.Slots[i].ID = uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_exception_slots (id, exception_id, start_at, end_at, booked)
			VALUES ($1, $2, $3, $4, $5)
		`, exc.Slots[i].ID, exc.ID, exc.Slots[i].Start, exc.Slots[i].End, exc.Slots[i].Booked); err != nil {
			return schedule.Exception{}, err
		}
	}
	return exc, nil
}

// ExceptionsInRange satisfies schedule.ExceptionSource: exceptions whose
// date is in [from, to] inclusive, ordered by date, slots eagerly loaded.
func (r *Repository) ExceptionsInRange(ctx context.Context, builderID string, from, to time.Time) ([]schedule.Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, builder_id::text, exception_date, is_available, created_at
		FROM availability_exceptions
		WHERE builder_id = $1 AND exception_date >= $2 AND exception_date <= $3
		ORDER BY exception_date ASC
	`, builderID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Exception
	byID := map[string]int{}
	for rows.Next() {
		var exc schedule.Exception
		if err := rows.Scan(&exc.ID, &exc.BuilderID, &exc.Date, &exc.Available, &exc.CreatedAt); err != nil {
			return nil, err
		}
		byID[exc.ID] = len(out)
		out = append(out, exc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(out) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(out))
	for _, exc := range out {
		ids = append(ids, exc.ID)
	}
	slotRows, err := r.pool.Query(ctx, `
		SELECT id::text, exception_id::text, start_at, end_at, booked
		FROM availability_exception_slots
		WHERE exception_id = ANY($1)
		ORDER BY start_at ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer slotRows.Close()

	for slotRows.Next() {
		var slot schedule.Slot
		var excID string
		if err := slotRows.Scan(&slot.ID, &excID, &slot.Start, &slot.End, &slot.Booked); err != nil {
			return nil, err
		}
		if idx, ok := byID[excID]; ok {
			out[idx].Slots = append(out[idx].Slots, slot)
		}
	}
	if slotRows.Err() != nil {
		return nil, slotRows.Err()
	}
	return out, nil
}

// CountFutureExceptions counts exceptions dated today or later, for the
// plan-limit check.
func (r *Repository) CountFutureExceptions(ctx context.Context, tx pgx.Tx, builderID string, today time.Time) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM availability_exceptions
		WHERE builder_id = $1 AND exception_date >= $2
	`, builderID, today).Scan(&n)
	return n, err
}

// DeleteException removes an exception and its slots after the ownership
// check, returning the deleted row for the outbox event.
func (r *Repository) DeleteException(ctx context.Context, tx pgx.Tx, exceptionID, requesterID string) (schedule.Exception, error) {
	var exc schedule.Exception
	err := tx.QueryRow(ctx, `
		SELECT id::text, builder_id::text, exception_date, is_available, created_at
		FROM availability_exceptions
		WHERE id = $1
		FOR UPDATE
	`, exceptionID).Scan(&exc.ID, &exc.BuilderID, &exc.Date, &exc.Available, &exc.CreatedAt)
	if isNoRows(err) {
		return schedule.Exception{}, &schedule.NotFoundError{Resource: "availability exception", ID: exceptionID}
	}
	if err != nil {
		return schedule.Exception{}, err
	}
	if exc.BuilderID != requesterID {
		return schedule.Exception{}, &schedule.ForbiddenError{Resource: "availability exception", ID: exceptionID}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_exception_slots WHERE exception_id = $1`, exceptionID); err != nil {
		return schedule.Exception{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM availability_exceptions WHERE id = $1`, exceptionID); err != nil {
		return schedule.Exception{}, err
	}
	return exc, nil
}

// MarkSlotBooked flips a slot to booked only if it is still free. The
// single-row compare-and-set is the double-booking guard the booking
// component relies on.
func (r *Repository) MarkSlotBooked(ctx context.Context, slotID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_exception_slots
		SET booked = true
		WHERE id = $1 AND NOT booked
	`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM availability_exception_slots WHERE id = $1)
		`, slotID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &schedule.NotFoundError{Resource: "exception slot", ID: slotID}
		}
		return &schedule.ConflictError{Resource: "exception slot", Reason: "slot is already booked"}
	}
	return nil
}

// DeleteExceptionsBefore removes up to limit exceptions older than the
// cutoff date, slots included. Used by the retention sweep.
func (r *Repository) DeleteExceptionsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 200
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM availability_exception_slots
		WHERE exception_id IN (
			SELECT id FROM availability_exceptions
			WHERE exception_date < $1
			ORDER BY exception_date ASC
			LIMIT $2
		)
	`, cutoff, limit); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM availability_exceptions
		WHERE id IN (
			SELECT id FROM availability_exceptions
			WHERE exception_date < $1
			ORDER BY exception_date ASC
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
