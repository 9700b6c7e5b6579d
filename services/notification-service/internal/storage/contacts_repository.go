package storage

import (
	"context"
	"errors"

	"github.com/buildlance/buildlance/libs/db"
	"github.com/jackc/pgx/v5"
)

var ErrNoContact = errors.New("no contact on file")

// Contact is the delivery address book entry for a builder, seeded from
// the registration event. Phone is optional and empty until provided.
type Contact struct {
	BuilderID string
	Email     string
	Phone     string
}

type ContactRepository struct {
	pool *db.Pool
}

func NewContactRepository(pool *db.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func (r *ContactRepository) Upsert(ctx context.Context, builderID, email string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO builder_contacts (builder_id, email)
		VALUES ($1, $2)
		ON CONFLICT (builder_id)
		DO UPDATE SET email = EXCLUDED.email, updated_at = now()
	`, builderID, email)
	return err
}

func (r *ContactRepository) Get(ctx context.Context, builderID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT builder_id::text, email, COALESCE(phone, '')
		FROM builder_contacts
		WHERE builder_id = $1
	`, builderID).Scan(&c.BuilderID, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrNoContact
		}
		return Contact{}, err
	}
	return c, nil
}
