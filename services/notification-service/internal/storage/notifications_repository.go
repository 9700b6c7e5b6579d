package storage

import (
	"context"

	"github.com/buildlance/buildlance/libs/db"
)

// Notification is one rendered delivery attempt. Rows are append-only;
// a redelivered event shows up as a new row.
type Notification struct {
	BuilderID string
	EventType string
	Channel   string
	Recipient string
	Subject   string
	Body      string
	Status    string
	Reason    string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (builder_id, event_type, channel, recipient, subject, body, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, n.BuilderID, n.EventType, n.Channel, n.Recipient, n.Subject, n.Body, n.Status, n.Reason)
	return err
}
