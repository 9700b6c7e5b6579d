package outbox

import (
	"context"

	"github.com/buildlance/buildlance/libs/db"
)

// Emitter wraps a single-event insert in its own transaction, for callers
// that have no surrounding tx (the consumer path).
type Emitter struct {
	pool *db.Pool
	repo *Repository
}

func NewEmitter(pool *db.Pool, repo *Repository) *Emitter {
	return &Emitter{pool: pool, repo: repo}
}

func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.repo.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
