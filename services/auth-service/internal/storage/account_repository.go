package storage

import (
	"context"
	"time"

	"github.com/buildlance/buildlance/libs/db"
	"github.com/jackc/pgx/v5"
)

// Account is a platform login. Builder accounts own availability data;
// client accounts only browse and book.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type AccountRepository struct {
	pool *db.Pool
}

func NewAccountRepository(pool *db.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) CreateTx(ctx context.Context, tx pgx.Tx, account Account) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
	`, account.ID, account.Email, account.PasswordHash, account.Role)
	return err
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM accounts
		WHERE email = $1
	`, email).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.Role, &account.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.Role, &account.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
