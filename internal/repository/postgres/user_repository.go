package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "receipts-bot/internal/domain/user"
)

// UserRepository stores bot users in Postgres.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

const userColumns = `id, COALESCE(username, ''), first_name, last_name, COALESCE(locale, ''), COALESCE(phone_number, ''), COALESCE(handle, ''), is_subscribed, created_at, updated_at`

// GetOrCreate inserts the user unless the id is already known.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, p domain.Profile) (*domain.User, bool, error) {
	const q = `
INSERT INTO bot_users (id, username, first_name, last_name)
VALUES ($1, NULLIF($2, ''), $3, $4)
ON CONFLICT (id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, id, p.Username, p.FirstName, p.LastName)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	u, found, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, sql.ErrNoRows
	}
	return u, n > 0, nil
}

// GetByID returns a user by Telegram ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, bool, error) {
	q := `SELECT ` + userColumns + ` FROM bot_users WHERE id=$1`
	row := r.db.QueryRowContext(ctx, q, id)
	var u domain.User
	var locale string
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &locale, &u.PhoneNumber, &u.Handle, &u.IsSubscribed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	u.Locale = domain.Locale(locale)
	return &u, true, nil
}

// Update writes every mutable profile field. Empty strings are stored as NULL.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `
UPDATE bot_users SET
	username = NULLIF($2, ''),
	first_name = $3,
	last_name = $4,
	locale = NULLIF($5, ''),
	phone_number = NULLIF($6, ''),
	handle = NULLIF($7, ''),
	is_subscribed = $8,
	updated_at = now()
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.FirstName, u.LastName, string(u.Locale), u.PhoneNumber, u.Handle, u.IsSubscribed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
