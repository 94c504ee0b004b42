package auth

import (
	"context"
	"database/sql"
	"errors"

	"LIBRIS-backend/internal/platform/db"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
}

type Store struct{ conn *db.Conn }

func NewStore(conn *db.Conn) UserStore {
	return &Store{conn: conn}
}

const selectUser = `
SELECT id, name, email, password_hash, role, is_disabled, created_at
FROM users
`

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.conn.QueryRowContext(ctx, selectUser+`WHERE id = ? LIMIT 1`, id))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.conn.QueryRowContext(ctx, selectUser+`WHERE email = ? LIMIT 1`, email))
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users (name, email, password_hash, role, is_disabled, created_at)
VALUES (?, ?, ?, ?, 0, ?)
`
	res, err := s.conn.ExecContext(ctx, q, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// 見つからなければ (nil, nil)
func scanUser(row *sql.Row) (*User, error) {
	var u User
	var isDisabledInt int
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&isDisabledInt,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.IsDisabled = isDisabledInt != 0
	return &u, nil
}
