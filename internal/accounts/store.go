package accounts

import (
	"context"
	"strings"

	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/paging"
)

type Store struct{ conn *db.Conn }

func NewStore(conn *db.Conn) *Store { return &Store{conn: conn} }

func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(s) + "%"
}

// List: q は name / email の部分一致（小文字化済みを渡す）
func (s *Store) List(ctx context.Context, role, q string, p paging.Page) ([]*auth.User, int64, error) {
	var sb strings.Builder
	args := []any{role}
	sb.WriteString(" WHERE role = ?")
	if q != "" {
		sb.WriteString(" AND (LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!')")
		pat := likePattern(q)
		args = append(args, pat, pat)
	}
	where := sb.String()

	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, name, email, role, is_disabled, created_at FROM users` + where +
		` ORDER BY id ` + p.SQLOrder() + ` LIMIT ? OFFSET ?`
	rows, err := s.conn.QueryContext(ctx, query, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []*auth.User{}
	for rows.Next() {
		var u auth.User
		var disabled int
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &disabled, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		u.IsDisabled = disabled != 0
		list = append(list, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func updateUserTx(ctx context.Context, tx db.DBTX, u *auth.User) error {
	disabled := 0
	if u.IsDisabled {
		disabled = 1
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET name = ?, email = ?, is_disabled = ? WHERE id = ?`,
		u.Name, u.Email, disabled, u.ID)
	return err
}

func deleteUserTx(ctx context.Context, tx db.DBTX, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func countOpenBorrowsTx(ctx context.Context, tx db.DBTX, userID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows WHERE user_id = ? AND returned_at IS NULL`, userID).Scan(&n)
	return n, err
}

// lockUserTx: 見つからなければ (nil, nil)
func lockUserTx(ctx context.Context, tx db.DBTX, id int64, lock string) (*auth.User, error) {
	const q = `SELECT id, name, email, role, is_disabled, created_at FROM users WHERE id = ?`
	rows, err := tx.QueryContext(ctx, q+lock, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var u auth.User
	var disabled int
	if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &disabled, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.IsDisabled = disabled != 0
	return &u, nil
}
