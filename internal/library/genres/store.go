package genres

import (
	"context"
	"database/sql"

	"LIBRIS-backend/internal/platform/db"
)

type Store struct{ conn *db.Conn }

func NewStore(conn *db.Conn) *Store { return &Store{conn: conn} }

// GET /genres?all=1
func (s *Store) List(ctx context.Context, includeDisabled bool) ([]Genre, error) {
	q := `SELECT id, name, is_disabled FROM genres`
	if !includeDisabled {
		q += ` WHERE is_disabled = 0`
	}
	q += ` ORDER BY name`

	rows, err := s.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]Genre, 0, 16)
	for rows.Next() {
		g, err := scanGenre(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *g)
	}
	return res, rows.Err()
}

func scanGenre(sc interface{ Scan(...any) error }) (*Genre, error) {
	var (
		g        Genre
		disabled int
	)
	if err := sc.Scan(&g.ID, &g.Name, &disabled); err != nil {
		return nil, err
	}
	g.IsDisabled = disabled != 0
	return &g, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Genre, error) {
	return scanGenre(s.conn.QueryRowContext(ctx, `SELECT id, name, is_disabled FROM genres WHERE id = ?`, id))
}

func (s *Store) Create(ctx context.Context, name string) (*Genre, error) {
	r, err := s.conn.ExecContext(ctx, `INSERT INTO genres (name, is_disabled) VALUES (?, 0)`, name)
	if err != nil {
		return nil, err
	}
	id, err := r.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Genre{ID: id, Name: name}, nil
}

func (s *Store) Update(ctx context.Context, id int64, name string, disabled bool) error {
	r, err := s.conn.ExecContext(ctx, `UPDATE genres SET name = ?, is_disabled = ? WHERE id = ?`, name, boolInt(disabled), id)
	if err != nil {
		return err
	}
	return affected(r)
}

// DELETE: is_disabled=1 にするだけ（登録済みの本のジャンル名はそのまま）
func (s *Store) Disable(ctx context.Context, id int64) error {
	r, err := s.conn.ExecContext(ctx, `UPDATE genres SET is_disabled = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(r)
}

func affected(r sql.Result) error {
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
