package dashboard

import (
	"context"
	"database/sql"
	"time"

	"LIBRIS-backend/internal/platform/db"
)

type Store struct{ conn *db.Conn }

func NewStore(conn *db.Conn) *Store { return &Store{conn: conn} }

// 集計は読み取り専用Txで読む（errgroup で並列に呼ばれるので1件ずつ）
func (s *Store) count(ctx context.Context, q string, args ...any) (int64, error) {
	var n int64
	err := s.conn.ReadOnly(ctx, func(ctx context.Context, tx db.DBTX) error {
		return tx.QueryRowContext(ctx, q, args...).Scan(&n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CopyTotals(ctx context.Context) (titles, total, available int64, err error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(total_copies), 0), COALESCE(SUM(copies_available), 0) FROM books`
	err = s.conn.ReadOnly(ctx, func(ctx context.Context, tx db.DBTX) error {
		return tx.QueryRowContext(ctx, q).Scan(&titles, &total, &available)
	})
	return titles, total, available, err
}

func (s *Store) CountUsers(ctx context.Context, role string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, role)
}

// userID=0 なら全員
func (s *Store) CountPendingRequests(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return s.count(ctx, `SELECT COUNT(*) FROM borrow_requests WHERE status = 'pending'`)
	}
	return s.count(ctx, `SELECT COUNT(*) FROM borrow_requests WHERE status = 'pending' AND user_id = ?`, userID)
}

func (s *Store) CountPendingReturns(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE return_requested = 1 AND returned_at IS NULL`)
}

func (s *Store) CountOpenBorrows(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE returned_at IS NULL`)
	}
	return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE returned_at IS NULL AND user_id = ?`, userID)
}

func (s *Store) CountOverdue(ctx context.Context, userID int64, dueBefore time.Time) (int64, error) {
	if userID == 0 {
		return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE returned_at IS NULL AND expected_return < ?`, dueBefore)
	}
	return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE returned_at IS NULL AND expected_return < ? AND user_id = ?`, dueBefore, userID)
}

func (s *Store) CountReturned(ctx context.Context, userID int64) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE returned_at IS NOT NULL AND user_id = ?`, userID)
}

type borrowRow struct {
	ID              int64
	BookID          int64
	Title           sql.NullString
	BorrowedAt      time.Time
	ExpectedReturn  time.Time
	ReturnRequested bool
	ReturnedAt      sql.NullTime
}

func (s *Store) queryBorrows(ctx context.Context, q string, args ...any) ([]borrowRow, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []borrowRow{}
	for rows.Next() {
		var r borrowRow
		var requested int
		if err := rows.Scan(&r.ID, &r.BookID, &r.Title, &r.BorrowedAt, &r.ExpectedReturn, &requested, &r.ReturnedAt); err != nil {
			return nil, err
		}
		r.ReturnRequested = requested != 0
		list = append(list, r)
	}
	return list, rows.Err()
}

const borrowRowSelect = `
SELECT b.id, b.book_id, bk.title, b.borrowed_at, b.expected_return, b.return_requested, b.returned_at
FROM borrows b
LEFT JOIN books bk ON bk.id = b.book_id
`

func (s *Store) RecentBorrows(ctx context.Context, userID int64, limit int) ([]borrowRow, error) {
	return s.queryBorrows(ctx, borrowRowSelect+`WHERE b.user_id = ? ORDER BY b.borrowed_at DESC, b.id DESC LIMIT ?`, userID, limit)
}

// DueBetween: 未返却で expected_return が [from, to) のもの
func (s *Store) DueBetween(ctx context.Context, userID int64, from, to time.Time) ([]borrowRow, error) {
	return s.queryBorrows(ctx, borrowRowSelect+`
	WHERE b.user_id = ? AND b.returned_at IS NULL AND b.expected_return >= ? AND b.expected_return < ?
	ORDER BY b.expected_return ASC`, userID, from, to)
}

type bookEvent struct {
	BookID    int64
	Title     string
	Kind      string
	CreatedAt time.Time
}

func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]bookEvent, error) {
	const q = `SELECT book_id, title, kind, created_at FROM book_events WHERE created_at >= ? ORDER BY created_at DESC, id DESC`
	rows, err := s.conn.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []bookEvent{}
	for rows.Next() {
		var e bookEvent
		if err := rows.Scan(&e.BookID, &e.Title, &e.Kind, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

type popularBook struct {
	BookID int64
	Title  string
	Count  int64
}

// 期間内に貸出回数の多い本（削除済みの本は除く）
func (s *Store) Popular(ctx context.Context, since time.Time, limit int) ([]popularBook, error) {
	const q = `
	SELECT b.book_id, bk.title, COUNT(*) AS n
	FROM borrows b
	JOIN books bk ON bk.id = b.book_id
	WHERE b.borrowed_at >= ?
	GROUP BY b.book_id, bk.title
	ORDER BY n DESC, b.book_id ASC
	LIMIT ?`
	rows, err := s.conn.QueryContext(ctx, q, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []popularBook{}
	for rows.Next() {
		var p popularBook
		if err := rows.Scan(&p.BookID, &p.Title, &p.Count); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
