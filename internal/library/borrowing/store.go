package borrowing

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"LIBRIS-backend/internal/lifecycle"
	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/paging"
)

type Store struct{ conn *db.Conn }

func NewStore(conn *db.Conn) *Store { return &Store{conn: conn} }

type rowScanner interface {
	Scan(dest ...any) error
}

// ===== borrow_requests =====

const requestSelect = `
SELECT r.id, r.request_ulid, r.book_id, r.user_id, r.status, r.requested_at, r.resolved_at, r.resolved_by,
       r.rejection_reason, bk.title, bk.author, u.name, u.email
FROM borrow_requests r
LEFT JOIN books bk ON bk.id = r.book_id
LEFT JOIN users u ON u.id = r.user_id
`

func scanRequest(rs rowScanner) (*Request, error) {
	var r Request
	if err := rs.Scan(
		&r.ID, &r.ULID, &r.BookID, &r.UserID, &r.Status, &r.RequestedAt, &r.ResolvedAt, &r.ResolvedBy,
		&r.RejectionReason, &r.BookTitle, &r.BookAuthor, &r.UserName, &r.UserEmail,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetRequest(ctx context.Context, id int64) (*Request, error) {
	r, err := scanRequest(s.conn.QueryRowContext(ctx, requestSelect+`WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("borrow request not found")
	}
	return r, err
}

// lockRequestTx: JOIN せずに行ロックだけ取る
func lockRequestTx(ctx context.Context, tx db.DBTX, id int64, lock string) (*Request, error) {
	const q = `
	SELECT id, request_ulid, book_id, user_id, status, requested_at, resolved_at, resolved_by, rejection_reason
	FROM borrow_requests WHERE id = ?`
	var r Request
	err := tx.QueryRowContext(ctx, q+lock, id).Scan(
		&r.ID, &r.ULID, &r.BookID, &r.UserID, &r.Status, &r.RequestedAt, &r.ResolvedAt, &r.ResolvedBy, &r.RejectionReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("borrow request not found")
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func insertRequestTx(ctx context.Context, tx db.DBTX, r *Request) error {
	const q = `
	INSERT INTO borrow_requests (request_ulid, book_id, user_id, status, requested_at)
	VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, r.ULID, r.BookID, r.UserID, r.Status, r.RequestedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// resolveRequestTx: pending のときだけ更新する（WHERE で二重解決を防ぐ）
func resolveRequestTx(ctx context.Context, tx db.DBTX, id int64, status lifecycle.RequestStatus, by int64, reason sql.NullString, at time.Time) error {
	const q = `
	UPDATE borrow_requests
	SET status = ?, resolved_at = ?, resolved_by = ?, rejection_reason = ?
	WHERE id = ? AND status = 'pending'`
	res, err := tx.ExecContext(ctx, q, string(status), at, by, reason, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.ErrConflict("borrow request is no longer pending")
	}
	return nil
}

// hasOpenTx: (user, book) に承認待ち申請か未返却の貸出があるか
func hasOpenTx(ctx context.Context, tx db.DBTX, userID, bookID int64) (bool, error) {
	const q = `
	SELECT
	  (SELECT COUNT(*) FROM borrow_requests WHERE user_id = ? AND book_id = ? AND status = 'pending') +
	  (SELECT COUNT(*) FROM borrows WHERE user_id = ? AND book_id = ? AND returned_at IS NULL)`
	var n int
	if err := tx.QueryRowContext(ctx, q, userID, bookID, userID, bookID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) HasOpen(ctx context.Context, userID, bookID int64) (bool, error) {
	return hasOpenTx(ctx, s.conn, userID, bookID)
}

// ListRequests: userID=0 なら全員。status="" なら全ステータス。並び順は p.Order。
func (s *Store) ListRequests(ctx context.Context, userID int64, status lifecycle.RequestStatus, p paging.Page) ([]*Request, int64, error) {
	var sb strings.Builder
	args := []any{}
	sb.WriteString(" WHERE 1=1")
	if userID != 0 {
		sb.WriteString(" AND r.user_id = ?")
		args = append(args, userID)
	}
	if status != "" {
		sb.WriteString(" AND r.status = ?")
		args = append(args, string(status))
	}
	where := sb.String()

	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrow_requests r`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := p.SQLOrder()
	query := requestSelect + where + ` ORDER BY r.requested_at ` + order + `, r.id ` + order + ` LIMIT ? OFFSET ?`
	rows, err := s.conn.QueryContext(ctx, query, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []*Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ===== borrows =====

const borrowSelect = `
SELECT b.id, b.borrow_ulid, b.request_id, b.book_id, b.user_id, b.borrowed_at, b.expected_return,
       b.return_requested, b.return_requested_at, b.returned_at, b.acknowledged_by,
       bk.title, bk.author, u.name, u.email
FROM borrows b
LEFT JOIN books bk ON bk.id = b.book_id
LEFT JOIN users u ON u.id = b.user_id
`

func scanBorrow(rs rowScanner) (*Borrow, error) {
	var b Borrow
	var returnRequested int
	if err := rs.Scan(
		&b.ID, &b.ULID, &b.RequestID, &b.BookID, &b.UserID, &b.BorrowedAt, &b.ExpectedReturn,
		&returnRequested, &b.ReturnRequestedAt, &b.ReturnedAt, &b.AcknowledgedBy,
		&b.BookTitle, &b.BookAuthor, &b.UserName, &b.UserEmail,
	); err != nil {
		return nil, err
	}
	b.ReturnRequested = returnRequested != 0
	return &b, nil
}

func (s *Store) GetBorrow(ctx context.Context, id int64) (*Borrow, error) {
	b, err := scanBorrow(s.conn.QueryRowContext(ctx, borrowSelect+`WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("borrow not found")
	}
	return b, err
}

func lockBorrowTx(ctx context.Context, tx db.DBTX, id int64, lock string) (*Borrow, error) {
	const q = `
	SELECT id, borrow_ulid, request_id, book_id, user_id, borrowed_at, expected_return,
	       return_requested, return_requested_at, returned_at, acknowledged_by
	FROM borrows WHERE id = ?`
	var b Borrow
	var returnRequested int
	err := tx.QueryRowContext(ctx, q+lock, id).Scan(
		&b.ID, &b.ULID, &b.RequestID, &b.BookID, &b.UserID, &b.BorrowedAt, &b.ExpectedReturn,
		&returnRequested, &b.ReturnRequestedAt, &b.ReturnedAt, &b.AcknowledgedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("borrow not found")
	}
	if err != nil {
		return nil, err
	}
	b.ReturnRequested = returnRequested != 0
	return &b, nil
}

// 会員の、その本の未返却貸出（新しいもの優先）
func (s *Store) FindOpenBorrowID(ctx context.Context, userID, bookID int64) (int64, error) {
	const q = `
	SELECT id FROM borrows
	WHERE user_id = ? AND book_id = ? AND returned_at IS NULL
	ORDER BY borrowed_at DESC, id DESC LIMIT 1`
	var id int64
	err := s.conn.QueryRowContext(ctx, q, userID, bookID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound("no unreturned borrow for this book")
	}
	return id, err
}

func insertBorrowTx(ctx context.Context, tx db.DBTX, b *Borrow) error {
	const q = `
	INSERT INTO borrows (borrow_ulid, request_id, book_id, user_id, borrowed_at, expected_return, return_requested)
	VALUES (?, ?, ?, ?, ?, ?, 0)`
	res, err := tx.ExecContext(ctx, q, b.ULID, b.RequestID, b.BookID, b.UserID, b.BorrowedAt, b.ExpectedReturn)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func markReturnRequestedTx(ctx context.Context, tx db.DBTX, id int64, at time.Time) error {
	const q = `
	UPDATE borrows SET return_requested = 1, return_requested_at = ?
	WHERE id = ? AND return_requested = 0 AND returned_at IS NULL`
	res, err := tx.ExecContext(ctx, q, at, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.ErrConflict("return cannot be requested for this borrow")
	}
	return nil
}

func markReturnedTx(ctx context.Context, tx db.DBTX, id, by int64, at time.Time) error {
	const q = `
	UPDATE borrows SET returned_at = ?, acknowledged_by = ?
	WHERE id = ? AND return_requested = 1 AND returned_at IS NULL`
	res, err := tx.ExecContext(ctx, q, at, by, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.ErrConflict("borrow is not awaiting return")
	}
	return nil
}

// ===== books (在庫) =====

type bookStock struct {
	ID              int64
	TotalCopies     int
	CopiesAvailable int
	OverdueDays     int
}

func lockBookTx(ctx context.Context, tx db.DBTX, id int64, lock string) (*bookStock, error) {
	const q = `SELECT id, total_copies, copies_available, overdue_days FROM books WHERE id = ?`
	var b bookStock
	err := tx.QueryRowContext(ctx, q+lock, id).Scan(&b.ID, &b.TotalCopies, &b.CopiesAvailable, &b.OverdueDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("book not found")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func decrementStockTx(ctx context.Context, tx db.DBTX, bookID int64) error {
	const q = `UPDATE books SET copies_available = copies_available - 1 WHERE id = ? AND copies_available > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.ErrConflict("no copies available")
	}
	return nil
}

// incrementStockTx: total_copies を超えない。更新できたかを返す。
func incrementStockTx(ctx context.Context, tx db.DBTX, bookID int64) (bool, error) {
	const q = `UPDATE books SET copies_available = copies_available + 1 WHERE id = ? AND copies_available < total_copies`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

// ListBorrows: sortCol は呼び出し側の固定の列名のみ（"b.borrowed_at" など）。向きは p.Order。
func (s *Store) ListBorrows(ctx context.Context, f BorrowFilter, sortCol string, p paging.Page) ([]*Borrow, int64, error) {
	var sb strings.Builder
	args := []any{}
	sb.WriteString(" WHERE 1=1")
	if f.UserID != 0 {
		sb.WriteString(" AND b.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.OnlyOpen {
		sb.WriteString(" AND b.returned_at IS NULL")
	}
	if f.ReturnRequested != nil {
		if *f.ReturnRequested {
			sb.WriteString(" AND b.return_requested = 1")
		} else {
			sb.WriteString(" AND b.return_requested = 0")
		}
	}
	if f.DueBefore != nil {
		sb.WriteString(" AND b.expected_return < ?")
		args = append(args, *f.DueBefore)
	}
	where := sb.String()

	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows b`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := p.SQLOrder()
	query := borrowSelect + where + ` ORDER BY ` + sortCol + ` ` + order + `, b.id ` + order + ` LIMIT ? OFFSET ?`
	rows, err := s.conn.QueryContext(ctx, query, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []*Borrow{}
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
