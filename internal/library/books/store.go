package books

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/paging"
)

type Store struct{ conn *db.Conn }

func NewStore(conn *db.Conn) *Store { return &Store{conn: conn} }

const bookColumns = `id, title, author, genre, description, publication_date, total_copies,
	copies_available, overdue_days, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (*Book, error) {
	var b Book
	if err := r.Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.Description, &b.PublicationDate, &b.TotalCopies,
		&b.CopiesAvailable, &b.OverdueDays, &b.ImageURL, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Book, error) {
	return getBookTx(ctx, s.conn, id, "")
}

// getBookTx: lock には ForUpdate() の戻り値を渡す（不要なら空文字）
func getBookTx(ctx context.Context, q db.DBTX, id int64, lock string) (*Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`+lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("book not found")
	}
	return b, err
}

// LIKE のワイルドカードを '!' でエスケープ（MySQL / SQLite 共通で使える）
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(s) + "%"
}

func buildWhere(q BookQuery) (string, []any) {
	var sb strings.Builder
	args := []any{}
	sb.WriteString(" WHERE 1=1")
	if q.Q != "" {
		sb.WriteString(" AND (LOWER(title) LIKE ? ESCAPE '!' OR LOWER(author) LIKE ? ESCAPE '!' OR LOWER(genre) LIKE ? ESCAPE '!')")
		p := likePattern(q.Q)
		args = append(args, p, p, p)
	}
	if q.Genre != "" {
		sb.WriteString(" AND genre = ?")
		args = append(args, q.Genre)
	}
	return sb.String(), args
}

func (s *Store) List(ctx context.Context, p paging.Page, q BookQuery) ([]*Book, int64, error) {
	where, args := buildWhere(q)

	// 件数は先に取る（SQLite は接続1本なので rows を開いたまま次のクエリを投げない）
	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bookColumns + ` FROM books` + where + ` ORDER BY id ` + p.SQLOrder() + ` LIMIT ? OFFSET ?`
	rows, err := s.conn.QueryContext(ctx, query, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
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

func insertBookTx(ctx context.Context, tx db.DBTX, b *Book) error {
	const q = `
	INSERT INTO books
	(title, author, genre, description, publication_date, total_copies, copies_available, overdue_days,
	 image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.Title, b.Author, b.Genre, b.Description, b.PublicationDate, b.TotalCopies, b.CopiesAvailable,
		b.OverdueDays, b.ImageURL, b.CreatedAt, b.UpdatedAt,
	)
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

func updateBookTx(ctx context.Context, tx db.DBTX, b *Book) error {
	const q = `
	UPDATE books
	SET title = ?, author = ?, genre = ?, description = ?, publication_date = ?, total_copies = ?,
	    copies_available = ?, overdue_days = ?, image_url = ?, updated_at = ?
	WHERE id = ?`
	res, err := tx.ExecContext(ctx, q,
		b.Title, b.Author, b.Genre, b.Description, b.PublicationDate, b.TotalCopies,
		b.CopiesAvailable, b.OverdueDays, b.ImageURL, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.ErrNotFound("book not found")
	}
	return nil
}

func deleteBookTx(ctx context.Context, tx db.DBTX, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return apperr.ErrNotFound("book not found")
	}
	return nil
}

// 未返却の貸出 + 承認待ち申請の件数
func countOpenLoansTx(ctx context.Context, tx db.DBTX, bookID int64) (borrows, requests int, err error) {
	const qb = `SELECT COUNT(*) FROM borrows WHERE book_id = ? AND returned_at IS NULL`
	if err = tx.QueryRowContext(ctx, qb, bookID).Scan(&borrows); err != nil {
		return 0, 0, err
	}
	const qr = `SELECT COUNT(*) FROM borrow_requests WHERE book_id = ? AND status = 'pending'`
	if err = tx.QueryRowContext(ctx, qr, bookID).Scan(&requests); err != nil {
		return 0, 0, err
	}
	return borrows, requests, nil
}

// 会員向け通知の元データ
func insertEventTx(ctx context.Context, tx db.DBTX, bookID int64, title, kind string, at time.Time) error {
	const q = `INSERT INTO book_events (book_id, title, kind, created_at) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, bookID, title, kind, at)
	return err
}
