package books

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/paging"
)

type Service struct {
	conn  *db.Conn
	store *Store
	log   *zap.Logger
	now   func() time.Time

	defaultOverdueDays int
}

func NewService(conn *db.Conn, defaultOverdueDays int, log *zap.Logger) *Service {
	return &Service{
		conn:               conn,
		store:              NewStore(conn),
		log:                log,
		now:                time.Now,
		defaultOverdueDays: defaultOverdueDays,
	}
}

// NormalizeGenre: "science fiction" -> "Science Fiction"
func NormalizeGenre(g string) string {
	g = strings.Join(strings.Fields(g), " ")
	return cases.Title(language.English).String(g)
}

// 検索語は小文字に畳んで LOWER(col) と比較する
func foldQuery(q string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(q))
}

func (s *Service) timestamp() time.Time { return s.now().UTC().Truncate(time.Second) }

func nullString(p *string) sql.NullString {
	if p == nil || strings.TrimSpace(*p) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*p), Valid: true}
}

func parseDate(p *string) (sql.NullTime, error) {
	if p == nil || *p == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(dateLayout, *p)
	if err != nil {
		return sql.NullTime{}, apperr.ErrInvalid("invalid publication_date format, expected YYYY-MM-DD")
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" || author == "" {
		return BookResponse{}, apperr.ErrInvalid("title and author are required")
	}
	if in.TotalCopies < 0 {
		return BookResponse{}, apperr.ErrInvalid("total_copies must be >= 0")
	}
	available := in.TotalCopies
	if in.CopiesAvailable != nil {
		available = *in.CopiesAvailable
	}
	if available < 0 || available > in.TotalCopies {
		return BookResponse{}, apperr.ErrInvalid("copies_available must be between 0 and total_copies")
	}
	overdue := s.defaultOverdueDays
	if in.OverdueDays != nil {
		overdue = *in.OverdueDays
	}
	if overdue < 1 {
		return BookResponse{}, apperr.ErrInvalid("overdue_days must be >= 1")
	}
	pub, err := parseDate(in.PublicationDate)
	if err != nil {
		return BookResponse{}, err
	}

	now := s.timestamp()
	b := &Book{
		Title:           title,
		Author:          author,
		Genre:           NormalizeGenre(in.Genre),
		Description:     nullString(in.Description),
		PublicationDate: pub,
		TotalCopies:     in.TotalCopies,
		CopiesAvailable: available,
		OverdueDays:     overdue,
		ImageURL:        nullString(in.ImageURL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := insertBookTx(ctx, tx, b); err != nil {
			return err
		}
		return insertEventTx(ctx, tx, b.ID, b.Title, EventAdded, now)
	})
	if err != nil {
		return BookResponse{}, err
	}
	s.log.Info("book added", zap.Int64("book_id", b.ID), zap.String("title", b.Title))
	return buildBookResponse(b), nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (BookResponse, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return BookResponse{}, err
	}
	return buildBookResponse(b), nil
}

func (s *Service) ListBooks(ctx context.Context, p paging.Page, q BookQuery) (paging.List[BookResponse], error) {
	q.Q = foldQuery(q.Q)
	if q.Genre != "" {
		q.Genre = NormalizeGenre(q.Genre)
	}
	rows, total, err := s.store.List(ctx, p, q)
	if err != nil {
		return paging.List[BookResponse]{}, err
	}
	items := make([]BookResponse, 0, len(rows))
	for _, b := range rows {
		items = append(items, buildBookResponse(b))
	}
	return paging.NewList(items, total, p), nil
}

func (s *Service) UpdateBook(ctx context.Context, id int64, in UpdateBookRequest) (BookResponse, error) {
	var out *Book
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := getBookTx(ctx, tx, id, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		if err := applyUpdate(b, in); err != nil {
			return err
		}
		b.UpdatedAt = s.timestamp()
		if err := updateBookTx(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return insertEventTx(ctx, tx, b.ID, b.Title, EventUpdated, b.UpdatedAt)
	})
	if err != nil {
		return BookResponse{}, err
	}
	return buildBookResponse(out), nil
}

// applyUpdate: total_copies の差分だけ copies_available をずらす。
// 貸出中の冊数を下回る減らし方は CONFLICT。
func applyUpdate(b *Book, in UpdateBookRequest) error {
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return apperr.ErrInvalid("title must not be empty")
		}
		b.Title = strings.TrimSpace(*in.Title)
	}
	if in.Author != nil {
		if strings.TrimSpace(*in.Author) == "" {
			return apperr.ErrInvalid("author must not be empty")
		}
		b.Author = strings.TrimSpace(*in.Author)
	}
	if in.Genre != nil {
		b.Genre = NormalizeGenre(*in.Genre)
	}
	if in.Description != nil {
		b.Description = nullString(in.Description)
	}
	if in.PublicationDate != nil {
		pub, err := parseDate(in.PublicationDate)
		if err != nil {
			return err
		}
		b.PublicationDate = pub
	}
	if in.OverdueDays != nil {
		if *in.OverdueDays < 1 {
			return apperr.ErrInvalid("overdue_days must be >= 1")
		}
		b.OverdueDays = *in.OverdueDays
	}
	if in.ImageURL != nil {
		b.ImageURL = nullString(in.ImageURL)
	}
	if in.TotalCopies != nil {
		total := *in.TotalCopies
		if total < 0 {
			return apperr.ErrInvalid("total_copies must be >= 0")
		}
		available := b.CopiesAvailable + (total - b.TotalCopies)
		if available < 0 {
			onLoan := b.TotalCopies - b.CopiesAvailable
			return apperr.ErrConflict(fmt.Sprintf("total_copies cannot go below the %d copies on loan", onLoan))
		}
		b.TotalCopies = total
		b.CopiesAvailable = available
	}
	return nil
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := getBookTx(ctx, tx, id, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		borrows, requests, err := countOpenLoansTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if borrows > 0 || requests > 0 {
			return apperr.ErrConflict("book has unreturned borrows or pending requests")
		}
		if err := deleteBookTx(ctx, tx, id); err != nil {
			return err
		}
		return insertEventTx(ctx, tx, id, b.Title, EventRemoved, s.timestamp())
	})
	if err != nil {
		return err
	}
	s.log.Info("book removed", zap.Int64("book_id", id))
	return nil
}
