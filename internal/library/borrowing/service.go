package borrowing

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/lifecycle"
	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/metrics"
	"LIBRIS-backend/internal/platform/paging"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

const (
	entityRequest = "borrow_request"
	entityBorrow  = "borrow"
)

// ===== Service本体 =====

type Service struct {
	conn    *db.Conn
	store   *Store
	clock   Clock
	id      IDGen
	metrics *metrics.Metrics
	log     *zap.Logger
	rate    decimal.Decimal
}

func NewService(conn *db.Conn, lending config.LendingConfig, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		conn:    conn,
		store:   NewStore(conn),
		clock:   realClock{},
		id:      ulidGen{},
		metrics: m,
		log:     log,
		rate:    lending.PenaltyRate(),
	}
}

// DB に入れる時刻は秒で丸めた UTC に揃える
func (s *Service) now() time.Time { return s.clock.Now().UTC().Truncate(time.Second) }

func (s *Service) borrowResponses(rows []*Borrow) []BorrowResponse {
	now := s.now()
	items := make([]BorrowResponse, 0, len(rows))
	for _, b := range rows {
		items = append(items, buildBorrowResponse(b, now, s.rate))
	}
	return items
}

func requestResponses(rows []*Request) []RequestResponse {
	items := make([]RequestResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, buildRequestResponse(r))
	}
	return items
}

// ---------- 貸出申請 ----------

// 貸出申請（会員）。在庫は承認時に確認する。
func (s *Service) SubmitRequest(ctx context.Context, userID, bookID int64) (*RequestResult, error) {
	if bookID <= 0 {
		return nil, apperr.ErrInvalid("book_id must be > 0")
	}
	ulidStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	req := &Request{
		ULID:        ulidStr,
		BookID:      bookID,
		UserID:      userID,
		Status:      string(lifecycle.StatusPending),
		RequestedAt: s.now(),
	}
	err = db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		// 同じ本への同時申請を直列化するため本の行をロック
		if _, err := lockBookTx(ctx, tx, bookID, s.conn.ForUpdate()); err != nil {
			return err
		}
		open, err := hasOpenTx(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		if open {
			return apperr.ErrConflict("you have already requested or borrowed this book")
		}
		return insertRequestTx(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(entityRequest, "submit")
	s.log.Info("borrow requested", zap.Int64("request_id", req.ID), zap.Int64("book_id", bookID), zap.Int64("user_id", userID))

	out, err := s.store.GetRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &RequestResult{Message: "Borrow request submitted", Request: buildRequestResponse(out)}, nil
}

func (s *Service) HasRequested(ctx context.Context, userID, bookID int64) (CheckResponse, error) {
	open, err := s.store.HasOpen(ctx, userID, bookID)
	if err != nil {
		return CheckResponse{}, err
	}
	return CheckResponse{HasRequested: open}, nil
}

// 承認待ちキュー（既定は古い順）
func (s *Service) PendingRequests(ctx context.Context, p paging.Page) (paging.List[RequestResponse], error) {
	rows, total, err := s.store.ListRequests(ctx, 0, lifecycle.StatusPending, p)
	if err != nil {
		return paging.List[RequestResponse]{}, err
	}
	return paging.NewList(requestResponses(rows), total, p), nil
}

// 会員自身の申請（既定は新しい順）
func (s *Service) MemberRequests(ctx context.Context, userID int64, p paging.Page) (paging.List[RequestResponse], error) {
	rows, total, err := s.store.ListRequests(ctx, userID, "", p)
	if err != nil {
		return paging.List[RequestResponse]{}, err
	}
	return paging.NewList(requestResponses(rows), total, p), nil
}

// Approve: 申請を承認して貸出を作成、在庫を1減らす。
// 承認済みへの再承認は何もせず成功扱い。
func (s *Service) Approve(ctx context.Context, staffID, requestID int64) (*RequestResult, error) {
	if requestID <= 0 {
		return nil, apperr.ErrInvalid("request_id must be > 0")
	}
	borrowULID, err := s.id.New()
	if err != nil {
		return nil, err
	}

	now := s.now()
	changed := false
	var borrowID int64
	err = db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		req, err := lockRequestTx(ctx, tx, requestID, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		next, err := lifecycle.NextRequestStatus(lifecycle.RequestStatus(req.Status), lifecycle.Approve)
		if err != nil {
			if req.Status == string(lifecycle.StatusApproved) {
				return nil
			}
			return apperr.ErrConflict("request has already been " + req.Status)
		}

		book, err := lockBookTx(ctx, tx, req.BookID, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		if book.CopiesAvailable < 1 {
			return apperr.ErrConflict("no copies available")
		}

		if err := resolveRequestTx(ctx, tx, req.ID, next, staffID, sql.NullString{}, now); err != nil {
			return err
		}
		b := &Borrow{
			ULID:           borrowULID,
			RequestID:      sql.NullInt64{Int64: req.ID, Valid: true},
			BookID:         req.BookID,
			UserID:         req.UserID,
			BorrowedAt:     now,
			ExpectedReturn: lifecycle.ExpectedReturn(now, book.OverdueDays),
		}
		if err := insertBorrowTx(ctx, tx, b); err != nil {
			if db.IsDuplicate(err) {
				return apperr.ErrConflict("request already has a borrow")
			}
			return err
		}
		if err := decrementStockTx(ctx, tx, req.BookID); err != nil {
			return err
		}
		borrowID = b.ID
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := "Request already approved"
	if changed {
		msg = "Request approved"
		s.metrics.Transition(entityRequest, string(lifecycle.Approve))
		s.log.Info("borrow request approved",
			zap.Int64("request_id", requestID), zap.Int64("borrow_id", borrowID), zap.Int64("staff_id", staffID))
	}
	out, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &RequestResult{Message: msg, Request: buildRequestResponse(out)}, nil
}

// Reject: 理由は必須。却下済みへの再却下は何もしない。
func (s *Service) Reject(ctx context.Context, staffID, requestID int64, reason string) (*RequestResult, error) {
	if requestID <= 0 {
		return nil, apperr.ErrInvalid("request_id must be > 0")
	}
	if err := lifecycle.ValidateRejectReason(reason); err != nil {
		return nil, apperr.ErrInvalid("reason is required")
	}
	reason = strings.TrimSpace(reason)

	changed := false
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		req, err := lockRequestTx(ctx, tx, requestID, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		next, err := lifecycle.NextRequestStatus(lifecycle.RequestStatus(req.Status), lifecycle.Reject)
		if err != nil {
			if req.Status == string(lifecycle.StatusRejected) {
				return nil
			}
			return apperr.ErrConflict("request has already been " + req.Status)
		}
		if err := resolveRequestTx(ctx, tx, req.ID, next, staffID, sql.NullString{String: reason, Valid: true}, s.now()); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := "Request already rejected"
	if changed {
		msg = "Request rejected"
		s.metrics.Transition(entityRequest, string(lifecycle.Reject))
		s.log.Info("borrow request rejected", zap.Int64("request_id", requestID), zap.Int64("staff_id", staffID))
	}
	out, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &RequestResult{Message: msg, Request: buildRequestResponse(out)}, nil
}

// ---------- 返却 ----------

// RequestReturn: 会員本人の貸出のみ。他人の貸出は存在しない扱い。
func (s *Service) RequestReturn(ctx context.Context, userID, borrowID int64) (*BorrowResult, error) {
	if borrowID <= 0 {
		return nil, apperr.ErrInvalid("borrow_id must be > 0")
	}
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := lockBorrowTx(ctx, tx, borrowID, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return apperr.ErrNotFound("borrow not found")
		}
		from := lifecycle.StateOf(b.ReturnRequested, b.returnedAt())
		if _, err := lifecycle.NextBorrowState(from, lifecycle.RequestReturn); err != nil {
			if from == lifecycle.StateReturned {
				return apperr.ErrConflict("book has already been returned")
			}
			return apperr.ErrConflict("return has already been requested")
		}
		return markReturnRequestedTx(ctx, tx, b.ID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(entityBorrow, string(lifecycle.RequestReturn))
	s.log.Info("return requested", zap.Int64("borrow_id", borrowID), zap.Int64("user_id", userID))
	return s.borrowResult(ctx, borrowID, "Return requested")
}

// 旧形式: 本のIDから会員の未返却貸出を引いて返却申請
func (s *Service) RequestReturnByBook(ctx context.Context, userID, bookID int64) (*BorrowResult, error) {
	if bookID <= 0 {
		return nil, apperr.ErrInvalid("book_id must be > 0")
	}
	id, err := s.store.FindOpenBorrowID(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	return s.RequestReturn(ctx, userID, id)
}

// AcknowledgeReturn: 返却待ちの貸出だけ確定できる。在庫を1戻す（total_copies が上限）。
func (s *Service) AcknowledgeReturn(ctx context.Context, staffID, borrowID int64) (*BorrowResult, error) {
	if borrowID <= 0 {
		return nil, apperr.ErrInvalid("borrow_id must be > 0")
	}
	restocked := true
	var bookID int64
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := lockBorrowTx(ctx, tx, borrowID, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		bookID = b.BookID
		from := lifecycle.StateOf(b.ReturnRequested, b.returnedAt())
		if _, err := lifecycle.NextBorrowState(from, lifecycle.AcknowledgeBack); err != nil {
			return apperr.ErrConflict("borrow is not awaiting return")
		}
		if err := markReturnedTx(ctx, tx, b.ID, staffID, s.now()); err != nil {
			return err
		}
		restocked, err = incrementStockTx(ctx, tx, b.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !restocked {
		// 本が削除済み、または total_copies が減らされていた
		s.log.Warn("returned copy not restocked", zap.Int64("borrow_id", borrowID), zap.Int64("book_id", bookID))
	}
	s.metrics.Transition(entityBorrow, string(lifecycle.AcknowledgeBack))
	s.log.Info("return acknowledged", zap.Int64("borrow_id", borrowID), zap.Int64("staff_id", staffID))
	return s.borrowResult(ctx, borrowID, "Return acknowledged")
}

func (s *Service) borrowResult(ctx context.Context, borrowID int64, msg string) (*BorrowResult, error) {
	b, err := s.store.GetBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	return &BorrowResult{Message: msg, Borrow: buildBorrowResponse(b, s.now(), s.rate)}, nil
}

// ---------- 一覧 ----------

// scope: 司書・管理者は全員分、会員は自分の分
func scope(p auth.Principal) int64 {
	if p.IsStaff() {
		return 0
	}
	return p.UserID
}

func (s *Service) listBorrows(ctx context.Context, f BorrowFilter, sortCol string, p paging.Page) (paging.List[BorrowResponse], error) {
	rows, total, err := s.store.ListBorrows(ctx, f, sortCol, p)
	if err != nil {
		return paging.List[BorrowResponse]{}, err
	}
	return paging.NewList(s.borrowResponses(rows), total, p), nil
}

// Overdue: 期限日の翌日以降も未返却のもの
func (s *Service) Overdue(ctx context.Context, who auth.Principal, p paging.Page) (paging.List[BorrowResponse], error) {
	n := s.now()
	startOfToday := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	f := BorrowFilter{UserID: scope(who), OnlyOpen: true, DueBefore: &startOfToday}
	return s.listBorrows(ctx, f, "b.expected_return", p)
}

// 会員の未返却（返却申請中を含む）
func (s *Service) NotReturned(ctx context.Context, userID int64, p paging.Page) (paging.List[BorrowResponse], error) {
	return s.listBorrows(ctx, BorrowFilter{UserID: userID, OnlyOpen: true}, "b.borrowed_at", p)
}

func (s *Service) ReturnPending(ctx context.Context, who auth.Principal, p paging.Page) (paging.List[BorrowResponse], error) {
	requested := true
	f := BorrowFilter{UserID: scope(who), OnlyOpen: true, ReturnRequested: &requested}
	return s.listBorrows(ctx, f, "b.return_requested_at", p)
}

func (s *Service) History(ctx context.Context, who auth.Principal, p paging.Page) (paging.List[BorrowResponse], error) {
	return s.listBorrows(ctx, BorrowFilter{UserID: scope(who)}, "b.borrowed_at", p)
}
