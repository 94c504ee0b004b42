package borrowing

import (
	"time"

	"github.com/shopspring/decimal"

	"LIBRIS-backend/internal/lifecycle"
)

// ===== Requests =====

type SubmitRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
}

type ApproveRequest struct {
	RequestID int64 `json:"request_id" binding:"required"`
}

type RejectRequest struct {
	RequestID int64  `json:"request_id" binding:"required"`
	Reason    string `json:"reason"`
}

type BorrowIDRequest struct {
	BorrowID int64 `json:"borrow_id" binding:"required"`
}

// 旧フロント互換: 本のIDで返却申請
type ReturnByBookRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
}

// ===== Responses =====

// 参照先が削除済みのときは id 以外が空になる（表示側で "Unknown" にする）
type BookRef struct {
	ID     int64  `json:"id"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type RequestResponse struct {
	ID              int64      `json:"id"`
	RequestULID     string     `json:"request_ulid"`
	Status          string     `json:"status"`
	RequestedAt     time.Time  `json:"requested_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason"`
	Book            BookRef    `json:"book"`
	User            UserRef    `json:"user"`
}

type BorrowResponse struct {
	BorrowID          int64           `json:"borrow_id"`
	BorrowULID        string          `json:"borrow_ulid"`
	RequestID         *int64          `json:"request_id,omitempty"`
	Book              BookRef         `json:"book"`
	User              UserRef         `json:"user"`
	BorrowedAt        time.Time       `json:"borrowed_at"`
	ExpectedReturn    time.Time       `json:"expected_return"`
	ReturnRequested   bool            `json:"return_requested"`
	ReturnRequestedAt *time.Time      `json:"return_requested_at,omitempty"`
	ReturnedAt        *time.Time      `json:"returned_at"`
	State             string          `json:"state"`
	DaysOverdue       int             `json:"days_overdue"`
	Penalty           decimal.Decimal `json:"penalty"`
}

type RequestResult struct {
	Message string          `json:"message"`
	Request RequestResponse `json:"request"`
}

type BorrowResult struct {
	Message string         `json:"message"`
	Borrow  BorrowResponse `json:"borrow"`
}

type CheckResponse struct {
	HasRequested bool `json:"hasRequested"`
}

func buildRequestResponse(r *Request) RequestResponse {
	resp := RequestResponse{
		ID:          r.ID,
		RequestULID: r.ULID,
		Status:      r.Status,
		RequestedAt: r.RequestedAt,
		Book:        BookRef{ID: r.BookID, Title: r.BookTitle.String, Author: r.BookAuthor.String},
		User:        UserRef{ID: r.UserID, Name: r.UserName.String, Email: r.UserEmail.String},
	}
	if r.ResolvedAt.Valid {
		val := r.ResolvedAt.Time
		resp.ResolvedAt = &val
	}
	if r.RejectionReason.Valid {
		val := r.RejectionReason.String
		resp.RejectionReason = &val
	}
	return resp
}

// buildBorrowResponse: 延滞日数はサーバ側で expected_return から算出する。
// 返却済みは返却時点で確定した値。
func buildBorrowResponse(b *Borrow, now time.Time, rate decimal.Decimal) BorrowResponse {
	resp := BorrowResponse{
		BorrowID:        b.ID,
		BorrowULID:      b.ULID,
		Book:            BookRef{ID: b.BookID, Title: b.BookTitle.String, Author: b.BookAuthor.String},
		User:            UserRef{ID: b.UserID, Name: b.UserName.String, Email: b.UserEmail.String},
		BorrowedAt:      b.BorrowedAt,
		ExpectedReturn:  b.ExpectedReturn,
		ReturnRequested: b.ReturnRequested,
		ReturnedAt:      b.returnedAt(),
		State:           string(lifecycle.StateOf(b.ReturnRequested, b.returnedAt())),
	}
	if b.RequestID.Valid {
		val := b.RequestID.Int64
		resp.RequestID = &val
	}
	if b.ReturnRequestedAt.Valid {
		val := b.ReturnRequestedAt.Time
		resp.ReturnRequestedAt = &val
	}

	until := now
	if b.ReturnedAt.Valid {
		until = b.ReturnedAt.Time
	}
	resp.DaysOverdue = lifecycle.DaysOverdue(b.ExpectedReturn, until)
	resp.Penalty = lifecycle.Penalty(resp.DaysOverdue, rate)
	return resp
}
