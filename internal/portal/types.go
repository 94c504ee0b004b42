package portal

import (
	"time"

	"github.com/shopspring/decimal"

	"LIBRIS-backend/internal/lifecycle"
)

// 削除済みの本・利用者は名前が空で返ってくる
const unknown = "Unknown"

type BookRef struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

func (b BookRef) Label() string {
	if b.Title == "" {
		return unknown
	}
	return b.Title
}

type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u UserRef) Label() string {
	if u.Name == "" {
		return unknown
	}
	return u.Name
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Genre           string `json:"genre"`
	TotalCopies     int    `json:"total_copies"`
	CopiesAvailable int    `json:"copies_available"`
	OverdueDays     int    `json:"overdue_days"`
}

type Request struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	RequestedAt     time.Time  `json:"requested_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	RejectionReason *string    `json:"rejection_reason"`
	Book            BookRef    `json:"book"`
	User            UserRef    `json:"user"`
}

func (r Request) Reason() string {
	if r.RejectionReason == nil {
		return ""
	}
	return *r.RejectionReason
}

// Borrow: days_overdue と penalty はサーバの値をそのまま使う（borrowed_at から再計算しない）
type Borrow struct {
	BorrowID        int64           `json:"borrow_id"`
	Book            BookRef         `json:"book"`
	User            UserRef         `json:"user"`
	BorrowedAt      time.Time       `json:"borrowed_at"`
	ExpectedReturn  time.Time       `json:"expected_return"`
	ReturnRequested bool            `json:"return_requested"`
	ReturnedAt      *time.Time      `json:"returned_at"`
	State           string          `json:"state"`
	DaysOverdue     int             `json:"days_overdue"`
	Penalty         decimal.Decimal `json:"penalty"`
}

func (b Borrow) CanRequestReturn() bool {
	return lifecycle.CanRequestReturn(b.ReturnRequested, b.ReturnedAt)
}

func (b Borrow) CanAcknowledge() bool {
	return lifecycle.CanAcknowledge(b.ReturnRequested, b.ReturnedAt)
}
