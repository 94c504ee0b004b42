package borrowing

import (
	"database/sql"
	"time"
)

// Request は borrow_requests テーブルの1行（+ 表示用に books / users を LEFT JOIN）
type Request struct {
	ID              int64
	ULID            string
	BookID          int64
	UserID          int64
	Status          string
	RequestedAt     time.Time
	ResolvedAt      sql.NullTime
	ResolvedBy      sql.NullInt64
	RejectionReason sql.NullString

	BookTitle  sql.NullString
	BookAuthor sql.NullString
	UserName   sql.NullString
	UserEmail  sql.NullString
}

// Borrow は borrows テーブルの1行
type Borrow struct {
	ID                int64
	ULID              string
	RequestID         sql.NullInt64
	BookID            int64
	UserID            int64
	BorrowedAt        time.Time
	ExpectedReturn    time.Time
	ReturnRequested   bool
	ReturnRequestedAt sql.NullTime
	ReturnedAt        sql.NullTime
	AcknowledgedBy    sql.NullInt64

	BookTitle  sql.NullString
	BookAuthor sql.NullString
	UserName   sql.NullString
	UserEmail  sql.NullString
}

func (b *Borrow) returnedAt() *time.Time {
	if !b.ReturnedAt.Valid {
		return nil
	}
	t := b.ReturnedAt.Time
	return &t
}

// 一覧系の絞り込み。UserID=0 なら全員分（司書・管理者向け）
type BorrowFilter struct {
	UserID          int64
	OnlyOpen        bool
	ReturnRequested *bool
	// expected_return がこの時刻より前のもの
	DueBefore *time.Time
}
