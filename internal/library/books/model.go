package books

import (
	"database/sql"
	"time"
)

const (
	EventAdded   = "added"
	EventUpdated = "updated"
	EventRemoved = "removed"
)

// Book は books テーブルの1行を表す
type Book struct {
	ID              int64
	Title           string
	Author          string
	Genre           string
	Description     sql.NullString
	PublicationDate sql.NullTime
	TotalCopies     int
	CopiesAvailable int
	OverdueDays     int
	ImageURL        sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// 一覧の検索条件
type BookQuery struct {
	Q     string // title / author の部分一致（大文字小文字無視）
	Genre string
}
