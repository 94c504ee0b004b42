package dashboard

import "time"

// 司書ダッシュボード。book 系は冊数（copies）で数える。
type LibStats struct {
	TotalBooks         int64 `json:"total_books"`
	AvailableBooks     int64 `json:"available_books"`
	TotalMembers       int64 `json:"total_members"`
	TotalLibrarians    int64 `json:"total_librarians"`
	PendingBorrowCount int64 `json:"pending_borrow_count"`
	PendingReturnCount int64 `json:"pending_return_count"`
}

type AdminDashboard struct {
	NumBooks             int64 `json:"num_books"`
	TotalCopies          int64 `json:"total_copies"`
	TotalCopiesAvailable int64 `json:"total_copies_available"`
	NumMembers           int64 `json:"num_members"`
	NumLibrarians        int64 `json:"num_librarians"`
	ActiveBorrows        int64 `json:"active_borrows"`
	OverdueBorrows       int64 `json:"overdue_borrows"`
}

type RecentBorrow struct {
	BorrowID   int64     `json:"borrow_id"`
	Title      string    `json:"title,omitempty"`
	BorrowedAt time.Time `json:"borrowed_at"`
	State      string    `json:"state"`
}

type MemberOverview struct {
	BorrowedCount   int64          `json:"borrowed_count"`
	PendingRequests int64          `json:"pending_requests"`
	OverdueCount    int64          `json:"overdue_count"`
	ReturnedCount   int64          `json:"returned_count"`
	RecentBorrows   []RecentBorrow `json:"recent_borrows"`
}

const (
	KindNew     = "new"
	KindUpdated = "updated"
	KindRemoved = "removed"
	KindDueSoon = "due_soon"
	KindPopular = "popular"
)

type Notification struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	BookID    int64     `json:"book_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifications struct {
	Notifications []Notification `json:"notifications"`
}
