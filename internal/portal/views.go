package portal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"LIBRIS-backend/internal/lifecycle"
)

// Notifier は一時的な通知（トースト相当）を受け取る
type Notifier func(msg string)

// view は各画面共通の部分。
// 変更操作は1つずつしか走らせず、成功したら一覧を取り直す（手元の状態は書き換えない）。
type view struct {
	c      *Client
	notify Notifier
	now    func() time.Time
	busy   atomic.Bool
}

func newView(c *Client, n Notifier) view {
	if n == nil {
		n = func(string) {}
	}
	return view{c: c, notify: n, now: time.Now}
}

func (v *view) Busy() bool { return v.busy.Load() }

// mutate: 失敗時は通知だけ出して再試行しない
func (v *view) mutate(ctx context.Context, call func(context.Context) (string, error), reload func(context.Context) error) error {
	if !v.busy.CompareAndSwap(false, true) {
		v.notify(Notice(ErrBusy))
		return ErrBusy
	}
	defer v.busy.Store(false)

	msg, err := call(ctx)
	if err != nil {
		v.notify(Notice(err))
		return err
	}
	if msg != "" {
		v.notify(msg)
	}
	if err := reload(ctx); err != nil {
		v.notify(Notice(err))
		return err
	}
	return nil
}

func (v *view) reject(err error) error {
	v.notify(Notice(err))
	return err
}

// ===== 会員: 本の貸出申請 =====

type BookRequestView struct {
	view
	BookID       int64
	HasRequested bool
}

func NewBookRequestView(c *Client, bookID int64, n Notifier) *BookRequestView {
	return &BookRequestView{view: newView(c, n), BookID: bookID}
}

func (v *BookRequestView) Load(ctx context.Context) error {
	has, err := v.c.CheckRequest(ctx, v.BookID)
	if err != nil {
		return err
	}
	v.HasRequested = has
	return nil
}

func (v *BookRequestView) CanSubmit() bool { return !v.HasRequested && !v.Busy() }

// Submit は申請済みなら何もしない
func (v *BookRequestView) Submit(ctx context.Context) error {
	if v.HasRequested {
		return nil
	}
	return v.mutate(ctx, func(ctx context.Context) (string, error) {
		return v.c.SubmitRequest(ctx, v.BookID)
	}, v.Load)
}

// ===== 司書: 申請キュー =====

type RequestQueueView struct {
	view
	Items []Request
	Total int64
}

func NewRequestQueueView(c *Client, n Notifier) *RequestQueueView {
	return &RequestQueueView{view: newView(c, n)}
}

func (v *RequestQueueView) Load(ctx context.Context) error {
	list, err := v.c.PendingRequests(ctx)
	if err != nil {
		return err
	}
	v.Items, v.Total = list.Items, list.Total
	return nil
}

func (v *RequestQueueView) CanSubmitReject(reason string) bool {
	return lifecycle.ValidateRejectReason(reason) == nil && !v.Busy()
}

func (v *RequestQueueView) Approve(ctx context.Context, requestID int64) error {
	return v.mutate(ctx, func(ctx context.Context) (string, error) {
		return v.c.Approve(ctx, requestID)
	}, v.Load)
}

// Reject: 理由が空ならサーバに送らない
func (v *RequestQueueView) Reject(ctx context.Context, requestID int64, reason string) error {
	if err := lifecycle.ValidateRejectReason(reason); err != nil {
		return v.reject(err)
	}
	return v.mutate(ctx, func(ctx context.Context) (string, error) {
		return v.c.Reject(ctx, requestID, reason)
	}, v.Load)
}

// ===== 会員: 未返却の本 =====

type ReturnsView struct {
	view
	Items []Borrow
}

func NewReturnsView(c *Client, n Notifier) *ReturnsView {
	return &ReturnsView{view: newView(c, n)}
}

func (v *ReturnsView) Load(ctx context.Context) error {
	list, err := v.c.NotReturned(ctx)
	if err != nil {
		return err
	}
	v.Items = list.Items
	return nil
}

// Action は返却ボタンの表示。return_requested が立っていれば押せない。
func (v *ReturnsView) Action(b Borrow) (label string, disabled bool) {
	return lifecycle.ReturnActionLabel(b.ReturnRequested), !b.CanRequestReturn() || v.Busy()
}

func (v *ReturnsView) RequestReturn(ctx context.Context, borrowID int64) error {
	b, ok := findBorrow(v.Items, borrowID)
	if !ok || !b.CanRequestReturn() {
		return v.reject(ErrNotAllowed)
	}
	return v.mutate(ctx, func(ctx context.Context) (string, error) {
		return v.c.RequestReturn(ctx, borrowID)
	}, v.Load)
}

// ===== 司書: 返却確認 =====

type ReturnAckView struct {
	view
	Items []Borrow
}

func NewReturnAckView(c *Client, n Notifier) *ReturnAckView {
	return &ReturnAckView{view: newView(c, n)}
}

func (v *ReturnAckView) Load(ctx context.Context) error {
	list, err := v.c.ReturnPending(ctx)
	if err != nil {
		return err
	}
	v.Items = list.Items
	return nil
}

// Acknowledge は読み込み済みの返却待ちキューにある記録だけ受け付ける
func (v *ReturnAckView) Acknowledge(ctx context.Context, borrowID int64) error {
	b, ok := findBorrow(v.Items, borrowID)
	if !ok || !b.CanAcknowledge() {
		return v.reject(ErrNotAllowed)
	}
	return v.mutate(ctx, func(ctx context.Context) (string, error) {
		return v.c.AcknowledgeReturn(ctx, borrowID)
	}, v.Load)
}

func findBorrow(items []Borrow, id int64) (Borrow, bool) {
	for _, b := range items {
		if b.BorrowID == id {
			return b, true
		}
	}
	return Borrow{}, false
}

// ===== 延滞一覧（司書・会員） =====

type OverdueRow struct {
	BorrowID       int64
	Member         string
	Title          string
	BorrowedAt     time.Time
	ExpectedReturn time.Time
	DaysOverdue    int
	Overdue        string
	Penalty        decimal.Decimal
}

// OverdueView: Staff なら全員分、会員なら自分の分（範囲はサーバが決める）。
// 延滞金はサーバの penalty をそのまま表示する（料率は lending.penalty_per_day）。
type OverdueView struct {
	view
	Staff bool
	Items []Borrow
}

func NewOverdueView(c *Client, staff bool, n Notifier) *OverdueView {
	return &OverdueView{view: newView(c, n), Staff: staff}
}

func (v *OverdueView) Load(ctx context.Context) error {
	list, err := v.c.Overdue(ctx)
	if err != nil {
		return err
	}
	v.Items = list.Items
	return nil
}

func (v *OverdueView) Rows() []OverdueRow {
	rows := make([]OverdueRow, 0, len(v.Items))
	for _, b := range v.Items {
		row := OverdueRow{
			BorrowID:       b.BorrowID,
			Title:          b.Book.Label(),
			BorrowedAt:     b.BorrowedAt,
			ExpectedReturn: b.ExpectedReturn,
			DaysOverdue:    b.DaysOverdue,
			Overdue:        lifecycle.OverdueText(b.DaysOverdue),
			Penalty:        b.Penalty,
		}
		if v.Staff {
			row.Member = b.User.Label()
		}
		rows = append(rows, row)
	}
	return rows
}

// ===== 会員: 申請状況 =====

type StatusRow struct {
	RequestID int64
	Title     string
	Status    string
	Reason    string
	Requested string
}

type StatusView struct {
	view
	Items []Request
}

func NewStatusView(c *Client, n Notifier) *StatusView {
	return &StatusView{view: newView(c, n)}
}

func (v *StatusView) Load(ctx context.Context) error {
	list, err := v.c.MyRequests(ctx)
	if err != nil {
		return err
	}
	v.Items = list.Items
	return nil
}

func (v *StatusView) Rows() []StatusRow {
	now := v.now()
	rows := make([]StatusRow, 0, len(v.Items))
	for _, r := range v.Items {
		rows = append(rows, StatusRow{
			RequestID: r.ID,
			Title:     r.Book.Label(),
			Status:    r.Status,
			Reason:    lifecycle.ReasonText(lifecycle.RequestStatus(r.Status), r.Reason()),
			Requested: lifecycle.DaysAgo(r.RequestedAt, now),
		})
	}
	return rows
}

// ===== 貸出履歴 =====

type HistoryRow struct {
	BorrowID int64
	Title    string
	Member   string
	Borrowed string
	State    string
	Returned string
}

type HistoryView struct {
	view
	Items []Borrow
}

func NewHistoryView(c *Client, n Notifier) *HistoryView {
	return &HistoryView{view: newView(c, n)}
}

func (v *HistoryView) Load(ctx context.Context) error {
	list, err := v.c.History(ctx)
	if err != nil {
		return err
	}
	v.Items = list.Items
	return nil
}

func (v *HistoryView) Rows() []HistoryRow {
	now := v.now()
	rows := make([]HistoryRow, 0, len(v.Items))
	for _, b := range v.Items {
		row := HistoryRow{
			BorrowID: b.BorrowID,
			Title:    b.Book.Label(),
			Member:   b.User.Label(),
			Borrowed: lifecycle.DaysAgo(b.BorrowedAt, now),
			State:    b.State,
			Returned: "-",
		}
		if b.ReturnedAt != nil {
			row.Returned = lifecycle.DaysAgoLower(*b.ReturnedAt, now)
		}
		rows = append(rows, row)
	}
	return rows
}
