package borrowing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/lifecycle"
	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/db/dbtest"
	"LIBRIS-backend/internal/platform/metrics"
	"LIBRIS-backend/internal/platform/paging"
)

func init() { gin.SetMode(gin.TestMode) }

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type seqID struct{ n int }

func (g *seqID) New() (string, error) {
	g.n++
	return fmt.Sprintf("%026d", g.n), nil
}

type fixture struct {
	svc     *Service
	conn    *db.Conn
	clock   *fixedClock
	metrics *metrics.Metrics

	member, other, librarian int64
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	m := metrics.New()
	lending := config.Default().Lending
	svc := NewService(conn, lending, m, zap.NewNop())
	clock := &fixedClock{t: t0}
	svc.clock = clock
	svc.id = &seqID{}

	f := &fixture{svc: svc, conn: conn, clock: clock, metrics: m}
	f.member = f.addUser(t, "Mina", auth.RoleMember)
	f.other = f.addUser(t, "Omar", auth.RoleMember)
	f.librarian = f.addUser(t, "Lia", auth.RoleLibrarian)
	return f
}

func (f *fixture) addUser(t *testing.T, name, role string) int64 {
	t.Helper()
	res, err := f.conn.Exec(`INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, 'x', ?, ?)`,
		name, strings.ToLower(name)+"@example.com", role, t0)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (f *fixture) addBook(t *testing.T, id int64, title string, copies, overdueDays int) {
	t.Helper()
	_, err := f.conn.Exec(`INSERT INTO books (id, title, author, genre, total_copies, copies_available, overdue_days, created_at, updated_at)
		VALUES (?, ?, 'Author', 'Fiction', ?, ?, ?, ?, ?)`, id, title, copies, copies, overdueDays, t0, t0)
	require.NoError(t, err)
}

func (f *fixture) available(t *testing.T, bookID int64) int {
	t.Helper()
	var n int
	require.NoError(t, f.conn.QueryRow(`SELECT copies_available FROM books WHERE id = ?`, bookID).Scan(&n))
	return n
}

func statusOf(err error) int { return apperr.ToHTTPStatus(err) }

var page = paging.Page{Limit: 50}.Normalize()

func TestSubmitRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 7, "Dune", 1, 14)

	chk, err := f.svc.HasRequested(ctx, f.member, 7)
	require.NoError(t, err)
	assert.False(t, chk.HasRequested)

	res, err := f.svc.SubmitRequest(ctx, f.member, 7)
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Request.Status)
	assert.Equal(t, "Dune", res.Request.Book.Title)
	assert.Equal(t, "Mina", res.Request.User.Name)
	assert.Nil(t, res.Request.RejectionReason)

	chk, err = f.svc.HasRequested(ctx, f.member, 7)
	require.NoError(t, err)
	assert.True(t, chk.HasRequested)

	_, err = f.svc.SubmitRequest(ctx, f.member, 7)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	// 他の会員は別
	_, err = f.svc.SubmitRequest(ctx, f.other, 7)
	require.NoError(t, err)

	_, err = f.svc.SubmitRequest(ctx, f.member, 404)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.TransitionCounter("borrow_request", "submit")))
}

func TestApproveCreatesBorrowAndDecrementsStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 7, "Dune", 1, 10)

	sub, err := f.svc.SubmitRequest(ctx, f.member, 7)
	require.NoError(t, err)

	res, err := f.svc.Approve(ctx, f.librarian, sub.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, "Request approved", res.Message)
	assert.Equal(t, "approved", res.Request.Status)
	assert.Equal(t, 0, f.available(t, 7))

	// 冪等
	again, err := f.svc.Approve(ctx, f.librarian, sub.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, "Request already approved", again.Message)
	assert.Equal(t, 0, f.available(t, 7))

	borrows, err := f.svc.NotReturned(ctx, f.member, page)
	require.NoError(t, err)
	require.Len(t, borrows.Items, 1)
	b := borrows.Items[0]
	assert.True(t, t0.AddDate(0, 0, 10).Equal(b.ExpectedReturn), b.ExpectedReturn.String())
	assert.Equal(t, string(lifecycle.StateActive), b.State)
	require.NotNil(t, b.RequestID)
	assert.Equal(t, sub.Request.ID, *b.RequestID)

	// 承認後は待ちキューから消える
	queue, err := f.svc.PendingRequests(ctx, page)
	require.NoError(t, err)
	assert.Empty(t, queue.Items)

	// 承認済みは却下できない
	_, err = f.svc.Reject(ctx, f.librarian, sub.Request.ID, "too late")
	assert.Equal(t, http.StatusConflict, statusOf(err))

	// 貸出中は再申請できない
	_, err = f.svc.SubmitRequest(ctx, f.member, 7)
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestApproveWithoutCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 3, "Emma", 1, 14)

	a, err := f.svc.SubmitRequest(ctx, f.member, 3)
	require.NoError(t, err)
	b, err := f.svc.SubmitRequest(ctx, f.other, 3)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.librarian, a.Request.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.librarian, b.Request.ID)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, 0, f.available(t, 3))

	// 失敗した承認はロールバックされ pending のまま
	queue, err := f.svc.PendingRequests(ctx, page)
	require.NoError(t, err)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, b.Request.ID, queue.Items[0].ID)

	_, err = f.svc.Approve(ctx, f.librarian, 999)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 12, "Ulysses", 2, 14)

	sub, err := f.svc.SubmitRequest(ctx, f.member, 12)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, f.librarian, sub.Request.ID, "   ")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	res, err := f.svc.Reject(ctx, f.librarian, sub.Request.ID, " Damaged copy ")
	require.NoError(t, err)
	assert.Equal(t, "rejected", res.Request.Status)
	require.NotNil(t, res.Request.RejectionReason)
	assert.Equal(t, "Damaged copy", *res.Request.RejectionReason)

	again, err := f.svc.Reject(ctx, f.librarian, sub.Request.ID, "other")
	require.NoError(t, err)
	assert.Equal(t, "Request already rejected", again.Message)
	assert.Equal(t, "Damaged copy", *again.Request.RejectionReason)

	_, err = f.svc.Approve(ctx, f.librarian, sub.Request.ID)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, 2, f.available(t, 12))

	status, err := f.svc.MemberRequests(ctx, f.member, page)
	require.NoError(t, err)
	require.Len(t, status.Items, 1)
	assert.Equal(t, "Damaged copy", lifecycle.ReasonText(lifecycle.RequestStatus(status.Items[0].Status), *status.Items[0].RejectionReason))

	// 却下後は再申請できる
	chk, err := f.svc.HasRequested(ctx, f.member, 12)
	require.NoError(t, err)
	assert.False(t, chk.HasRequested)
}

func approvedBorrow(t *testing.T, f *fixture, userID, bookID int64) int64 {
	t.Helper()
	ctx := context.Background()
	sub, err := f.svc.SubmitRequest(ctx, userID, bookID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.librarian, sub.Request.ID)
	require.NoError(t, err)
	list, err := f.svc.NotReturned(ctx, userID, page)
	require.NoError(t, err)
	for _, b := range list.Items {
		if b.Book.ID == bookID {
			return b.BorrowID
		}
	}
	t.Fatalf("borrow for book %d not found", bookID)
	return 0
}

func TestReturnFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 42, "Beloved", 1, 14)
	borrowID := approvedBorrow(t, f, f.member, 42)
	librarian := auth.Principal{UserID: f.librarian, Role: auth.RoleLibrarian}

	// 本人以外は返却申請できない
	_, err := f.svc.RequestReturn(ctx, f.other, borrowID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	// 申請前は確定できない
	_, err = f.svc.AcknowledgeReturn(ctx, f.librarian, borrowID)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	f.clock.t = t0.Add(48 * time.Hour)
	res, err := f.svc.RequestReturn(ctx, f.member, borrowID)
	require.NoError(t, err)
	assert.True(t, res.Borrow.ReturnRequested)
	assert.Nil(t, res.Borrow.ReturnedAt)
	assert.Equal(t, string(lifecycle.StateReturnRequested), res.Borrow.State)

	_, err = f.svc.RequestReturn(ctx, f.member, borrowID)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	pending, err := f.svc.ReturnPending(ctx, librarian, page)
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, borrowID, pending.Items[0].BorrowID)

	mine, err := f.svc.ReturnPending(ctx, auth.Principal{UserID: f.other, Role: auth.RoleMember}, page)
	require.NoError(t, err)
	assert.Empty(t, mine.Items)

	ack, err := f.svc.AcknowledgeReturn(ctx, f.librarian, borrowID)
	require.NoError(t, err)
	require.NotNil(t, ack.Borrow.ReturnedAt)
	assert.Equal(t, string(lifecycle.StateReturned), ack.Borrow.State)
	assert.Equal(t, 1, f.available(t, 42))

	pending, err = f.svc.ReturnPending(ctx, librarian, page)
	require.NoError(t, err)
	assert.Empty(t, pending.Items)

	_, err = f.svc.AcknowledgeReturn(ctx, f.librarian, borrowID)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	_, err = f.svc.RequestReturn(ctx, f.member, borrowID)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	hist, err := f.svc.History(ctx, auth.Principal{UserID: f.member, Role: auth.RoleMember}, page)
	require.NoError(t, err)
	require.Len(t, hist.Items, 1)
	assert.NotNil(t, hist.Items[0].ReturnedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TransitionCounter("borrow", "return_ack")))
}

func TestRequestReturnByBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 5, "Middlemarch", 1, 14)

	_, err := f.svc.RequestReturnByBook(ctx, f.member, 5)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	borrowID := approvedBorrow(t, f, f.member, 5)
	res, err := f.svc.RequestReturnByBook(ctx, f.member, 5)
	require.NoError(t, err)
	assert.Equal(t, borrowID, res.Borrow.BorrowID)
	assert.True(t, res.Borrow.ReturnRequested)
}

func TestListsHonourOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 1, "Emma", 2, 14)
	f.addBook(t, 2, "Persuasion", 2, 14)

	first, err := f.svc.SubmitRequest(ctx, f.member, 1)
	require.NoError(t, err)
	f.clock.t = t0.Add(time.Hour)
	second, err := f.svc.SubmitRequest(ctx, f.member, 2)
	require.NoError(t, err)

	ids := func(l paging.List[RequestResponse]) []int64 {
		out := []int64{}
		for _, it := range l.Items {
			out = append(out, it.ID)
		}
		return out
	}

	asc := paging.Page{Limit: 50, Order: "asc"}.Normalize()
	queue, err := f.svc.PendingRequests(ctx, asc)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.Request.ID, second.Request.ID}, ids(queue))

	queue, err = f.svc.PendingRequests(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.Request.ID, first.Request.ID}, ids(queue))

	// ?order= はハンドラ経由でも効く（既定はキューが古い順）
	r := gin.New()
	g := r.Group("/borrow", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, f.librarian)
		c.Set(auth.CtxRoleKey, auth.RoleLibrarian)
		c.Next()
	})
	RegisterRoutes(g, f.svc, zap.NewNop())
	get := func(path string) paging.List[RequestResponse] {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var l paging.List[RequestResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
		return l
	}
	assert.Equal(t, []int64{first.Request.ID, second.Request.ID}, ids(get("/borrow/get-requests")))
	assert.Equal(t, []int64{second.Request.ID, first.Request.ID}, ids(get("/borrow/get-requests?order=desc")))

	// 貸出一覧も同じ
	_, err = f.svc.Approve(ctx, f.librarian, first.Request.ID)
	require.NoError(t, err)
	f.clock.t = t0.Add(2 * time.Hour)
	_, err = f.svc.Approve(ctx, f.librarian, second.Request.ID)
	require.NoError(t, err)

	books := func(l paging.List[BorrowResponse]) []int64 {
		out := []int64{}
		for _, it := range l.Items {
			out = append(out, it.Book.ID)
		}
		return out
	}
	hist, err := f.svc.History(ctx, auth.Principal{UserID: f.member, Role: auth.RoleMember}, asc)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, books(hist))
	hist, err = f.svc.History(ctx, auth.Principal{UserID: f.member, Role: auth.RoleMember}, page)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, books(hist))
}

func TestOverdueAndPenalty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 1, "Short Loan", 2, 7)
	f.addBook(t, 2, "Long Loan", 2, 30)
	approvedBorrow(t, f, f.member, 1)
	approvedBorrow(t, f, f.other, 1)
	approvedBorrow(t, f, f.member, 2)

	// 期限当日はまだ延滞ではない
	f.clock.t = t0.AddDate(0, 0, 7).Add(10 * time.Hour)
	staff := auth.Principal{UserID: f.librarian, Role: auth.RoleLibrarian}
	list, err := f.svc.Overdue(ctx, staff, page)
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	f.clock.t = t0.AddDate(0, 0, 10)
	list, err = f.svc.Overdue(ctx, staff, page)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	for _, it := range list.Items {
		assert.Equal(t, 3, it.DaysOverdue)
		assert.True(t, decimal.NewFromInt(30).Equal(it.Penalty), it.Penalty.String())
	}

	mine, err := f.svc.Overdue(ctx, auth.Principal{UserID: f.member, Role: auth.RoleMember}, page)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, f.member, mine.Items[0].User.ID)
	assert.Equal(t, "Mina", mine.Items[0].User.Name)
}

func TestDeletedBookRendersWithoutTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBook(t, 9, "Gone", 1, 14)
	borrowID := approvedBorrow(t, f, f.member, 9)

	_, err := f.conn.Exec(`DELETE FROM books WHERE id = 9`)
	require.NoError(t, err)

	hist, err := f.svc.History(ctx, auth.Principal{UserID: f.librarian, Role: auth.RoleAdmin}, page)
	require.NoError(t, err)
	require.Len(t, hist.Items, 1)
	assert.Equal(t, int64(9), hist.Items[0].Book.ID)
	assert.Empty(t, hist.Items[0].Book.Title)

	// 在庫行が無くても返却は確定できる
	_, err = f.svc.RequestReturn(ctx, f.member, borrowID)
	require.NoError(t, err)
	_, err = f.svc.AcknowledgeReturn(ctx, f.librarian, borrowID)
	require.NoError(t, err)
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, 7, "Dune", 1, 14)

	r := gin.New()
	who := auth.Principal{}
	g := r.Group("/borrow", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, who.UserID)
		c.Set(auth.CtxRoleKey, who.Role)
		c.Next()
	})
	RegisterRoutes(g, f.svc, zap.NewNop())

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	asMember := func() { who = auth.Principal{UserID: f.member, Role: auth.RoleMember} }
	asLibrarian := func() { who = auth.Principal{UserID: f.librarian, Role: auth.RoleLibrarian} }

	asMember()
	w := do(http.MethodPost, "/borrow/request", `{"book_id":7}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sub RequestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))

	w = do(http.MethodGet, "/borrow/check-request/7", "")
	assert.JSONEq(t, `{"hasRequested":true}`, w.Body.String())
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/borrow/get-requests", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/borrow/request", `{}`).Code)

	asLibrarian()
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/borrow/request", `{"book_id":7}`).Code)
	w = do(http.MethodGet, "/borrow/get-requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	var queue paging.List[RequestResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue.Items, 1)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/borrow/reject", fmt.Sprintf(`{"request_id":%d,"reason":""}`, sub.Request.ID)).Code)
	w = do(http.MethodPost, "/borrow/approve", fmt.Sprintf(`{"request_id":%d}`, sub.Request.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	asMember()
	w = do(http.MethodGet, "/borrow/not-returned-books", "")
	var borrows paging.List[BorrowResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &borrows))
	require.Len(t, borrows.Items, 1)

	w = do(http.MethodPost, "/borrow/returnreq", fmt.Sprintf(`{"borrow_id":%d}`, borrows.Items[0].BorrowID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/borrow/return", `{"book_id":7}`).Code)

	asLibrarian()
	w = do(http.MethodGet, "/borrow/all-return-pending", "")
	var pending paging.List[BorrowResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending.Items, 1)

	w = do(http.MethodPost, "/borrow/returnack", fmt.Sprintf(`{"borrow_id":%d}`, pending.Items[0].BorrowID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/borrow/history", "")
	var hist paging.List[BorrowResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "returned", hist.Items[0].State)
}
