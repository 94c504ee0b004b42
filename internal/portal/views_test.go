package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noticeLog struct{ msgs []string }

func (n *noticeLog) notify(msg string) { n.msgs = append(n.msgs, msg) }

func TestPenaltyMatchesAcrossOverdueViews(t *testing.T) {
	staff := NewOverdueView(nil, true, nil)
	member := NewOverdueView(nil, false, nil)

	// 料率はサーバ側の設定なので、既定の 10 以外でも表示はサーバの値になる
	for _, days := range []int{0, 1, 2, 7, 30, 365} {
		served := decimal.NewFromInt(int64(days * 15))
		items := []Borrow{{BorrowID: 1, DaysOverdue: days, Penalty: served, User: UserRef{ID: 3, Name: "Mina"}}}
		staff.Items, member.Items = items, items

		s, m := staff.Rows()[0], member.Rows()[0]
		assert.True(t, s.Penalty.Equal(m.Penalty), "days=%d", days)
		assert.True(t, s.Penalty.Equal(served), "days=%d", days)
		assert.Equal(t, "Mina", s.Member)
		assert.Empty(t, m.Member)
	}
}

func TestOverdueRowsUseServerDays(t *testing.T) {
	v := NewOverdueView(nil, true, nil)
	// borrowed_at からは再計算しない
	v.Items = []Borrow{{
		BorrowID:       5,
		BorrowedAt:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpectedReturn: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		DaysOverdue:    2,
	}}
	row := v.Rows()[0]
	assert.Equal(t, 2, row.DaysOverdue)
	assert.Equal(t, "2 days overdue", row.Overdue)
	assert.Equal(t, "Unknown", row.Title)
	assert.Equal(t, "Unknown", row.Member)
}

func TestStatusRowsRenderReason(t *testing.T) {
	reason := "Damaged copy"
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewStatusView(nil, nil)
	v.now = func() time.Time { return now }
	v.Items = []Request{
		{ID: 1, Status: "rejected", RejectionReason: &reason, RequestedAt: now, Book: BookRef{ID: 7, Title: "Dune"}},
		{ID: 2, Status: "rejected", RequestedAt: now.AddDate(0, 0, -1)},
		{ID: 3, Status: "approved", RequestedAt: now.AddDate(0, 0, -4)},
	}

	rows := v.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "Damaged copy", rows[0].Reason)
	assert.Equal(t, "Today", rows[0].Requested)
	assert.Equal(t, "No reason provided", rows[1].Reason)
	assert.Equal(t, "Yesterday", rows[1].Requested)
	assert.Equal(t, "Unknown", rows[1].Title)
	assert.Empty(t, rows[2].Reason)
	assert.Equal(t, "4 days ago", rows[2].Requested)
}

func TestReturnActionLabel(t *testing.T) {
	v := NewReturnsView(nil, nil)
	returned := time.Now()

	label, disabled := v.Action(Borrow{})
	assert.Equal(t, "Request Return", label)
	assert.False(t, disabled)

	label, disabled = v.Action(Borrow{ReturnRequested: true})
	assert.Equal(t, "Return Requested", label)
	assert.True(t, disabled)

	_, disabled = v.Action(Borrow{ReturnedAt: &returned})
	assert.True(t, disabled)
}

// stubAPI は呼び出し回数を数える
func stubAPI(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client()), &calls
}

func TestSubmitIsNoOpOnceRequested(t *testing.T) {
	c, calls := stubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hasRequested":true}`))
	})
	v := NewBookRequestView(c, 7, nil)
	require.NoError(t, v.Load(context.Background()))
	assert.False(t, v.CanSubmit())

	require.NoError(t, v.Submit(context.Background()))
	assert.EqualValues(t, 1, calls.Load(), "submit must not reach the server")
}

func TestRejectBlankReasonBlocked(t *testing.T) {
	c, calls := stubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call %s", r.URL.Path)
	})
	n := &noticeLog{}
	v := NewRequestQueueView(c, n.notify)

	assert.False(t, v.CanSubmitReject("   "))
	assert.True(t, v.CanSubmitReject("Damaged copy"))

	err := v.Reject(context.Background(), 12, " \t")
	require.Error(t, err)
	assert.Zero(t, calls.Load())
	require.Len(t, n.msgs, 1)
}

func TestFailedMutationNotifiesWithoutRetry(t *testing.T) {
	c, calls := stubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"CONFLICT","message":"No copies available"}}`))
	})
	n := &noticeLog{}
	v := NewRequestQueueView(c, n.notify)

	err := v.Approve(context.Background(), 3)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, []string{"No copies available"}, n.msgs)
}

func TestSuccessfulMutationRefetches(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c, _ := stubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/borrow/approve":
			_, _ = w.Write([]byte(`{"message":"Request approved"}`))
		default:
			_, _ = w.Write([]byte(`{"items":[],"total":0,"next_offset":0}`))
		}
	})
	n := &noticeLog{}
	v := NewRequestQueueView(c, n.notify)

	require.NoError(t, v.Approve(context.Background(), 3))
	mu.Lock()
	assert.Equal(t, []string{"POST /borrow/approve", "GET /borrow/get-requests"}, paths)
	mu.Unlock()
	assert.Equal(t, []string{"Request approved"}, n.msgs)
	assert.Empty(t, v.Items)
}

func TestInFlightGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	c, _ := stubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/borrow/approve" {
			close(entered)
			<-release
			_, _ = w.Write([]byte(`{"message":"ok"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	v := NewRequestQueueView(c, nil)

	done := make(chan error, 1)
	go func() { done <- v.Approve(context.Background(), 1) }()
	<-entered

	assert.True(t, v.Busy())
	assert.ErrorIs(t, v.Approve(context.Background(), 2), ErrBusy)
	assert.False(t, v.CanSubmitReject("reason"))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, v.Busy())
}

func TestAcknowledgeOnlyQueuedRecords(t *testing.T) {
	c, calls := stubAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call %s", r.URL.Path)
	})
	v := NewReturnAckView(c, nil)
	v.Items = []Borrow{{BorrowID: 42, ReturnRequested: true}}

	assert.ErrorIs(t, v.Acknowledge(context.Background(), 41), ErrNotAllowed)
	assert.Zero(t, calls.Load())
}
