package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// 一覧はまとめて取る（ページ送りは CLI では不要）
const listLimit = 200

type messageResult struct {
	Message string `json:"message"`
}

func getList[T any](ctx context.Context, c *Client, path string, q url.Values) (List[T], error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("limit", strconv.Itoa(listLimit))
	raw, err := c.raw(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return List[T]{}, err
	}
	return DecodeList[T](raw)
}

func (c *Client) post(ctx context.Context, path string, in any) (string, error) {
	var res messageResult
	if err := c.do(ctx, http.MethodPost, path, nil, in, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// Login は成功したトークンをクライアントに保持する
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, in, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res.User, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Books(ctx context.Context, query string) (List[Book], error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	return getList[Book](ctx, c, "/books", q)
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (c *Client) Genres(ctx context.Context) (List[Genre], error) {
	return getList[Genre](ctx, c, "/genres", nil)
}

// ===== 貸出申請 =====

func (c *Client) CheckRequest(ctx context.Context, bookID int64) (bool, error) {
	var res struct {
		HasRequested bool `json:"hasRequested"`
	}
	path := fmt.Sprintf("/borrow/check-request/%d", bookID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &res); err != nil {
		return false, err
	}
	return res.HasRequested, nil
}

func (c *Client) SubmitRequest(ctx context.Context, bookID int64) (string, error) {
	return c.post(ctx, "/borrow/request", map[string]int64{"book_id": bookID})
}

func (c *Client) PendingRequests(ctx context.Context) (List[Request], error) {
	return getList[Request](ctx, c, "/borrow/get-requests", nil)
}

func (c *Client) Approve(ctx context.Context, requestID int64) (string, error) {
	return c.post(ctx, "/borrow/approve", map[string]int64{"request_id": requestID})
}

func (c *Client) Reject(ctx context.Context, requestID int64, reason string) (string, error) {
	return c.post(ctx, "/borrow/reject", map[string]any{"request_id": requestID, "reason": reason})
}

func (c *Client) MyRequests(ctx context.Context) (List[Request], error) {
	return getList[Request](ctx, c, "/borrow/status", nil)
}

// ===== 返却 =====

func (c *Client) NotReturned(ctx context.Context) (List[Borrow], error) {
	return getList[Borrow](ctx, c, "/borrow/not-returned-books", nil)
}

func (c *Client) RequestReturn(ctx context.Context, borrowID int64) (string, error) {
	return c.post(ctx, "/borrow/returnreq", map[string]int64{"borrow_id": borrowID})
}

func (c *Client) ReturnPending(ctx context.Context) (List[Borrow], error) {
	return getList[Borrow](ctx, c, "/borrow/return-pending", nil)
}

func (c *Client) AcknowledgeReturn(ctx context.Context, borrowID int64) (string, error) {
	return c.post(ctx, "/borrow/returnack", map[string]int64{"borrow_id": borrowID})
}

func (c *Client) Overdue(ctx context.Context) (List[Borrow], error) {
	return getList[Borrow](ctx, c, "/borrow/overdue", nil)
}

func (c *Client) History(ctx context.Context) (List[Borrow], error) {
	return getList[Borrow](ctx, c, "/borrow/history", nil)
}
