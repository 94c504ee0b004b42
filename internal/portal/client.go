// Package portal は LIBRIS API のクライアント側。
// 一覧の形をそろえる DecodeList、貸出ライフサイクル画面のビューモデル、cobra の CLI を持つ。
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"LIBRIS-backend/internal/lifecycle"
)

// サーバのメッセージが取れなかったときの通知文
const FallbackNotice = "Something went wrong. Please try again."

const maxBodyBytes = 4 << 20

var (
	ErrBusy       = errors.New("another action is still in progress")
	ErrNotAllowed = errors.New("action not allowed for this record")
)

// APIError は 4xx/5xx 応答を表す
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Notice はユーザーに見せる一行メッセージ
func Notice(err error) string {
	if err == nil {
		return ""
	}
	var api *APIError
	if errors.As(err, &api) && strings.TrimSpace(api.Message) != "" {
		return api.Message
	}
	switch {
	case errors.Is(err, lifecycle.ErrBlankReason):
		return "Please enter a reason for rejection."
	case errors.Is(err, ErrNotAllowed):
		return "This action is not available for the selected record."
	case errors.Is(err, ErrBusy):
		return "Please wait for the current action to finish."
	}
	return FallbackNotice
}

type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// SetToken: "Bearer xxx" で渡されても生トークンとして保持する
func (c *Client) SetToken(tok string) {
	tok = strings.TrimSpace(tok)
	if len(tok) > 7 && strings.EqualFold(tok[:7], "bearer ") {
		tok = strings.TrimSpace(tok[7:])
	}
	c.token = tok
}

func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	raw, err := c.raw(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// サーバは生トークンも受け付けるが、クライアントは常に Bearer で送る
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, raw)
	}
	return raw, nil
}

// decodeError は {error:{code,message}} のほか、旧形式 {error:"..."} と {message:"..."} も読む
func decodeError(status int, raw []byte) *APIError {
	e := &APIError{Status: status}

	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return e
	}
	if len(env.Error) > 0 {
		var obj struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		var s string
		switch {
		case json.Unmarshal(env.Error, &obj) == nil:
			e.Code, e.Message = obj.Code, obj.Message
		case json.Unmarshal(env.Error, &s) == nil:
			e.Message = s
		}
	}
	if e.Message == "" {
		e.Message = env.Message
	}
	return e
}
