package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db/dbtest"
	"LIBRIS-backend/internal/platform/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Service) {
	t.Helper()
	cfg := config.Default()
	conn := dbtest.New(t)
	r := NewRouter(Deps{Config: &cfg, Conn: conn, Log: zap.NewNop(), Metrics: metrics.New()})
	return r, auth.NewService(conn, cfg.Auth)
}

func serve(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := serve(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = serve(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "libris_http_requests_total")
}

func TestRequestIDEchoed(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-123", w.Header().Get("X-Request-ID"))
}

func TestUnknownRouteUsesErrorBody(t *testing.T) {
	r, _ := newTestRouter(t)
	w := serve(r, http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/books", "/borrow/get-requests", "/borrow/history", "/users/members"} {
		w := serve(r, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCORSPreflightInDev(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/books", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization,Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSignupLoginAndRoleGuards(t *testing.T) {
	r, authSvc := newTestRouter(t)
	ctx := context.Background()

	admin, _, err := authSvc.EnsureAdmin(ctx, "Root", "root@example.com", "rootpass")
	require.NoError(t, err)
	adminTok, err := authSvc.IssueToken(admin)
	require.NoError(t, err)

	w := serve(r, http.MethodPost, "/auth/signup", "", `{"name":"Mia","email":"mia@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(r, http.MethodPost, "/auth/login", "", `{"email":"mia@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login auth.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, auth.RoleMember, login.User.Role)

	// 会員は本を登録できない
	w = serve(r, http.MethodPost, "/books", login.Token, `{"title":"Dune","author":"Frank Herbert","total_copies":2}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodPost, "/books", adminTok, `{"title":"Dune","author":"Frank Herbert","total_copies":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, "/books", login.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	// 司書の一覧は admin のみ
	w = serve(r, http.MethodGet, "/users/librarians", login.Token, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = serve(r, http.MethodGet, "/borrow/librarians", adminTok, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/borrow/lib-stats", adminTok, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
