package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db/dbtest"
)

func init() { gin.SetMode(gin.TestMode) }

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(dbtest.New(t), config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Register(ctx, RegisterInput{Name: "Asha", Email: " Asha@Example.com ", Password: "secret1", Role: RoleMember})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "asha@example.com", u.Email)

	_, err = svc.Register(ctx, RegisterInput{Name: "Dup", Email: "asha@example.com", Password: "secret1", Role: RoleMember})
	assert.Equal(t, http.StatusConflict, apperr.ToHTTPStatus(err))

	token, got, err := svc.Login(ctx, "ASHA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	id, role, err := ParseToken(svc.Secret(), token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, RoleMember, role)

	_, _, err = svc.Login(ctx, "asha@example.com", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, apperr.ToHTTPStatus(err))
	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, http.StatusUnauthorized, apperr.ToHTTPStatus(err))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	cases := []RegisterInput{
		{Name: "", Email: "a@example.com", Password: "secret1", Role: RoleMember},
		{Name: "A", Email: "not-an-email", Password: "secret1", Role: RoleMember},
		{Name: "A", Email: "a@example.com", Password: "123", Role: RoleMember},
		{Name: "A", Email: "a@example.com", Password: "secret1", Role: "owner"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.Equal(t, http.StatusBadRequest, apperr.ToHTTPStatus(err), "%+v", in)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, created, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = ParseToken(secret, none)
	assert.Error(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	require.NoError(t, err)
	_, _, err = ParseToken(secret, hs512)
	assert.Error(t, err)

	expired := claims
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString(secret)
	require.NoError(t, err)
	_, _, err = ParseToken(secret, tok)
	assert.Error(t, err)
}

func TestTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", TokenFromHeader("Bearer abc"))
	assert.Equal(t, "abc", TokenFromHeader("bearer  abc "))
	assert.Equal(t, "abc", TokenFromHeader("abc"))
	assert.Equal(t, "", TokenFromHeader("Basic dXNlcg== extra"))
}

func TestMiddlewareAcceptsBearerAndRawToken(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	u, err := svc.Register(ctx, RegisterInput{Name: "Lib", Email: "lib@example.com", Password: "secret1", Role: RoleLibrarian})
	require.NoError(t, err)
	token, err := svc.IssueToken(u)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/staff", RequireAuth(svc.Secret()), RequireRole(RoleLibrarian, RoleAdmin), func(c *gin.Context) {
		p := Current(c)
		c.JSON(http.StatusOK, gin.H{"id": p.UserID, "staff": p.IsStaff()})
	})
	r.GET("/admin", RequireAuth(svc.Secret()), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("/staff", "Bearer "+token).Code)
	assert.Equal(t, http.StatusOK, do("/staff", token).Code)
	assert.Equal(t, http.StatusForbidden, do("/admin", "Bearer "+token).Code)

	w := do("/staff", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body struct {
		Error apperr.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperr.CodeUnauthenticated, body.Error.Code)

	assert.Equal(t, http.StatusUnauthorized, do("/staff", "Bearer garbage").Code)
}

func TestHandlers(t *testing.T) {
	svc := newService(t)
	r := gin.New()
	RegisterRoutes(r.Group("/auth"), svc, zap.NewNop())

	post := func(path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/auth/signup", `{"name":"Mina","email":"mina@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, post("/auth/signup", `{"name":"Mina","email":"mina@example.com","password":"secret1"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, post("/auth/signup", `{"email":"x@example.com"}`, "").Code)

	w = post("/auth/login", `{"email":"mina@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, RoleMember, login.User.Role)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	pw := httptest.NewRecorder()
	r.ServeHTTP(pw, req)
	require.Equal(t, http.StatusOK, pw.Code)
	var profile UserResponse
	require.NoError(t, json.Unmarshal(pw.Body.Bytes(), &profile))
	assert.Equal(t, "mina@example.com", profile.Email)

	assert.Equal(t, http.StatusOK, post("/auth/logout", `{}`, login.Token).Code)
	assert.Equal(t, http.StatusUnauthorized, post("/auth/login", `{"email":"mina@example.com","password":"nope-nope"}`, "").Code)
}
